// Package schema is the dialect-neutral view of the tables a session has
// created, rebuilt from the database catalog after schema changes.
package schema

import (
	"fmt"
	"math/rand"
	"sort"
)

// ColumnType enumerates the value domains the generators know about.
type ColumnType int

// Column type constants.
const (
	TypeInt ColumnType = iota
	TypeText
	TypeBool
	TypeReal
	TypeDate
	TypeUnknown
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeText:
		return "text"
	case TypeBool:
		return "bool"
	case TypeReal:
		return "real"
	case TypeDate:
		return "date"
	default:
		return "unknown"
	}
}

// Column describes a table column.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Table describes a table or view.
type Table struct {
	Name    string
	Columns []Column
	Indexes []string
	IsView  bool
	// IsTemp marks objects of the connection-local temporary schema.
	IsTemp bool
}

// Schema is the set of tables of one database, sorted by name.
type Schema struct {
	Tables []Table
}

// ColumnByName returns a column by name if present.
func (t Table) ColumnByName(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// ColumnsOf returns the columns whose type is typ.
func (t Table) ColumnsOf(typ ColumnType) []Column {
	var out []Column
	for _, col := range t.Columns {
		if col.Type == typ {
			out = append(out, col)
		}
	}
	return out
}

// RandomColumn picks one column.
func (t Table) RandomColumn(r *rand.Rand) Column {
	return t.Columns[r.Intn(len(t.Columns))]
}

// HasTables reports whether any table or view exists.
func (s Schema) HasTables() bool {
	return len(s.Tables) > 0
}

// BaseTables returns non-view tables.
func (s Schema) BaseTables() []Table {
	out := make([]Table, 0, len(s.Tables))
	for _, tbl := range s.Tables {
		if !tbl.IsView {
			out = append(out, tbl)
		}
	}
	return out
}

// Views returns views.
func (s Schema) Views() []Table {
	var out []Table
	for _, tbl := range s.Tables {
		if tbl.IsView {
			out = append(out, tbl)
		}
	}
	return out
}

// TableByName returns a table by name if present.
func (s Schema) TableByName(name string) (Table, bool) {
	for _, tbl := range s.Tables {
		if tbl.Name == name {
			return tbl, true
		}
	}
	return Table{}, false
}

// RandomBaseTable picks a non-view table. ok is false without base tables.
func (s Schema) RandomBaseTable(r *rand.Rand) (Table, bool) {
	base := s.BaseTables()
	if len(base) == 0 {
		return Table{}, false
	}
	return base[r.Intn(len(base))], true
}

// RandomTables picks between 1 and max distinct tables, views included.
func (s Schema) RandomTables(r *rand.Rand, max int) []Table {
	if len(s.Tables) == 0 {
		return nil
	}
	if max > len(s.Tables) {
		max = len(s.Tables)
	}
	n := 1 + r.Intn(max)
	perm := r.Perm(len(s.Tables))
	out := make([]Table, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, s.Tables[idx])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Indexes returns every index name of the schema.
func (s Schema) Indexes() []string {
	var out []string
	for _, tbl := range s.Tables {
		out = append(out, tbl.Indexes...)
	}
	sort.Strings(out)
	return out
}

// FreeName returns the first prefix<N> not used by a table, view or index.
func (s Schema) FreeName(prefix string) string {
	used := make(map[string]struct{})
	for _, tbl := range s.Tables {
		used[tbl.Name] = struct{}{}
		for _, idx := range tbl.Indexes {
			used[idx] = struct{}{}
		}
	}
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, ok := used[name]; !ok {
			return name
		}
	}
}

// ColumnRef builds a fully qualified column reference.
func ColumnRef(table, column string) string {
	return fmt.Sprintf("%s.%s", table, column)
}
