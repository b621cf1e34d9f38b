package schema

import "sort"

// CatalogColumn is one row of a catalog listing such as
// information_schema.columns.
type CatalogColumn struct {
	Table    string
	Column   string
	DataType string
	Nullable bool
	IsView   bool
	IsTemp   bool
}

// Build assembles a Schema from catalog rows. mapType translates engine type
// names; columns mapped to TypeUnknown are kept so that generated statements
// still reference every column.
func Build(columns []CatalogColumn, indexes map[string][]string, mapType func(string) ColumnType) Schema {
	byName := make(map[string]*Table)
	var order []string
	for _, c := range columns {
		tbl, ok := byName[c.Table]
		if !ok {
			tbl = &Table{Name: c.Table, IsView: c.IsView, IsTemp: c.IsTemp}
			byName[c.Table] = tbl
			order = append(order, c.Table)
		}
		tbl.Columns = append(tbl.Columns, Column{Name: c.Column, Type: mapType(c.DataType), Nullable: c.Nullable})
	}
	sort.Strings(order)
	out := Schema{Tables: make([]Table, 0, len(order))}
	for _, name := range order {
		tbl := byName[name]
		idx := append([]string(nil), indexes[name]...)
		sort.Strings(idx)
		tbl.Indexes = idx
		out.Tables = append(out.Tables, *tbl)
	}
	return out
}
