package generator

import (
	"fmt"
	"strings"

	"lancer/internal/schema"
	"lancer/internal/util"
)

// TableOptions shapes CreateTable output.
type TableOptions struct {
	// Prefix replaces "CREATE TABLE", e.g. "CREATE UNLOGGED TABLE".
	Prefix     string
	MaxColumns int
	// Suffix is appended after the column list.
	Suffix string
}

// CreateTable renders a CREATE TABLE statement with random columns and
// constraints.
func (g *Generator) CreateTable(name string, opts TableOptions) string {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "CREATE TABLE"
	}
	maxColumns := opts.MaxColumns
	if maxColumns <= 0 {
		maxColumns = 4
	}
	n := util.RandIntRange(g.r, 1, maxColumns)
	pk := -1
	if util.Chance(g.r, 15) {
		pk = g.r.Intn(n)
	}
	defs := make([]string, 0, n)
	refs := make([]ColumnRef, 0, n)
	for i := 0; i < n; i++ {
		colName := fmt.Sprintf("c%d", i)
		typ := g.ColumnType()
		refs = append(refs, ColumnRef{Name: colName, Type: typ})
		def := colName + " " + g.d.TypeName(typ)
		switch {
		case i == pk:
			def += " PRIMARY KEY"
		case util.Chance(g.r, 10):
			def += " UNIQUE"
		}
		if util.Chance(g.r, 20) {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if g.d.CheckClauses && util.Chance(g.r, 10) {
		defs = append(defs, g.Check(refs))
	}
	stmt := fmt.Sprintf("%s %s(%s)", prefix, name, strings.Join(defs, ", "))
	if opts.Suffix != "" {
		stmt += " " + opts.Suffix
	}
	return stmt
}

// Check renders a table CHECK constraint over refs.
func (g *Generator) Check(refs []ColumnRef) string {
	return "CHECK (" + Render(g.Predicate(refs)) + ")"
}

// Insert renders a multi-row INSERT. Non-nullable columns are always listed.
func (g *Generator) Insert(verb string, t schema.Table, maxRows int) string {
	if verb == "" {
		verb = "INSERT INTO"
	}
	cols := make([]schema.Column, 0, len(t.Columns))
	for _, col := range t.Columns {
		if !col.Nullable || util.Chance(g.r, 70) {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		cols = append(cols, t.RandomColumn(g.r))
	}
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	if maxRows <= 0 {
		maxRows = 1
	}
	rows := make([]string, util.RandIntRange(g.r, 1, maxRows))
	for i := range rows {
		values := make([]string, len(cols))
		for j, col := range cols {
			values[j] = Render(g.Literal(col.Type))
		}
		rows[i] = "(" + strings.Join(values, ", ") + ")"
	}
	return fmt.Sprintf("%s %s(%s) VALUES %s", verb, t.Name, strings.Join(names, ", "), strings.Join(rows, ", "))
}

// Update renders an UPDATE of random columns. The WHERE clause is left out
// with small probability.
func (g *Generator) Update(t schema.Table) string {
	refs := RefsOf(t)
	n := util.RandIntRange(g.r, 1, len(t.Columns))
	perm := g.r.Perm(len(t.Columns))[:n]
	sets := make([]string, 0, n)
	for _, idx := range perm {
		col := t.Columns[idx]
		sets = append(sets, fmt.Sprintf("%s = %s", col.Name, Render(g.Expr(col.Type, refs, 1))))
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s", t.Name, strings.Join(sets, ", "))
	if !util.Chance(g.r, 10) {
		stmt += " WHERE " + Render(g.Predicate(refs))
	}
	return stmt
}

// Delete renders a DELETE, usually with a WHERE clause.
func (g *Generator) Delete(t schema.Table) string {
	stmt := "DELETE FROM " + t.Name
	if util.Chance(g.r, 90) {
		stmt += " WHERE " + Render(g.Predicate(RefsOf(t)))
	}
	return stmt
}

// CreateIndex renders a CREATE INDEX over random columns of t.
func (g *Generator) CreateIndex(name string, t schema.Table) string {
	n := util.RandIntRange(g.r, 1, len(t.Columns))
	perm := g.r.Perm(len(t.Columns))[:n]
	cols := make([]string, n)
	for i, idx := range perm {
		cols[i] = t.Columns[idx].Name
		if util.Chance(g.r, 20) {
			cols[i] += " " + util.FromOptions(g.r, "ASC", "DESC")
		}
	}
	unique := ""
	if util.Chance(g.r, 20) {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)", unique, name, t.Name, strings.Join(cols, ", "))
	if g.d.PartialIndexes && util.Chance(g.r, 20) {
		stmt += " WHERE " + Render(g.Predicate(LocalRefs(t)))
	}
	return stmt
}

// SelectList renders between one and three expressions aliased c0, c1, ...
func (g *Generator) SelectList(refs []ColumnRef) string {
	n := util.RandIntRange(g.r, 1, 3)
	items := make([]string, n)
	for i := range items {
		t := g.ColumnType()
		items[i] = fmt.Sprintf("%s AS c%d", Render(g.Expr(t, refs, 1)), i)
	}
	return strings.Join(items, ", ")
}

// CreateView renders CREATE VIEW name AS SELECT over tables. The view is
// temporary when one of the tables is.
func (g *Generator) CreateView(name string, tables []schema.Table) string {
	refs := RefsOf(tables...)
	names := make([]string, len(tables))
	verb := "CREATE VIEW"
	for i, tbl := range tables {
		names[i] = tbl.Name
		if tbl.IsTemp {
			verb = "CREATE TEMP VIEW"
		}
	}
	stmt := fmt.Sprintf("%s %s AS SELECT %s FROM %s", verb, name, g.SelectList(refs), strings.Join(names, ", "))
	if util.Chance(g.r, 50) {
		stmt += " WHERE " + Render(g.Predicate(refs))
	}
	return stmt
}
