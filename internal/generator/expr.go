package generator

import (
	"fmt"
	"strings"

	"lancer/internal/schema"
)

// Expr is a node of a generated expression tree.
type Expr interface {
	Build(b *SQLBuilder)
	Columns() []ColumnRef
}

// ColumnRef is a typed column an expression may read.
type ColumnRef struct {
	Table string
	Name  string
	Type  schema.ColumnType
}

// RefsOf returns qualified references to every column of tables.
func RefsOf(tables ...schema.Table) []ColumnRef {
	var refs []ColumnRef
	for _, tbl := range tables {
		for _, col := range tbl.Columns {
			refs = append(refs, ColumnRef{Table: tbl.Name, Name: col.Name, Type: col.Type})
		}
	}
	return refs
}

// LocalRefs returns unqualified references to the columns of t, for
// contexts such as CHECK constraints and index predicates.
func LocalRefs(t schema.Table) []ColumnRef {
	refs := make([]ColumnRef, len(t.Columns))
	for i, col := range t.Columns {
		refs[i] = ColumnRef{Name: col.Name, Type: col.Type}
	}
	return refs
}

// ColumnExpr references a column, qualified unless Ref.Table is empty.
type ColumnExpr struct {
	Ref ColumnRef
}

func (e ColumnExpr) Build(b *SQLBuilder) {
	if e.Ref.Table == "" {
		b.Write(e.Ref.Name)
		return
	}
	b.Write(fmt.Sprintf("%s.%s", e.Ref.Table, e.Ref.Name))
}

func (e ColumnExpr) Columns() []ColumnRef { return []ColumnRef{e.Ref} }

// LiteralExpr is a constant; a nil Value renders as NULL.
type LiteralExpr struct {
	Value any
}

func (e LiteralExpr) Build(b *SQLBuilder) {
	switch v := e.Value.(type) {
	case string:
		b.Write("'")
		b.Write(strings.ReplaceAll(v, "'", "''"))
		b.Write("'")
	case nil:
		b.Write("NULL")
	default:
		b.Write(fmt.Sprintf("%v", v))
	}
}

func (e LiteralExpr) Columns() []ColumnRef { return nil }

// RawExpr renders dialect-specific text verbatim.
type RawExpr struct {
	SQL string
}

// Build emits the raw text.
func (e RawExpr) Build(b *SQLBuilder) { b.Write(e.SQL) }

func (e RawExpr) Columns() []ColumnRef { return nil }

// UnaryExpr renders a prefix operator.
type UnaryExpr struct {
	Op   string
	Expr Expr
}

func (e UnaryExpr) Build(b *SQLBuilder) {
	b.Write("(")
	b.Write(e.Op)
	b.Write(" ")
	if e.Expr == nil {
		b.Write("NULL")
	} else {
		e.Expr.Build(b)
	}
	b.Write(")")
}

func (e UnaryExpr) Columns() []ColumnRef {
	if e.Expr == nil {
		return nil
	}
	return e.Expr.Columns()
}

// PostfixExpr renders a postfix operator such as IS NULL.
type PostfixExpr struct {
	Expr Expr
	Op   string
}

// Build emits the postfix expression.
func (e PostfixExpr) Build(b *SQLBuilder) {
	b.Write("(")
	e.Expr.Build(b)
	b.Write(" ")
	b.Write(e.Op)
	b.Write(")")
}

func (e PostfixExpr) Columns() []ColumnRef { return e.Expr.Columns() }

// BinaryExpr is `left op right`, always parenthesized.
type BinaryExpr struct {
	Left  Expr
	Op    string
	Right Expr
}

func (e BinaryExpr) Build(b *SQLBuilder) {
	b.Write("(")
	if e.Left == nil {
		b.Write("NULL")
	} else {
		e.Left.Build(b)
	}
	b.Write(" ")
	b.Write(e.Op)
	b.Write(" ")
	if e.Right == nil {
		b.Write("NULL")
	} else {
		e.Right.Build(b)
	}
	b.Write(")")
}

func (e BinaryExpr) Columns() []ColumnRef {
	cols := make([]ColumnRef, 0, 4)
	if e.Left != nil {
		cols = append(cols, e.Left.Columns()...)
	}
	if e.Right != nil {
		cols = append(cols, e.Right.Columns()...)
	}
	return cols
}

// FuncExpr is a scalar function call.
type FuncExpr struct {
	Name string
	Args []Expr
}

func (e FuncExpr) Build(b *SQLBuilder) {
	b.Write(e.Name)
	b.Write("(")
	for i, arg := range e.Args {
		if i > 0 {
			b.Write(", ")
		}
		arg.Build(b)
	}
	b.Write(")")
}

func (e FuncExpr) Columns() []ColumnRef {
	cols := make([]ColumnRef, 0, len(e.Args))
	for _, arg := range e.Args {
		cols = append(cols, arg.Columns()...)
	}
	return cols
}

// CaseWhen is one WHEN ... THEN ... arm.
type CaseWhen struct {
	When Expr
	Then Expr
}

// CaseExpr renders a searched CASE expression.
type CaseExpr struct {
	Whens []CaseWhen
	Else  Expr
}

func (e CaseExpr) Build(b *SQLBuilder) {
	b.Write("CASE ")
	for _, w := range e.Whens {
		b.Write("WHEN ")
		w.When.Build(b)
		b.Write(" THEN ")
		w.Then.Build(b)
		b.Write(" ")
	}
	if e.Else != nil {
		b.Write("ELSE ")
		e.Else.Build(b)
		b.Write(" ")
	}
	b.Write("END")
}

func (e CaseExpr) Columns() []ColumnRef {
	var cols []ColumnRef
	for _, w := range e.Whens {
		cols = append(cols, w.When.Columns()...)
		cols = append(cols, w.Then.Columns()...)
	}
	if e.Else != nil {
		cols = append(cols, e.Else.Columns()...)
	}
	return cols
}

// InExpr is `left [NOT] IN (list)`.
type InExpr struct {
	Left Expr
	List []Expr
	Not  bool
}

func (e InExpr) Build(b *SQLBuilder) {
	b.Write("(")
	e.Left.Build(b)
	if e.Not {
		b.Write(" NOT")
	}
	b.Write(" IN (")
	for i, item := range e.List {
		if i > 0 {
			b.Write(", ")
		}
		item.Build(b)
	}
	b.Write("))")
}

func (e InExpr) Columns() []ColumnRef {
	cols := append([]ColumnRef{}, e.Left.Columns()...)
	for _, item := range e.List {
		cols = append(cols, item.Columns()...)
	}
	return cols
}

// BetweenExpr renders BETWEEN.
type BetweenExpr struct {
	Expr Expr
	Low  Expr
	High Expr
	Not  bool
}

// Build emits the BETWEEN predicate.
func (e BetweenExpr) Build(b *SQLBuilder) {
	b.Write("(")
	e.Expr.Build(b)
	if e.Not {
		b.Write(" NOT")
	}
	b.Write(" BETWEEN ")
	e.Low.Build(b)
	b.Write(" AND ")
	e.High.Build(b)
	b.Write(")")
}

func (e BetweenExpr) Columns() []ColumnRef {
	cols := append([]ColumnRef{}, e.Expr.Columns()...)
	cols = append(cols, e.Low.Columns()...)
	return append(cols, e.High.Columns()...)
}
