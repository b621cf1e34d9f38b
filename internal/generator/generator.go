// Package generator builds random, type-correct SQL expressions and the
// common DDL/DML statements shared by all providers.
package generator

import (
	"fmt"
	"math/rand"
	"strings"

	"lancer/internal/schema"
	"lancer/internal/util"
)

const (
	defaultMaxDepth = 3
	nullPercent     = 10
)

var comparisonOps = []string{"=", "<>", "<", "<=", ">", ">="}

// Generator draws every decision from one RNG, so equal seeds produce equal SQL.
type Generator struct {
	r        *rand.Rand
	d        Dialect
	MaxDepth int
}

// New returns a generator for dialect d.
func New(r *rand.Rand, d Dialect) *Generator {
	return &Generator{r: r, d: d, MaxDepth: defaultMaxDepth}
}

// Rand exposes the underlying RNG.
func (g *Generator) Rand() *rand.Rand { return g.r }

// Dialect returns the dialect.
func (g *Generator) Dialect() Dialect { return g.d }

// Null renders a NULL of type t.
func (g *Generator) Null(t schema.ColumnType) Expr {
	if g.d.TypedNull && t != schema.TypeUnknown {
		return RawExpr{SQL: fmt.Sprintf("CAST(NULL AS %s)", g.d.TypeName(t))}
	}
	return LiteralExpr{Value: nil}
}

// Literal returns a random constant of type t, occasionally NULL.
func (g *Generator) Literal(t schema.ColumnType) Expr {
	if util.Chance(g.r, nullPercent) {
		return g.Null(t)
	}
	return g.NonNullLiteral(t)
}

// NonNullLiteral returns a random constant of type t.
func (g *Generator) NonNullLiteral(t schema.ColumnType) Expr {
	switch t {
	case schema.TypeInt:
		return LiteralExpr{Value: g.randInt()}
	case schema.TypeText:
		return LiteralExpr{Value: g.randString()}
	case schema.TypeBool:
		if g.r.Intn(2) == 0 {
			return RawExpr{SQL: "TRUE"}
		}
		return RawExpr{SQL: "FALSE"}
	case schema.TypeReal:
		return RawExpr{SQL: fmt.Sprintf("%.2f", g.r.Float64()*200-100)}
	case schema.TypeDate:
		lit := util.RandDate(g.r, 1990, 2030)
		if g.d.DateLiteral != nil {
			return RawExpr{SQL: g.d.DateLiteral(lit)}
		}
		return LiteralExpr{Value: lit}
	default:
		return LiteralExpr{Value: nil}
	}
}

func (g *Generator) randInt() int64 {
	switch g.r.Intn(4) {
	case 0:
		return int64(util.FromOptions(g.r, 0, 1, -1))
	case 1:
		return int64(g.r.Intn(10))
	case 2:
		return int64(g.r.Intn(2000) - 1000)
	default:
		return g.r.Int63n(1 << 30)
	}
}

const stringAlphabet = "abcXYZ019 %_'"

func (g *Generator) randString() string {
	n := g.r.Intn(6)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(stringAlphabet[g.r.Intn(len(stringAlphabet))])
	}
	return b.String()
}

// ColumnType picks a type for a new column.
func (g *Generator) ColumnType() schema.ColumnType {
	return util.FromOptions(g.r, g.d.ColumnTypes...)
}

func refsOfType(refs []ColumnRef, t schema.ColumnType) []ColumnRef {
	var out []ColumnRef
	for _, ref := range refs {
		if ref.Type == t {
			out = append(out, ref)
		}
	}
	return out
}

// Leaf returns a column of type t from refs or a literal.
func (g *Generator) Leaf(t schema.ColumnType, refs []ColumnRef) Expr {
	candidates := refsOfType(refs, t)
	if len(candidates) > 0 && util.Chance(g.r, 70) {
		return ColumnExpr{Ref: candidates[g.r.Intn(len(candidates))]}
	}
	return g.Literal(t)
}

// Predicate returns a boolean expression over refs.
func (g *Generator) Predicate(refs []ColumnRef) Expr {
	return g.Expr(schema.TypeBool, refs, 0)
}

// Expr returns a random expression of type t over refs.
func (g *Generator) Expr(t schema.ColumnType, refs []ColumnRef, depth int) Expr {
	if depth >= g.MaxDepth || util.Chance(g.r, 25) {
		return g.Leaf(t, refs)
	}
	switch t {
	case schema.TypeBool:
		return g.boolExpr(refs, depth)
	case schema.TypeInt:
		return g.intExpr(refs, depth)
	case schema.TypeText:
		return g.textExpr(refs, depth)
	case schema.TypeReal:
		return g.realExpr(refs, depth)
	default:
		return g.Leaf(t, refs)
	}
}

func (g *Generator) comparableType(refs []ColumnRef) schema.ColumnType {
	if len(refs) > 0 && util.Chance(g.r, 80) {
		ref := refs[g.r.Intn(len(refs))]
		if ref.Type != schema.TypeUnknown {
			return ref.Type
		}
	}
	return g.ColumnType()
}

// boolWeights weighs the boolExpr cases; comparisons come up twice as often.
var boolWeights = []int{2, 1, 1, 1, 1, 1, 1}

func (g *Generator) boolExpr(refs []ColumnRef, depth int) Expr {
	switch util.PickWeighted(g.r, boolWeights) {
	case 0:
		t := g.comparableType(refs)
		return BinaryExpr{
			Left:  g.Expr(t, refs, depth+1),
			Op:    util.FromOptions(g.r, comparisonOps...),
			Right: g.Expr(t, refs, depth+1),
		}
	case 1:
		return BinaryExpr{Left: g.Expr(schema.TypeBool, refs, depth+1), Op: "AND", Right: g.Expr(schema.TypeBool, refs, depth+1)}
	case 2:
		return BinaryExpr{Left: g.Expr(schema.TypeBool, refs, depth+1), Op: "OR", Right: g.Expr(schema.TypeBool, refs, depth+1)}
	case 3:
		return UnaryExpr{Op: "NOT", Expr: g.Expr(schema.TypeBool, refs, depth+1)}
	case 4:
		var target Expr
		if len(refs) > 0 {
			target = ColumnExpr{Ref: refs[g.r.Intn(len(refs))]}
		} else {
			target = g.Expr(g.ColumnType(), refs, depth+1)
		}
		return PostfixExpr{Expr: target, Op: util.FromOptions(g.r, "IS NULL", "IS NOT NULL")}
	case 5:
		t := g.comparableType(refs)
		return BetweenExpr{
			Expr: g.Expr(t, refs, depth+1),
			Low:  g.Leaf(t, refs),
			High: g.Leaf(t, refs),
			Not:  g.r.Intn(2) == 0,
		}
	default:
		t := g.comparableType(refs)
		list := make([]Expr, 1+g.r.Intn(3))
		for i := range list {
			list[i] = g.Leaf(t, refs)
		}
		return InExpr{Left: g.Expr(t, refs, depth+1), List: list, Not: g.r.Intn(2) == 0}
	}
}

func (g *Generator) caseExpr(t schema.ColumnType, refs []ColumnRef, depth int) Expr {
	return CaseExpr{
		Whens: []CaseWhen{{When: g.Expr(schema.TypeBool, refs, depth+1), Then: g.Expr(t, refs, depth+1)}},
		Else:  g.Expr(t, refs, depth+1),
	}
}

func (g *Generator) intExpr(refs []ColumnRef, depth int) Expr {
	switch g.r.Intn(5) {
	case 0:
		return BinaryExpr{Left: g.Expr(schema.TypeInt, refs, depth+1), Op: util.FromOptions(g.r, "+", "-"), Right: g.Expr(schema.TypeInt, refs, depth+1)}
	case 1:
		return UnaryExpr{Op: "-", Expr: g.Expr(schema.TypeInt, refs, depth+1)}
	case 2:
		if len(g.d.IntFunctions) > 0 {
			return FuncExpr{Name: util.FromOptions(g.r, g.d.IntFunctions...), Args: []Expr{g.Expr(schema.TypeInt, refs, depth+1)}}
		}
		return g.Leaf(schema.TypeInt, refs)
	case 3:
		return g.caseExpr(schema.TypeInt, refs, depth)
	default:
		return g.Leaf(schema.TypeInt, refs)
	}
}

func (g *Generator) textExpr(refs []ColumnRef, depth int) Expr {
	switch g.r.Intn(4) {
	case 0:
		left, right := g.Expr(schema.TypeText, refs, depth+1), g.Expr(schema.TypeText, refs, depth+1)
		if g.d.ConcatOp == "" {
			return FuncExpr{Name: "CONCAT", Args: []Expr{left, right}}
		}
		return BinaryExpr{Left: left, Op: g.d.ConcatOp, Right: right}
	case 1:
		if len(g.d.TextFunctions) > 0 {
			return FuncExpr{Name: util.FromOptions(g.r, g.d.TextFunctions...), Args: []Expr{g.Expr(schema.TypeText, refs, depth+1)}}
		}
		return g.Leaf(schema.TypeText, refs)
	case 2:
		return g.caseExpr(schema.TypeText, refs, depth)
	default:
		return g.Leaf(schema.TypeText, refs)
	}
}

func (g *Generator) realExpr(refs []ColumnRef, depth int) Expr {
	switch g.r.Intn(3) {
	case 0:
		return BinaryExpr{Left: g.Expr(schema.TypeReal, refs, depth+1), Op: util.FromOptions(g.r, "+", "-"), Right: g.Expr(schema.TypeReal, refs, depth+1)}
	case 1:
		if len(g.d.RealFunctions) > 0 {
			return FuncExpr{Name: util.FromOptions(g.r, g.d.RealFunctions...), Args: []Expr{g.Expr(schema.TypeReal, refs, depth+1)}}
		}
		return g.Leaf(schema.TypeReal, refs)
	default:
		return g.Leaf(schema.TypeReal, refs)
	}
}
