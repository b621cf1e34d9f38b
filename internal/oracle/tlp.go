package oracle

import (
	"context"
	"fmt"
	"sort"

	"lancer/internal/generator"
	"lancer/internal/outcome"
)

// TLPWhere partitions a query by a predicate p into the rows where p is
// true, false and NULL. The union of the partitions must equal the
// unfiltered result as a multiset.
type TLPWhere[O any] struct {
	p   Params[O]
	gen *generator.Generator
}

// NewTLPWhere binds the oracle to a session.
func NewTLPWhere[O any](p Params[O]) *TLPWhere[O] {
	return &TLPWhere[O]{p: p, gen: generator.New(p.Session.Rand, p.Dialect)}
}

// Name implements Oracle.
func (o *TLPWhere[O]) Name() string { return "TLPWhere" }

// Check implements Oracle.
func (o *TLPWhere[O]) Check(ctx context.Context) error {
	t, err := pickTarget(ctx, o.p, o.gen)
	if err != nil {
		return err
	}
	base := fmt.Sprintf("SELECT %s FROM %s", columnList(t.refs), t.from)
	partitions := []string{
		fmt.Sprintf("%s WHERE %s", base, t.predicate),
		fmt.Sprintf("%s WHERE NOT (%s)", base, t.predicate),
		fmt.Sprintf("%s WHERE (%s) IS NULL", base, t.predicate),
	}
	o.p.Session.State.QueryString = base

	expected, err := fetch(ctx, o.p, base)
	if err != nil {
		return err
	}
	var actual []string
	for _, part := range partitions {
		rows, err := fetch(ctx, o.p, part)
		if err != nil {
			return err
		}
		actual = append(actual, rows...)
		if len(actual) > o.p.maxRows() {
			return outcome.Discardf("partitions exceed %d rows", o.p.maxRows())
		}
	}
	sort.Strings(expected)
	sort.Strings(actual)
	if !equalRows(expected, actual) {
		sql := append([]string{base}, partitions...)
		return outcome.Mismatch(o.Name(), describeRows(expected), describeRows(actual), sql...)
	}
	return nil
}

func equalRows(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
