package oracle

import (
	"context"
	"fmt"

	"lancer/internal/generator"
	"lancer/internal/outcome"
)

// NoREC compares the row count of a filtered query with the count obtained
// by evaluating the same predicate per row, which the optimizer cannot use
// for index selection.
type NoREC[O any] struct {
	p   Params[O]
	gen *generator.Generator
}

// NewNoREC binds the oracle to a session.
func NewNoREC[O any](p Params[O]) *NoREC[O] {
	return &NoREC[O]{p: p, gen: generator.New(p.Session.Rand, p.Dialect)}
}

// Name implements Oracle.
func (o *NoREC[O]) Name() string { return "NoREC" }

// Check implements Oracle.
func (o *NoREC[O]) Check(ctx context.Context) error {
	t, err := pickTarget(ctx, o.p, o.gen)
	if err != nil {
		return err
	}
	optimized := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", t.from, t.predicate)
	unoptimized := fmt.Sprintf("SELECT SUM(CASE WHEN %s THEN 1 ELSE 0 END) FROM %s", t.predicate, t.from)
	o.p.Session.State.QueryString = optimized

	rows, err := fetch(ctx, o.p, optimized)
	if err != nil {
		return err
	}
	optCount, err := parseCount(rows)
	if err != nil {
		return outcome.Unexpected(optimized, err)
	}
	rows, err = fetch(ctx, o.p, unoptimized)
	if err != nil {
		return err
	}
	unoptCount, err := parseCount(rows)
	if err != nil {
		return outcome.Unexpected(unoptimized, err)
	}
	if optCount != unoptCount {
		return outcome.Mismatch(o.Name(),
			fmt.Sprintf("optimized count=%d", optCount),
			fmt.Sprintf("unoptimized count=%d", unoptCount),
			optimized, unoptimized)
	}
	return nil
}
