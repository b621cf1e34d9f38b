package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"lancer/internal/generator"
	"lancer/internal/outcome"
	"lancer/internal/query"
	"lancer/internal/schema"
	"lancer/internal/session"
)

// DefaultMaxRows bounds the result size an oracle compares.
const DefaultMaxRows = 10000

// Params configures the oracles of one session.
type Params[O any] struct {
	Session *session.Session[O, schema.Schema]
	Dialect generator.Dialect
	// Expected lists the errors that make a probe inconclusive.
	Expected query.ExpectedErrors
	MaxRows  int
	// MaxTables bounds the FROM list.
	MaxTables int
}

func (p Params[O]) maxRows() int {
	if p.MaxRows <= 0 {
		return DefaultMaxRows
	}
	return p.MaxRows
}

func (p Params[O]) maxTables() int {
	if p.MaxTables <= 0 {
		return 2
	}
	return p.MaxTables
}

// target draws the tables and a predicate for one probe.
type target struct {
	from      string
	refs      []generator.ColumnRef
	predicate string
}

func pickTarget[O any](ctx context.Context, p Params[O], gen *generator.Generator) (target, error) {
	sch, err := p.Session.Schema(ctx)
	if err != nil {
		return target{}, errors.Wrap(err, "read schema")
	}
	if !sch.HasTables() {
		return target{}, outcome.Discardf("database has no tables")
	}
	tables := sch.RandomTables(p.Session.Rand, p.maxTables())
	names := make([]string, len(tables))
	for i, tbl := range tables {
		names[i] = tbl.Name
	}
	refs := generator.RefsOf(tables...)
	if len(refs) == 0 {
		return target{}, outcome.Discardf("tables have no columns")
	}
	return target{
		from:      strings.Join(names, ", "),
		refs:      refs,
		predicate: generator.Render(gen.Predicate(refs)),
	}, nil
}

// fetch runs text and returns each row rendered as one string. An expected
// error, whether raised by the statement or while reading rows, turns into a
// discard.
func fetch[O any](ctx context.Context, p Params[O], text string) ([]string, error) {
	q, err := query.New(text, p.Expected, false)
	if err != nil {
		return nil, err
	}
	rows, err := p.Session.ExecuteAndGet(ctx, q)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, outcome.Discardf("expected error in %s", q.Text())
	}
	defer rows.Close()
	out, err := readRows(rows, p.maxRows())
	if err != nil {
		if outcome.IsDiscard(err) {
			return nil, err
		}
		if q.Tolerates(err) {
			return nil, outcome.Discardf("expected error while reading %s", q.Text())
		}
		return nil, outcome.Unexpected(q.Text(), err)
	}
	return out, nil
}

func readRows(rows *sql.Rows, limit int) ([]string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	var out []string
	for rows.Next() {
		if len(out) >= limit {
			return nil, outcome.Discardf("result exceeds %d rows", limit)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		fields := make([]string, len(values))
		for i, v := range values {
			if !v.Valid {
				fields[i] = "NULL"
			} else {
				fields[i] = strconv.Quote(v.String)
			}
		}
		out = append(out, strings.Join(fields, ","))
	}
	return out, rows.Err()
}

// parseCount reads a single-cell integer result. NULL counts as zero.
func parseCount(rows []string) (int64, error) {
	if len(rows) != 1 {
		return 0, errors.Errorf("expected one row, got %d", len(rows))
	}
	cell := rows[0]
	if cell == "NULL" {
		return 0, nil
	}
	raw, err := strconv.Unquote(cell)
	if err != nil {
		return 0, errors.Wrapf(err, "unquote %s", cell)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse count %q", raw)
	}
	return int64(math.Round(f)), nil
}

func columnList(refs []generator.ColumnRef) string {
	cols := make([]string, len(refs))
	for i, ref := range refs {
		cols[i] = generator.Render(generator.ColumnExpr{Ref: ref})
	}
	return strings.Join(cols, ", ")
}

func describeRows(rows []string) string {
	const shown = 5
	if len(rows) <= shown {
		return fmt.Sprintf("%d rows %v", len(rows), rows)
	}
	return fmt.Sprintf("%d rows %v...", len(rows), rows[:shown])
}
