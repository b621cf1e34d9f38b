package provider

import (
	"context"
	"fmt"
	"strings"

	"lancer/internal/action"
	"lancer/internal/outcome"
	"lancer/internal/query"
	"lancer/internal/schema"
	"lancer/internal/session"
)

// RequireTables is the post-statement check used while populating a
// database: once every table is gone the round is pointless.
func RequireTables[O any]() action.Check[O, schema.Schema] {
	return func(ctx context.Context, s *session.Session[O, schema.Schema], _ query.Query) error {
		sch, err := s.Schema(ctx)
		if err != nil {
			return err
		}
		if !sch.HasTables() {
			return outcome.Discardf("all tables were dropped")
		}
		return nil
	}
}

// CreateTables executes create until the schema holds want tables. Each
// attempt that fails with an expected error is retried, up to maxAttempts.
func CreateTables[O any](ctx context.Context, s *session.Session[O, schema.Schema], want, maxAttempts int, create func(name string) (query.Query, error)) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		sch, err := s.Schema(ctx)
		if err != nil {
			return err
		}
		if len(sch.BaseTables()) >= want {
			return nil
		}
		q, err := create(sch.FreeName("t"))
		if err != nil {
			if outcome.IsDiscard(err) {
				continue
			}
			return err
		}
		if _, err := s.Execute(ctx, q); err != nil {
			return err
		}
	}
	return outcome.Discardf("could not create %d tables in %d attempts", want, maxAttempts)
}

// DescribeSchema renders one line per table, e.g. "t0(c0 int NOT NULL, c1 text)".
func DescribeSchema(sch schema.Schema) []string {
	lines := make([]string, 0, len(sch.Tables))
	for _, tbl := range sch.Tables {
		cols := make([]string, len(tbl.Columns))
		for i, col := range tbl.Columns {
			cols[i] = fmt.Sprintf("%s %s", col.Name, col.Type)
			if !col.Nullable {
				cols[i] += " NOT NULL"
			}
		}
		kind := "table"
		if tbl.IsView {
			kind = "view"
		}
		line := fmt.Sprintf("%s %s(%s)", kind, tbl.Name, strings.Join(cols, ", "))
		if len(tbl.Indexes) > 0 {
			line += " indexes: " + strings.Join(tbl.Indexes, ", ")
		}
		lines = append(lines, line)
	}
	return lines
}
