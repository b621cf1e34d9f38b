package action

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"lancer/internal/config"
	"lancer/internal/outcome"
	"lancer/internal/query"
	"lancer/internal/session"
)

type recordingConn struct {
	executed []string
}

func (c *recordingConn) ExecContext(_ context.Context, q string, _ ...any) (sql.Result, error) {
	c.executed = append(c.executed, q)
	return driver.RowsAffected(0), nil
}

func (c *recordingConn) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (c *recordingConn) PrepareContext(context.Context, string) (*sql.Stmt, error) {
	return nil, errors.New("not supported")
}

func (c *recordingConn) Close() error { return nil }

type schema struct{ tables int }

func newSession(seed int64) (*session.Session[struct{}, schema], *recordingConn) {
	s := session.New(session.Params[struct{}, schema]{
		Main:     config.Default(),
		Seed:     seed,
		Database: "database0",
	})
	conn := &recordingConn{}
	s.SetConn(conn)
	return s, conn
}

func fixedStatement(text string) func(context.Context, *session.Session[struct{}, schema]) (query.Query, error) {
	return func(context.Context, *session.Session[struct{}, schema]) (query.Query, error) {
		return query.Plain(text)
	}
}

func TestRoundRunsExactRepetitions(t *testing.T) {
	s, conn := newSession(1)
	catalog := []Action[struct{}, schema]{
		New("INSERT", Exactly[struct{}, schema](3), fixedStatement("INSERT INTO t0 VALUES (1)")),
		New("COMMIT", Never[struct{}, schema](), fixedStatement("COMMIT")),
	}
	if err := NewScheduler(catalog, nil).Run(context.Background(), s); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(conn.executed) != 3 {
		t.Fatalf("executed %d statements, want 3: %v", len(conn.executed), conn.executed)
	}
	for _, q := range conn.executed {
		if q != "INSERT INTO t0 VALUES (1);" {
			t.Fatalf("unexpected statement %q", q)
		}
	}
}

func counterCatalog() []Action[struct{}, schema] {
	gen := func(prefix string) func(context.Context, *session.Session[struct{}, schema]) (query.Query, error) {
		return func(_ context.Context, s *session.Session[struct{}, schema]) (query.Query, error) {
			return query.Plain(fmt.Sprintf("%s %d", prefix, s.Rand.Intn(1000)))
		}
	}
	return []Action[struct{}, schema]{
		New("INSERT", UpTo[struct{}, schema](10), gen("INSERT")),
		New("UPDATE", UpTo[struct{}, schema](5), gen("UPDATE")),
		New("DELETE", UpTo[struct{}, schema](5), gen("DELETE")),
	}
}

func TestRoundIsDeterministicPerSeed(t *testing.T) {
	run := func(seed int64) []string {
		s, conn := newSession(seed)
		if err := NewScheduler(counterCatalog(), nil).Run(context.Background(), s); err != nil {
			t.Fatalf("run: %v", err)
		}
		return conn.executed
	}
	a, b := run(99), run(99)
	if len(a) != len(b) {
		t.Fatalf("different lengths %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("statement %d differs: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestRoundMatchesCounts(t *testing.T) {
	s, conn := newSession(5)
	sc := NewScheduler(counterCatalog(), nil)
	probe, _ := newSession(5)
	counts := sc.Counts(probe)
	if err := sc.Run(context.Background(), s); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := counts[0] + counts[1] + counts[2]
	if len(conn.executed) != want {
		t.Fatalf("executed %d statements, want %d", len(conn.executed), want)
	}
}

func TestGeneratorDiscardSkipsStatement(t *testing.T) {
	s, conn := newSession(1)
	calls := 0
	catalog := []Action[struct{}, schema]{
		New("FLAKY", Exactly[struct{}, schema](4), func(context.Context, *session.Session[struct{}, schema]) (query.Query, error) {
			calls++
			if calls%2 == 0 {
				return query.Query{}, outcome.Discardf("no candidate column")
			}
			return query.Plain("ANALYZE")
		}),
	}
	if err := NewScheduler(catalog, nil).Run(context.Background(), s); err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 4 || len(conn.executed) != 2 {
		t.Fatalf("calls=%d executed=%d", calls, len(conn.executed))
	}
}

func TestCheckDiscardAbortsRound(t *testing.T) {
	s, conn := newSession(1)
	catalog := []Action[struct{}, schema]{
		New("DROP", Exactly[struct{}, schema](5), fixedStatement("DELETE FROM t0")),
	}
	check := func(context.Context, *session.Session[struct{}, schema], query.Query) error {
		return outcome.Discardf("schema has no tables")
	}
	err := NewScheduler(catalog, check).Run(context.Background(), s)
	if outcome.Classify(err) != outcome.KindDiscard {
		t.Fatalf("expected discard, got %v", err)
	}
	if len(conn.executed) != 1 {
		t.Fatalf("round must stop after the first check, executed=%d", len(conn.executed))
	}
}

func TestConstructionErrorIsFatal(t *testing.T) {
	s, _ := newSession(1)
	catalog := []Action[struct{}, schema]{
		New("BROKEN", Exactly[struct{}, schema](1), func(context.Context, *session.Session[struct{}, schema]) (query.Query, error) {
			return query.New("CREATE TABLE t0(c0 INT)", nil, false)
		}),
	}
	err := NewScheduler(catalog, nil).Run(context.Background(), s)
	var ce *outcome.ConstructionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected construction error, got %v", err)
	}
}

func TestRoundRunsActionsInCatalogOrder(t *testing.T) {
	s, conn := newSession(4)
	catalog := []Action[struct{}, schema]{
		New("A", Exactly[struct{}, schema](3), fixedStatement("A")),
		New("SKIPPED", Never[struct{}, schema](), fixedStatement("SKIPPED")),
		New("B", Exactly[struct{}, schema](3), fixedStatement("B")),
	}
	if err := NewScheduler(catalog, nil).Run(context.Background(), s); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"A;", "A;", "A;", "B;", "B;", "B;"}
	if fmt.Sprint(conn.executed) != fmt.Sprint(want) {
		t.Fatalf("executed %v, want %v", conn.executed, want)
	}
}
