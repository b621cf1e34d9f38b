package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "modernc.org/sqlite"

	"lancer/internal/config"
	"lancer/internal/db"
	"lancer/internal/generator"
	"lancer/internal/outcome"
	"lancer/internal/query"
	"lancer/internal/schema"
	"lancer/internal/session"
)

var intDialect = generator.Dialect{
	Name:        "int",
	ColumnTypes: []schema.ColumnType{schema.TypeInt},
	TypeName:    func(schema.ColumnType) string { return "INT" },
	ConcatOp:    "||",
}

var twoColumns = schema.Schema{Tables: []schema.Table{{
	Name: "t0",
	Columns: []schema.Column{
		{Name: "c0", Type: schema.TypeInt, Nullable: true},
		{Name: "c1", Type: schema.TypeInt, Nullable: true},
	},
}}}

func newSession(seed int64, sch schema.Schema) *session.Session[struct{}, schema.Schema] {
	main := config.Default()
	main.StatementTimeoutMs = 0
	return session.New(session.Params[struct{}, schema.Schema]{
		Main:     main,
		Seed:     seed,
		Database: "database0",
		Refresh: func(context.Context, session.Conn) (schema.Schema, error) {
			return sch, nil
		},
	})
}

func sqliteSession(t *testing.T, seed int64) *session.Session[struct{}, schema.Schema] {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, "sqlite", "file:oracle?mode=memory")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s := newSession(seed, twoColumns)
	s.SetConn(conn)
	t.Cleanup(func() { _ = s.Close() })
	for _, stmt := range []string{
		"CREATE TABLE t0(c0 INT, c1 INT)",
		"INSERT INTO t0(c0, c1) VALUES (1, 2), (NULL, 3), (-4, NULL), (0, 0), (7, 7)",
	} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	return s
}

func TestOraclesAgreeOnSQLite(t *testing.T) {
	for _, name := range []string{"norec", "tlp_where"} {
		s := sqliteSession(t, 11)
		o, err := New([]string{name}, Params[struct{}]{Session: s, Dialect: intDialect})
		if err != nil {
			t.Fatalf("new %s: %v", name, err)
		}
		for i := 0; i < 50; i++ {
			if err := o.Check(context.Background()); err != nil {
				t.Fatalf("%s probe %d: %v\nquery: %s", name, i, err, s.State.QueryString)
			}
		}
		if s.State.QueryString == "" {
			t.Fatalf("%s did not record the statement under test", name)
		}
	}
}

func mockSession(t *testing.T) (*session.Session[struct{}, schema.Schema], sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	s := newSession(5, twoColumns)
	s.SetConn(conn)
	t.Cleanup(func() { _ = s.Close() })
	return s, mock
}

func TestNoRECReportsMismatch(t *testing.T) {
	s, mock := mockSession(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM t0 WHERE`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT SUM\(CASE WHEN`).WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(2))

	err := NewNoREC(Params[struct{}]{Session: s, Dialect: intDialect}).Check(context.Background())
	var m *outcome.MismatchError
	if !errors.As(err, &m) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if m.Expected != "optimized count=3" || m.Actual != "unoptimized count=2" || len(m.SQL) != 2 {
		t.Fatalf("unexpected mismatch %+v", m)
	}
	if !strings.HasPrefix(s.State.QueryString, "SELECT COUNT(*) FROM t0 WHERE") {
		t.Fatalf("unexpected query string %s", s.State.QueryString)
	}
}

func TestNoRECNullSumIsZero(t *testing.T) {
	s, mock := mockSession(t)
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT SUM`).WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(nil))

	if err := NewNoREC(Params[struct{}]{Session: s, Dialect: intDialect}).Check(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestExpectedErrorDiscardsProbe(t *testing.T) {
	s, mock := mockSession(t)
	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("ERROR: integer out of range"))

	err := NewNoREC(Params[struct{}]{
		Session:  s,
		Dialect:  intDialect,
		Expected: query.ExpectedErrors{"out of range"},
	}).Check(context.Background())
	if outcome.Classify(err) != outcome.KindDiscard {
		t.Fatalf("expected discard, got %v", err)
	}
	if s.Counters.UnsuccessfulActions.Load() != 1 {
		t.Fatalf("unsuccessful=%d", s.Counters.UnsuccessfulActions.Load())
	}
}

func TestUnexpectedErrorIsFatal(t *testing.T) {
	s, mock := mockSession(t)
	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("server closed the connection"))

	err := NewNoREC(Params[struct{}]{Session: s, Dialect: intDialect}).Check(context.Background())
	var u *outcome.UnexpectedError
	if !errors.As(err, &u) {
		t.Fatalf("expected unexpected error, got %v", err)
	}
}

func TestTLPWhereReportsMissingRows(t *testing.T) {
	s, mock := mockSession(t)
	cols := []string{"c0", "c1"}
	mock.ExpectQuery(`SELECT t0.c0, t0.c1 FROM t0;`).WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 2).AddRow(3, nil))
	mock.ExpectQuery(`WHERE`).WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 2))
	mock.ExpectQuery(`WHERE NOT`).WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery(`IS NULL;`).WillReturnRows(sqlmock.NewRows(cols))

	err := NewTLPWhere(Params[struct{}]{Session: s, Dialect: intDialect}).Check(context.Background())
	var m *outcome.MismatchError
	if !errors.As(err, &m) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if len(m.SQL) != 4 || !strings.HasPrefix(m.Expected, "2 rows") || !strings.HasPrefix(m.Actual, "1 rows") {
		t.Fatalf("unexpected mismatch %+v", m)
	}
}

func TestNoTablesDiscards(t *testing.T) {
	s := newSession(1, schema.Schema{})
	conn, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	s.SetConn(conn)
	defer s.Close()
	err = NewTLPWhere(Params[struct{}]{Session: s, Dialect: intDialect}).Check(context.Background())
	if !outcome.IsDiscard(err) {
		t.Fatalf("expected discard, got %v", err)
	}
}

func TestReadRowsKeepsEmptyStringApartFromNull(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, "sqlite", "file:emptystrings?mode=memory")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer conn.Close()
	for _, stmt := range []string{"CREATE TABLE t(c TEXT)", "INSERT INTO t(c) VALUES ('x'), (''), (NULL)"} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	for _, tc := range []struct {
		text string
		want []string
	}{
		{"SELECT c FROM t ORDER BY c DESC", []string{`"x"`, `""`, "NULL"}},
		{"SELECT c FROM t ORDER BY c ASC", []string{"NULL", `""`, `"x"`}},
		{"SELECT c FROM t WHERE c = ''", []string{`""`}},
	} {
		rows, err := conn.QueryContext(ctx, tc.text)
		if err != nil {
			t.Fatalf("%s: %v", tc.text, err)
		}
		got, err := readRows(rows, 10)
		rows.Close()
		if err != nil {
			t.Fatalf("%s: %v", tc.text, err)
		}
		if strings.Join(got, "|") != strings.Join(tc.want, "|") {
			t.Fatalf("%s: got %v want %v", tc.text, got, tc.want)
		}
	}
}
