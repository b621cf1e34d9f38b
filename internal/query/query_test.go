package query

import (
	"errors"
	"testing"

	"lancer/internal/outcome"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1;"},
		{"SELECT 1;", "SELECT 1;"},
		{"SELECT 1 -- comment", "SELECT 1 -- comment"},
		{"", ";"},
	}
	for _, c := range cases {
		if got := Canonicalize(c.in); got != c.want {
			t.Fatalf("Canonicalize(%q)=%q, want %q", c.in, got, c.want)
		}
	}
}

func TestNewRejectsSchemaStatementWithoutFlag(t *testing.T) {
	for _, text := range []string{
		"CREATE TABLE t0(c0 INT)",
		"create temp table t1(c0 INT)",
		"CREATE UNLOGGED TABLE t2(c0 INT)",
		"ALTER TABLE t0 ADD COLUMN c1 INT",
		"DROP VIEW v0",
		"CREATE VIEW v0 AS SELECT 1",
	} {
		_, err := New(text, nil, false)
		var ce *outcome.ConstructionError
		if !errors.As(err, &ce) {
			t.Fatalf("expected construction error for %q, got %v", text, err)
		}
		if outcome.Classify(err) != outcome.KindFatal {
			t.Fatalf("construction error must be fatal for %q", text)
		}
	}
}

func TestNewAcceptsSchemaStatementWithFlag(t *testing.T) {
	q, err := New("CREATE TABLE t0(c0 INT)", nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.AffectsSchema() {
		t.Fatalf("expected schema flag")
	}
	if q.Text() != "CREATE TABLE t0(c0 INT);" {
		t.Fatalf("unexpected text %q", q.Text())
	}
}

func TestNewAcceptsNonSchemaStatement(t *testing.T) {
	if _, err := Plain("INSERT INTO t0(c0) VALUES (1)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Plain("SELECT * FROM tablespace_info"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestToleratesSubstringAnywhere(t *testing.T) {
	q, err := New("SELECT 1/0", ExpectedErrors{"division by zero", "out of range"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Tolerates(errors.New("division by zero")) {
		t.Fatalf("expected exact match to be tolerated")
	}
	if !q.Tolerates(errors.New("pq: ERROR: division by zero (SQLSTATE 22012)")) {
		t.Fatalf("expected mid-string match to be tolerated")
	}
	if q.Tolerates(errors.New("Division By Zero")) {
		t.Fatalf("matching must be case sensitive")
	}
	if q.Tolerates(errors.New("syntax error")) {
		t.Fatalf("unexpected tolerance for unrelated error")
	}
}

func TestExpectedIsCopied(t *testing.T) {
	expected := ExpectedErrors{"a"}
	q, err := New("SELECT 1", expected, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected[0] = "b"
	if q.Expected()[0] != "a" {
		t.Fatalf("query must not alias the caller's slice")
	}
}
