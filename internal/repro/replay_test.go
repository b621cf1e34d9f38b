package repro

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	_ "modernc.org/sqlite"
)

const failureLog = `--oracle NoREC mismatch: optimized count=1, unoptimized count=0
--lancer/internal/oracle.(*NoREC).Check
--	/src/internal/oracle/norec.go:41
-- Time: 2024/05/06 07:08:09
-- Database: database0
-- Database version: 3.45.1
-- seed value: 42
\c database0
CREATE TABLE t0(c0 INT, c1 TEXT);
INSERT INTO t0(c0, c1) VALUES (1, 'a;b'), (2, 'it''s');
UPDATE t0 SET c1 = '--x' WHERE c0 = 2;
SELECT COUNT(*) FROM t0 WHERE c0 > 0;
-- tables: t0(c0 INT, c1 TEXT)
`

func TestParseLogSkipsComments(t *testing.T) {
	steps, err := ParseLog(strings.NewReader(failureLog))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []Step{
		{Connect: "database0"},
		{SQL: "CREATE TABLE t0(c0 INT, c1 TEXT)"},
		{SQL: "INSERT INTO t0(c0, c1) VALUES (1, 'a;b'), (2, 'it''s')"},
		{SQL: "UPDATE t0 SET c1 = '--x' WHERE c0 = 2"},
		{SQL: "SELECT COUNT(*) FROM t0 WHERE c0 > 0"},
	}
	if len(steps) != len(want) {
		t.Fatalf("steps=%#v", steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("step %d=%#v want %#v", i, steps[i], want[i])
		}
	}
}

func TestSplitSQL(t *testing.T) {
	got := splitSQL("SELECT 1; /* a; b */ SELECT \"x;\" ;\n-- only a comment;\n;SELECT `y`")
	want := []string{"SELECT 1", "/* a; b */ SELECT \"x;\"", "SELECT `y`"}
	if len(got) != len(want) {
		t.Fatalf("split=%q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("split[%d]=%q want %q", i, got[i], want[i])
		}
	}
}

func writeLog(t *testing.T, content string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "logs/sqlite3/database0.log", []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return fs
}

func TestReplayRunsEveryStatement(t *testing.T) {
	var out bytes.Buffer
	n, err := Replay(context.Background(), Options{
		Driver: "sqlite",
		DSN:    ":memory:",
		Path:   "logs/sqlite3/database0.log",
		Fs:     writeLog(t, failureLog),
		Out:    &out,
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != 4 {
		t.Fatalf("executed=%d want 4", n)
	}
	if !strings.Contains(out.String(), "version=") {
		t.Fatalf("expected version line, got %q", out.String())
	}
}

func TestReplayReportsFirstError(t *testing.T) {
	content := "CREATE TABLE t0(c0 INT);\nINSERT INTO t1(c0) VALUES (1);\nINSERT INTO t0(c0) VALUES (1);\n"
	n, err := Replay(context.Background(), Options{
		Driver: "sqlite",
		DSN:    ":memory:",
		Path:   "logs/sqlite3/database0.log",
		Fs:     writeLog(t, content),
	})
	var stmtErr *StatementError
	if !errors.As(err, &stmtErr) {
		t.Fatalf("expected StatementError, got %v", err)
	}
	if n != 1 || stmtErr.Index != 2 || stmtErr.SQL != "INSERT INTO t1(c0) VALUES (1)" {
		t.Fatalf("n=%d err=%+v", n, stmtErr)
	}
}

func TestReplayRequiresPath(t *testing.T) {
	if _, err := Replay(context.Background(), Options{Driver: "sqlite", DSN: ":memory:"}); err == nil {
		t.Fatalf("expected error without log path")
	}
}
