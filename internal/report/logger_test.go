package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"lancer/internal/repro"
)

func sampleState() *repro.State {
	st := repro.NewState("database0", 42)
	st.DatabaseVersion = "PostgreSQL 16.2"
	st.Log("CREATE TABLE t0(c0 INT);")
	st.Log("INSERT INTO t0(c0) VALUES (1)")
	st.QueryString = "SELECT COUNT(*) FROM t0 WHERE c0"
	st.ProviderState = []string{"extensions: pg_prewarm"}
	return st
}

func TestWriteStateLayout(t *testing.T) {
	var b bytes.Buffer
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	if err := WriteState(&b, sampleState(), now); err != nil {
		t.Fatalf("write state: %v", err)
	}
	want := strings.Join([]string{
		"-- Time: 2024/05/06 07:08:09",
		"-- Database: database0",
		"-- Database version: PostgreSQL 16.2",
		"-- seed value: 42",
		"CREATE TABLE t0(c0 INT);",
		"INSERT INTO t0(c0) VALUES (1);",
		"SELECT COUNT(*) FROM t0 WHERE c0;",
		"-- extensions: pg_prewarm",
		"",
	}, "\n")
	if b.String() != want {
		t.Fatalf("unexpected state:\n%s\nwant:\n%s", b.String(), want)
	}
}

func TestLogDirClearsOnlyOnce(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "logs/postgres/stale.log", []byte("old"), 0o644); err != nil {
		t.Fatalf("seed stale file: %v", err)
	}
	if err := fs.MkdirAll("logs/postgres/keep", 0o755); err != nil {
		t.Fatalf("seed dir: %v", err)
	}
	dir := NewLogDir(fs, "logs", "postgres", &bytes.Buffer{})
	first, err := dir.Logger("database0", false)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	defer CloseLogger(first)
	if ok, _ := afero.Exists(fs, "logs/postgres/stale.log"); ok {
		t.Fatalf("expected stale log to be removed")
	}
	if ok, _ := afero.DirExists(fs, "logs/postgres/keep"); !ok {
		t.Fatalf("sub directories must survive")
	}
	if err := first.LogException(errors.New("boom"), sampleState()); err != nil {
		t.Fatalf("log exception: %v", err)
	}
	second, err := dir.Logger("database1", false)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	defer CloseLogger(second)
	if ok, _ := afero.Exists(fs, "logs/postgres/database0.log"); !ok {
		t.Fatalf("second logger must not clear the directory")
	}
}

func TestLogExceptionMirrorsToConsole(t *testing.T) {
	fs := afero.NewMemMapFs()
	var console bytes.Buffer
	dir := NewLogDir(fs, "logs", "sqlite3", &console)
	l, err := dir.Logger("database3", false)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if err := l.LogException(errors.New("mismatch\nsecond line"), sampleState()); err != nil {
		t.Fatalf("log exception: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	content, err := afero.ReadFile(fs, "logs/sqlite3/database3.log")
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !bytes.Equal(content, console.Bytes()) {
		t.Fatalf("console output differs from failure log")
	}
	text := string(content)
	if !strings.HasPrefix(text, "--mismatch\n--second line\n") {
		t.Fatalf("expected commented error block, got %q", text)
	}
	if !strings.Contains(text, "-- seed value: 42\n") || !strings.Contains(text, "CREATE TABLE t0(c0 INT);\n") {
		t.Fatalf("state missing from failure log: %q", text)
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if strings.HasPrefix(line, "\t") {
			t.Fatalf("stack lines must be commented out: %q", line)
		}
	}
}

func TestRunningLogIsTruncatedPerIteration(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := NewLogDir(fs, "logs", "postgres", &bytes.Buffer{})
	l, err := dir.Logger("database0", true)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if err := l.WriteCurrent("SELECT 1;"); err != nil {
		t.Fatalf("write current: %v", err)
	}
	CloseLogger(l)
	l, err = dir.Logger("database0", true)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if err := l.WriteCurrent("SELECT 2; -- 3ms"); err != nil {
		t.Fatalf("write current: %v", err)
	}
	CloseLogger(l)
	content, err := afero.ReadFile(fs, "logs/postgres/database0-cur.log")
	if err != nil {
		t.Fatalf("read running log: %v", err)
	}
	if string(content) != "SELECT 2; -- 3ms\n" {
		t.Fatalf("unexpected running log %q", content)
	}
}

func TestWriteCurrentDisabled(t *testing.T) {
	dir := NewLogDir(afero.NewMemMapFs(), "logs", "postgres", &bytes.Buffer{})
	l, err := dir.Logger("database0", false)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if err := l.WriteCurrent("SELECT 1;"); err == nil {
		t.Fatalf("expected error when running log is disabled")
	}
}
