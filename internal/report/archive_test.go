package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

func TestArchiveFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := NewLogDir(fs, "logs", "postgres", &bytes.Buffer{})
	l, err := dir.Logger("database0", false)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	defer CloseLogger(l)
	st := sampleState()
	failure := errors.New("NoREC: result mismatch")
	if err := l.LogException(failure, st); err != nil {
		t.Fatalf("log exception: %v", err)
	}
	c, err := l.ArchiveFailure("postgres", st, failure)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !strings.HasPrefix(c.Archive, "logs/postgres/cases/database0-") || !strings.HasSuffix(c.Archive, CaseArchiveExt) {
		t.Fatalf("unexpected archive path %s", c.Archive)
	}
	files, err := ReadArchive(fs, c.Archive)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	for _, name := range []string{"summary.json", "repro.sql", "database0.log"} {
		if _, ok := files[name]; !ok {
			t.Fatalf("archive missing %s", name)
		}
	}
	var summary Summary
	if err := json.Unmarshal(files["summary.json"], &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Seed != 42 || summary.Provider != "postgres" || summary.Statements != 2 || summary.CaseID != c.ID {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !strings.Contains(string(files["repro.sql"]), "SELECT COUNT(*) FROM t0 WHERE c0;") {
		t.Fatalf("replay script missing statement under test")
	}
}
