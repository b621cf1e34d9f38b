package report

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"lancer/internal/repro"
	"lancer/internal/runinfo"
	"lancer/internal/util"
)

const (
	CaseArchiveExt   = ".tar.zst"
	CaseArchiveCodec = "zstd"
	casesDir         = "cases"
)

// Summary is the machine-readable description of a failure.
type Summary struct {
	CaseID          string        `json:"case_id"`
	Provider        string        `json:"provider"`
	Database        string        `json:"database"`
	DatabaseVersion string        `json:"database_version"`
	Seed            int64         `json:"seed"`
	Error           string        `json:"error"`
	QueryString     string        `json:"query_string,omitempty"`
	Statements      int           `json:"statements"`
	ArchiveCodec    string        `json:"archive_codec"`
	Timestamp       string        `json:"timestamp"`
	Run             *runinfo.Info `json:"run,omitempty"`
}

var currentRun = sync.OnceValue(func() *runinfo.Info { return runinfo.FromEnv(os.LookupEnv) })

// Case is a written failure archive.
type Case struct {
	ID      string
	Archive string
	Summary Summary
}

func newCaseID() string {
	if v7, err := uuid.NewV7(); err == nil {
		return v7.String()
	}
	return uuid.New().String()
}

// ArchiveFailure packs the failure log, a bare replay script and a summary
// into <dir>/cases/<database>-<id>.tar.zst.
func (l *StateLogger) ArchiveFailure(provider string, st *repro.State, failure error) (Case, error) {
	id := newCaseID()
	summary := Summary{
		CaseID:          id,
		Provider:        provider,
		Database:        st.DatabaseName,
		DatabaseVersion: st.DatabaseVersion,
		Seed:            st.Seed,
		Error:           failure.Error(),
		QueryString:     st.QueryString,
		Statements:      st.Len(),
		ArchiveCodec:    CaseArchiveCodec,
		Timestamp:       l.now().UTC().Format(time.RFC3339),
		Run:             currentRun(),
	}
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return Case{}, err
	}
	if l.log != nil {
		if err := l.log.Sync(); err != nil {
			util.Warnf("sync failure log: %v", err)
		}
	}
	logContent, err := afero.ReadFile(l.dir.fs, l.LogPath())
	if err != nil && !os.IsNotExist(err) {
		return Case{}, errors.Wrap(err, "read failure log")
	}
	var script strings.Builder
	if err := WriteState(&script, st, l.now()); err != nil {
		return Case{}, err
	}
	entries := []archiveEntry{
		{name: "summary.json", data: append(summaryJSON, '\n')},
		{name: "repro.sql", data: []byte(script.String())},
	}
	if len(logContent) > 0 {
		entries = append(entries, archiveEntry{name: st.DatabaseName + ".log", data: logContent})
	}
	path := filepath.Join(l.dir.path, casesDir, st.DatabaseName+"-"+id+CaseArchiveExt)
	if err := writeArchive(l.dir.fs, path, entries, l.now()); err != nil {
		return Case{}, err
	}
	return Case{ID: id, Archive: path, Summary: summary}, nil
}

type archiveEntry struct {
	name string
	data []byte
}

func writeArchive(fs afero.Fs, path string, entries []archiveEntry, modTime time.Time) (err error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(zw)
	for _, entry := range entries {
		header := &tar.Header{
			Name:    entry.name,
			Mode:    0o644,
			Size:    int64(len(entry.data)),
			ModTime: modTime,
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if _, err := tw.Write(entry.data); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, buf.Bytes(), 0o644)
}

// ReadArchive lists the files of a case archive.
func ReadArchive(fs afero.Fs, path string) (map[string][]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer util.CloseWithErr(f, "case archive")
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out := make(map[string][]byte)
	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		var b bytes.Buffer
		if _, err := io.Copy(&b, tr); err != nil {
			return nil, err
		}
		out[header.Name] = b.Bytes()
	}
}
