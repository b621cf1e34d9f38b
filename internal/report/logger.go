// Package report writes reproduction logs and failure archives.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"lancer/internal/repro"
	"lancer/internal/util"
)

const timeLayout = "2006/01/02 15:04:05"

// LogDir is the per-provider log directory of one run. The first logger
// created from it empties the directory.
type LogDir struct {
	fs      afero.Fs
	path    string
	console io.Writer

	once    sync.Once
	initErr error
}

// NewLogDir returns the directory <root>/<provider>. Failure logs are
// mirrored to console; nil means stderr.
func NewLogDir(fs afero.Fs, root, provider string, console io.Writer) *LogDir {
	if console == nil {
		console = os.Stderr
	}
	return &LogDir{fs: fs, path: filepath.Join(root, provider), console: console}
}

// Path returns the directory path.
func (d *LogDir) Path() string { return d.path }

// Fs returns the backing filesystem.
func (d *LogDir) Fs() afero.Fs { return d.fs }

func (d *LogDir) init() error {
	d.once.Do(func() {
		if err := d.fs.MkdirAll(d.path, 0o755); err != nil {
			d.initErr = errors.Wrapf(err, "create log dir %s", d.path)
			return
		}
		entries, err := afero.ReadDir(d.fs, d.path)
		if err != nil {
			d.initErr = errors.Wrapf(err, "list log dir %s", d.path)
			return
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if err := d.fs.Remove(filepath.Join(d.path, entry.Name())); err != nil {
				d.initErr = errors.Wrapf(err, "clear log dir %s", d.path)
				return
			}
		}
	})
	return d.initErr
}

// Logger opens the logger of one iteration of database. With logEachSelect
// the running log <database>-cur.log is truncated.
func (d *LogDir) Logger(database string, logEachSelect bool) (*StateLogger, error) {
	if err := d.init(); err != nil {
		return nil, err
	}
	l := &StateLogger{
		dir:           d,
		database:      database,
		logEachSelect: logEachSelect,
		now:           time.Now,
	}
	if logEachSelect {
		f, err := d.fs.OpenFile(l.CurrentPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, "open running log")
		}
		l.cur = f
	}
	return l, nil
}

// StateLogger writes the logs of one iteration. It is not safe for
// concurrent use; each session owns its logger.
type StateLogger struct {
	dir           *LogDir
	database      string
	logEachSelect bool
	now           func() time.Time

	log afero.File
	cur afero.File
}

// LogPath returns the path of the failure log.
func (l *StateLogger) LogPath() string {
	return filepath.Join(l.dir.path, l.database+".log")
}

// CurrentPath returns the path of the running log.
func (l *StateLogger) CurrentPath() string {
	return filepath.Join(l.dir.path, l.database+"-cur.log")
}

// LogsEachStatement reports whether the running log is enabled.
func (l *StateLogger) LogsEachStatement() bool { return l.logEachSelect }

// WriteCurrent appends one line to the running log.
func (l *StateLogger) WriteCurrent(line string) error {
	if l.cur == nil {
		return errors.New("running log is disabled")
	}
	_, err := io.WriteString(l.cur, line+"\n")
	return err
}

// WriteCurrentState checkpoints st into the running log.
func (l *StateLogger) WriteCurrentState(st *repro.State) error {
	if l.cur == nil {
		return errors.New("running log is disabled")
	}
	return WriteState(l.cur, st, l.now())
}

// LogException writes the failure log: the error with its stack, every line
// commented out, followed by the reproduction state.
func (l *StateLogger) LogException(failure error, st *repro.State) error {
	if l.log == nil {
		f, err := l.dir.fs.OpenFile(l.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrap(err, "open failure log")
		}
		l.log = f
	}
	w := io.MultiWriter(l.log, l.dir.console)
	if _, err := io.WriteString(w, commentBlock(fmt.Sprintf("%+v", failure))); err != nil {
		return err
	}
	return WriteState(w, st, l.now())
}

// Close releases both files.
func (l *StateLogger) Close() error {
	var firstErr error
	for _, f := range []afero.File{l.cur, l.log} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.cur, l.log = nil, nil
	return firstErr
}

// WriteState renders st as a replayable SQL script with a commented header.
func WriteState(w io.Writer, st *repro.State, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "-- Time: %s\n", now.Format(timeLayout))
	fmt.Fprintf(&b, "-- Database: %s\n", st.DatabaseName)
	fmt.Fprintf(&b, "-- Database version: %s\n", st.DatabaseVersion)
	fmt.Fprintf(&b, "-- seed value: %d\n", st.Seed)
	for _, stmt := range st.Statements() {
		b.WriteString(terminate(stmt))
		b.WriteByte('\n')
	}
	if st.QueryString != "" {
		b.WriteString(terminate(st.QueryString))
		b.WriteByte('\n')
	}
	for _, line := range st.ProviderState {
		b.WriteString("-- ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func terminate(stmt string) string {
	if strings.HasSuffix(stmt, ";") {
		return stmt
	}
	return stmt + ";"
}

func commentBlock(text string) string {
	text = strings.TrimRight(text, "\n")
	return "--" + strings.ReplaceAll(text, "\n", "\n--") + "\n"
}

// CloseLogger closes l and logs any error.
func CloseLogger(l *StateLogger) {
	if l == nil {
		return
	}
	util.CloseWithErr(l, "state logger "+l.database)
}
