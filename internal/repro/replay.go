package repro

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"lancer/internal/db"
	"lancer/internal/util"
)

// Step is one entry of a replay script: either a statement or a switch to
// another database (a psql style "\c name" line).
type Step struct {
	SQL     string
	Connect string
}

// ParseLog extracts the replayable steps from a failure or running log.
// Comment lines, which hold the header, the stack trace and the provider
// state, are skipped.
func ParseLog(r io.Reader) ([]Step, error) {
	var (
		steps []Step
		buf   strings.Builder
	)
	flush := func() {
		for _, stmt := range splitSQL(buf.String()) {
			steps = append(steps, Step{SQL: stmt})
		}
		buf.Reset()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "--"):
			continue
		case strings.HasPrefix(trimmed, `\c `):
			flush()
			steps = append(steps, Step{Connect: strings.TrimSpace(trimmed[3:])})
			continue
		case strings.HasPrefix(trimmed, `\`):
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read log")
	}
	flush()
	return steps, nil
}

// Options configures a replay.
type Options struct {
	Driver string
	DSN    string
	Path   string
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// SwitchDatabase maps a "\c name" step to the DSN to reconnect with. When
	// nil those steps are ignored.
	SwitchDatabase func(database string) (string, error)
	Out            io.Writer
}

// StatementError reports the first statement of a replay that failed.
type StatementError struct {
	Index int
	SQL   string
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d failed: %v\n%s", e.Index, e.Err, e.SQL)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Replay runs the statements of a log in order and stops at the first
// error, which is returned as *StatementError. It returns the number of
// statements that succeeded.
func Replay(ctx context.Context, opts Options) (int, error) {
	if opts.Path == "" {
		return 0, errors.New("log path is required")
	}
	if opts.DSN == "" {
		return 0, errors.New("dsn is required")
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	f, err := opts.Fs.Open(opts.Path)
	if err != nil {
		return 0, errors.Wrap(err, "open log")
	}
	steps, err := ParseLog(f)
	util.CloseWithErr(f, "log file")
	if err != nil {
		return 0, err
	}

	conn, err := db.Open(ctx, opts.Driver, opts.DSN)
	if err != nil {
		return 0, err
	}
	defer func() { util.CloseWithErr(conn, "replay db") }()
	printVersion(ctx, conn, opts.Out)

	executed := 0
	for _, step := range steps {
		if step.Connect != "" {
			if opts.SwitchDatabase == nil {
				util.Warnf("ignoring switch to database %s", step.Connect)
				continue
			}
			dsn, err := opts.SwitchDatabase(step.Connect)
			if err != nil {
				return executed, err
			}
			next, err := db.Open(ctx, opts.Driver, dsn)
			if err != nil {
				return executed, errors.Wrapf(err, "connect to %s", step.Connect)
			}
			util.CloseWithErr(conn, "replay db")
			conn = next
			fmt.Fprintf(opts.Out, "connected to %s\n", step.Connect)
			continue
		}
		if _, err := conn.ExecContext(ctx, step.SQL); err != nil {
			return executed, &StatementError{Index: executed + 1, SQL: step.SQL, Err: err}
		}
		executed++
	}
	fmt.Fprintf(opts.Out, "replayed %d statement(s) without error\n", executed)
	return executed, nil
}

var versionQueries = []string{"SELECT version()", "SELECT sqlite_version()"}

func printVersion(ctx context.Context, conn *db.DB, out io.Writer) {
	for _, q := range versionQueries {
		var v string
		if err := conn.QueryRowContext(ctx, q).Scan(&v); err == nil && strings.TrimSpace(v) != "" {
			fmt.Fprintf(out, "version=%s\n", strings.ReplaceAll(v, "\n", " "))
			return
		}
	}
}
