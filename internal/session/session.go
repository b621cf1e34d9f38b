// Package session holds the per-database execution context of one fuzzing
// iteration and the error-classified statement executor built on it.
package session

import (
	"context"
	"database/sql"
	"io"
	"math/rand"
	"os"

	"lancer/internal/config"
	"lancer/internal/report"
	"lancer/internal/repro"
	"lancer/internal/stats"
	"lancer/internal/util"
)

// Conn is the connection a session executes on.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	Close() error
}

// SchemaFunc reads the current schema from the database.
type SchemaFunc[S any] func(ctx context.Context, conn Conn) (S, error)

// Session is owned by exactly one goroutine. O is the provider option type
// and S its schema type.
type Session[O, S any] struct {
	Conn         Conn
	Rand         *rand.Rand
	Options      O
	Main         config.Config
	Logger       *report.StateLogger
	State        *repro.State
	Counters     *stats.Counters
	DatabaseName string
	// Out receives echoed statements. Nil means stdout.
	Out io.Writer

	refresh     SchemaFunc[S]
	schema      S
	schemaValid bool
}

// Params groups the dependencies of New.
type Params[O, S any] struct {
	Options  O
	Main     config.Config
	Seed     int64
	Database string
	Logger   *report.StateLogger
	State    *repro.State
	Counters *stats.Counters
	Refresh  SchemaFunc[S]
}

// New builds a session without a connection; see SetConn.
func New[O, S any](p Params[O, S]) *Session[O, S] {
	st := p.State
	if st == nil {
		st = repro.NewState(p.Database, p.Seed)
	}
	counters := p.Counters
	if counters == nil {
		counters = &stats.Counters{}
	}
	return &Session[O, S]{
		Rand:         util.NewRand(p.Seed),
		Options:      p.Options,
		Main:         p.Main,
		Logger:       p.Logger,
		State:        st,
		Counters:     counters,
		DatabaseName: p.Database,
		refresh:      p.Refresh,
	}
}

// SetConn installs conn, closing any previous connection, and invalidates
// the schema cache.
func (s *Session[O, S]) SetConn(conn Conn) {
	if s.Conn != nil && s.Conn != conn {
		util.CloseWithErr(s.Conn, "session connection")
	}
	s.Conn = conn
	s.InvalidateSchema()
}

// Close releases the connection.
func (s *Session[O, S]) Close() error {
	if s.Conn == nil {
		return nil
	}
	err := s.Conn.Close()
	s.Conn = nil
	return err
}

// Schema returns the cached schema, rebuilding it when invalid.
func (s *Session[O, S]) Schema(ctx context.Context) (S, error) {
	if s.schemaValid {
		return s.schema, nil
	}
	return s.RefreshSchema(ctx)
}

// RefreshSchema rebuilds the schema cache synchronously.
func (s *Session[O, S]) RefreshSchema(ctx context.Context) (S, error) {
	var zero S
	if s.refresh == nil {
		return zero, nil
	}
	schema, err := s.refresh(ctx, s.Conn)
	if err != nil {
		s.schemaValid = false
		return zero, err
	}
	s.schema = schema
	s.schemaValid = true
	return schema, nil
}

// InvalidateSchema forces the next Schema call to rebuild.
func (s *Session[O, S]) InvalidateSchema() {
	var zero S
	s.schema = zero
	s.schemaValid = false
}

func (s *Session[O, S]) out() io.Writer {
	if s.Out != nil {
		return s.Out
	}
	return os.Stdout
}
