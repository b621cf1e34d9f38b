// Package postgres fuzzes PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"lancer/internal/action"
	"lancer/internal/config"
	"lancer/internal/db"
	"lancer/internal/generator"
	"lancer/internal/oracle"
	"lancer/internal/provider"
	"lancer/internal/query"
	"lancer/internal/schema"
	"lancer/internal/session"
	"lancer/internal/util"
)

// Name is the registry name of the provider.
const Name = "postgres"

// Session is a PostgreSQL fuzzing session.
type Session = session.Session[config.Postgres, schema.Schema]

// Action is a PostgreSQL catalog entry.
type Action = action.Action[config.Postgres, schema.Schema]

// bootstrap runs on every fresh database.
var bootstrap = []string{
	"CREATE EXTENSION IF NOT EXISTS pg_prewarm",
	"SET max_parallel_workers_per_gather=16",
}

const (
	columnsQuery = `SELECT c.table_name, c.column_name, c.data_type, c.is_nullable, t.table_type
FROM information_schema.columns c
JOIN information_schema.tables t ON c.table_schema = t.table_schema AND c.table_name = t.table_name
WHERE c.table_schema = 'public' OR c.table_schema LIKE 'pg_temp%'
ORDER BY c.table_name, c.ordinal_position`
	indexesQuery   = `SELECT tablename, indexname FROM pg_indexes WHERE schemaname = 'public' OR schemaname LIKE 'pg_temp%'`
	collationQuery = `SELECT collname FROM pg_collation WHERE collname LIKE '%utf8' OR collname = 'C'`
)

// Provider implements provider.Provider for PostgreSQL.
type Provider struct {
	cfg     config.Postgres
	actions []Action

	collationOnce sync.Once
	collations    []string
	collationErr  error
}

var _ provider.Provider[config.Postgres, schema.Schema] = (*Provider)(nil)

// New returns a provider for cfg.
func New(cfg config.Postgres) *Provider {
	return &Provider{cfg: cfg, actions: Actions()}
}

// Factory adapts New to the registry.
func Factory(cfg config.Config) (provider.Fuzzer, error) {
	if len(cfg.Postgres.Oracles) == 0 {
		return nil, errors.New("postgres: no oracle configured")
	}
	return provider.NewAdapter[config.Postgres, schema.Schema](New(cfg.Postgres)), nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return Name }

// Options implements provider.Provider.
func (p *Provider) Options() config.Postgres { return p.cfg }

// DSN returns the lib/pq connection URL for database.
func DSN(cfg config.Postgres, database string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + database,
	}
	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// CreateDatabase drops and recreates the session database from the
// bootstrap database, then connects to it and applies the bootstrap
// settings.
func (p *Provider) CreateDatabase(ctx context.Context, s *Session) (session.Conn, error) {
	name := s.DatabaseName
	suffix, err := p.createOptions(ctx, s)
	if err != nil {
		return nil, err
	}
	s.State.Log(`\c ` + p.cfg.BootstrapDB)
	if err := db.RecreateDatabase(ctx, "postgres", DSN(p.cfg, p.cfg.BootstrapDB), name, suffix, s.State.Log); err != nil {
		return nil, describe(err)
	}
	s.State.Log(`\c ` + name)
	conn, err := db.Open(ctx, "postgres", DSN(p.cfg, name))
	if err != nil {
		return nil, describe(err)
	}
	for _, stmt := range bootstrap {
		s.State.Log(stmt)
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			util.CloseWithErr(conn, "postgres connection")
			return nil, describe(errors.Wrapf(err, "%s", stmt))
		}
	}
	return conn, nil
}

// createOptions picks the encoding and collation of a new database when
// collation testing is on.
func (p *Provider) createOptions(ctx context.Context, s *Session) (string, error) {
	if !p.cfg.TestCollations || !util.Chance(s.Rand, 50) {
		return "", nil
	}
	collations, err := p.loadCollations(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if util.Chance(s.Rand, 50) {
		b.WriteString("WITH ENCODING 'utf8'")
	}
	for _, lc := range []string{"LC_COLLATE", "LC_CTYPE"} {
		if len(collations) > 0 && util.Chance(s.Rand, 50) {
			fmt.Fprintf(&b, " %s = '%s'", lc, util.FromOptions(s.Rand, collations...))
		}
	}
	b.WriteString(" TEMPLATE template0")
	return b.String(), nil
}

func (p *Provider) loadCollations(ctx context.Context) ([]string, error) {
	p.collationOnce.Do(func() {
		conn, err := db.Open(ctx, "postgres", DSN(p.cfg, p.cfg.BootstrapDB))
		if err != nil {
			p.collationErr = describe(err)
			return
		}
		defer util.CloseWithErr(conn, "postgres connection")
		rows, err := conn.QueryContext(ctx, collationQuery)
		if err != nil {
			p.collationErr = describe(err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				p.collationErr = err
				return
			}
			p.collations = append(p.collations, name)
		}
		p.collationErr = rows.Err()
	})
	return p.collations, p.collationErr
}

// describe adds the SQLSTATE of a server error to its message.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return errors.Wrapf(err, "postgres %s (%s)", pqErr.Code, pqErr.Code.Name())
	}
	return err
}

// Version implements provider.Provider.
func (p *Provider) Version(ctx context.Context, conn session.Conn) string {
	rows, err := conn.QueryContext(ctx, "SELECT version()")
	if err != nil {
		return "unknown"
	}
	defer rows.Close()
	var v string
	if rows.Next() && rows.Scan(&v) == nil {
		return v
	}
	return "unknown"
}

// RefreshSchema implements provider.Provider.
func (p *Provider) RefreshSchema(ctx context.Context, conn session.Conn) (schema.Schema, error) {
	return ReadSchema(ctx, conn)
}

// ReadSchema lists the public and temporary tables of the connected database.
func ReadSchema(ctx context.Context, conn session.Conn) (schema.Schema, error) {
	cols, err := provider.ReadColumns(ctx, conn, columnsQuery)
	if err != nil {
		return schema.Schema{}, err
	}
	idx, err := provider.ReadIndexes(ctx, conn, indexesQuery)
	if err != nil {
		return schema.Schema{}, err
	}
	return schema.Build(cols, idx, mapType), nil
}

// Actions implements provider.Provider.
func (p *Provider) Actions() []Action { return p.actions }

// GenerateDatabase creates one or two tables, runs one round of the action
// catalog and settles the session.
func (p *Provider) GenerateDatabase(ctx context.Context, s *Session) error {
	want := util.FromOptions(s.Rand, 1, 2)
	if err := provider.CreateTables(ctx, s, want, 50, func(name string) (query.Query, error) {
		return createTable(s, name)
	}); err != nil {
		return err
	}
	round := action.NewScheduler(p.actions, provider.RequireTables[config.Postgres]())
	if err := round.Run(ctx, s); err != nil {
		return err
	}
	for _, stmt := range []struct {
		text    string
		refresh bool
	}{
		{"COMMIT", true},
		{"SET SESSION statement_timeout = 5000", false},
	} {
		q, err := query.New(stmt.text, nil, stmt.refresh)
		if err != nil {
			return err
		}
		if _, err := s.Execute(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Oracle implements provider.Provider.
func (p *Provider) Oracle(s *Session) (oracle.Oracle, error) {
	return oracle.New(p.cfg.Oracles, oracle.Params[config.Postgres]{
		Session:  s,
		Dialect:  Dialect,
		Expected: ExpressionErrors,
	})
}

// DumpState implements provider.Provider.
func (p *Provider) DumpState(ctx context.Context, s *Session) []string {
	sch, err := s.RefreshSchema(ctx)
	if err != nil {
		return []string{fmt.Sprintf("schema unavailable: %v", err)}
	}
	return provider.DescribeSchema(sch)
}

func gen(s *Session) *generator.Generator {
	return generator.New(s.Rand, Dialect)
}

func createTable(s *Session, name string) (query.Query, error) {
	prefix := util.FromOptions(s.Rand, "CREATE TABLE", "CREATE TABLE", "CREATE TEMP TABLE", "CREATE UNLOGGED TABLE")
	text := gen(s).CreateTable(name, generator.TableOptions{Prefix: prefix, MaxColumns: 4})
	return query.New(text, ExpressionErrors.With("already exists", "multiple primary keys", "cannot be used"), true)
}
