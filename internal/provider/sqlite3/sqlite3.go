// Package sqlite3 fuzzes SQLite through the pure Go modernc.org/sqlite
// driver. Each database is a file under the configured directory.
package sqlite3

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

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
const Name = "sqlite3"

// Session is a SQLite fuzzing session.
type Session = session.Session[config.SQLite, schema.Schema]

// Action is a SQLite catalog entry.
type Action = action.Action[config.SQLite, schema.Schema]

// Dialect is the expression syntax used for SQLite.
var Dialect = generator.Dialect{
	Name:           "sqlite3",
	ColumnTypes:    []schema.ColumnType{schema.TypeInt, schema.TypeText, schema.TypeReal},
	TypeName:       typeName,
	ConcatOp:       "||",
	PartialIndexes: true,
	CheckClauses:   true,
	IntFunctions:   []string{"ABS", "UNICODE", "LENGTH"},
	TextFunctions:  []string{"LOWER", "UPPER", "TRIM", "LTRIM", "RTRIM", "HEX", "QUOTE"},
	RealFunctions:  []string{"ABS", "ROUND"},
}

// ExpressionErrors are raised by well-typed expressions on unlucky data.
var ExpressionErrors = query.ExpectedErrors{
	"integer overflow",
	"parser stack overflow",
	"too many levels of trigger recursion",
}

func typeName(t schema.ColumnType) string {
	switch t {
	case schema.TypeInt:
		return "INT"
	case schema.TypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

// mapType applies the SQLite affinity rules to a declared type.
func mapType(declared string) schema.ColumnType {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "INT"):
		return schema.TypeInt
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return schema.TypeText
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return schema.TypeReal
	default:
		return schema.TypeUnknown
	}
}

// Provider implements provider.Provider for SQLite.
type Provider struct {
	cfg     config.SQLite
	actions []Action
}

var _ provider.Provider[config.SQLite, schema.Schema] = (*Provider)(nil)

// New returns a provider for cfg.
func New(cfg config.SQLite) *Provider {
	return &Provider{cfg: cfg, actions: Actions()}
}

// Factory adapts New to the registry.
func Factory(cfg config.Config) (provider.Fuzzer, error) {
	if err := os.MkdirAll(cfg.SQLite.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", cfg.SQLite.Dir)
	}
	return provider.NewAdapter[config.SQLite, schema.Schema](New(cfg.SQLite)), nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return Name }

// Options implements provider.Provider.
func (p *Provider) Options() config.SQLite { return p.cfg }

// Path returns the database file of database.
func (p *Provider) Path(database string) string {
	return filepath.Join(p.cfg.Dir, database+".db")
}

// CreateDatabase removes the previous file of the database and opens a new one.
func (p *Provider) CreateDatabase(ctx context.Context, s *Session) (session.Conn, error) {
	path := p.Path(s.DatabaseName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "remove %s", path)
	}
	return db.Open(ctx, "sqlite", path)
}

// Version implements provider.Provider.
func (p *Provider) Version(ctx context.Context, conn session.Conn) string {
	rows, err := conn.QueryContext(ctx, "SELECT sqlite_version()")
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

const (
	tablesQuery = `SELECT name, type, 0 FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
UNION ALL
SELECT name, type, 1 FROM sqlite_temp_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
ORDER BY name`
	indexesQuery = `SELECT tbl_name, name FROM sqlite_master WHERE type = 'index' AND name NOT LIKE 'sqlite_autoindex%'
UNION ALL
SELECT tbl_name, name FROM sqlite_temp_master WHERE type = 'index' AND name NOT LIKE 'sqlite_autoindex%'`
)

type master struct {
	name string
	view bool
	temp bool
}

// ReadSchema lists tables and views from sqlite_master and their columns
// through PRAGMA table_info.
func ReadSchema(ctx context.Context, conn session.Conn) (schema.Schema, error) {
	rows, err := conn.QueryContext(ctx, tablesQuery)
	if err != nil {
		return schema.Schema{}, errors.Wrap(err, "list tables")
	}
	var objects []master
	for rows.Next() {
		var (
			name, typ string
			temp      int
		)
		if err := rows.Scan(&name, &typ, &temp); err != nil {
			rows.Close()
			return schema.Schema{}, errors.Wrap(err, "scan table")
		}
		objects = append(objects, master{name: name, view: typ == "view", temp: temp == 1})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return schema.Schema{}, errors.Wrap(err, "list tables")
	}

	var columns []schema.CatalogColumn
	for _, obj := range objects {
		cols, err := tableInfo(ctx, conn, obj)
		if err != nil {
			return schema.Schema{}, err
		}
		columns = append(columns, cols...)
	}
	indexes, err := provider.ReadIndexes(ctx, conn, indexesQuery)
	if err != nil {
		return schema.Schema{}, err
	}
	return schema.Build(columns, indexes, mapType), nil
}

func tableInfo(ctx context.Context, conn session.Conn, obj master) ([]schema.CatalogColumn, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", obj.name))
	if err != nil {
		return nil, errors.Wrapf(err, "table info %s", obj.name)
	}
	defer rows.Close()
	var out []schema.CatalogColumn
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, errors.Wrapf(err, "scan table info %s", obj.name)
		}
		out = append(out, schema.CatalogColumn{
			Table:    obj.name,
			Column:   name,
			DataType: typ,
			Nullable: notNull == 0,
			IsView:   obj.view,
			IsTemp:   obj.temp,
		})
	}
	return out, errors.Wrapf(rows.Err(), "table info %s", obj.name)
}

// Actions implements provider.Provider.
func (p *Provider) Actions() []Action { return p.actions }

// GenerateDatabase creates between one and three tables and runs one round
// of the action catalog.
func (p *Provider) GenerateDatabase(ctx context.Context, s *Session) error {
	want := util.RandIntRange(s.Rand, 1, 3)
	if err := provider.CreateTables(ctx, s, want, 50, func(name string) (query.Query, error) {
		return createTable(s, name)
	}); err != nil {
		return err
	}
	return action.NewScheduler(p.actions, provider.RequireTables[config.SQLite]()).Run(ctx, s)
}

// Oracle implements provider.Provider.
func (p *Provider) Oracle(s *Session) (oracle.Oracle, error) {
	return oracle.New(p.cfg.Oracles, oracle.Params[config.SQLite]{
		Session:  s,
		Dialect:  Dialect,
		Expected: ExpressionErrors,
	})
}

// DumpState implements provider.Provider.
func (p *Provider) DumpState(ctx context.Context, s *Session) []string {
	lines := []string{"file: " + p.Path(s.DatabaseName)}
	sch, err := s.RefreshSchema(ctx)
	if err != nil {
		return append(lines, fmt.Sprintf("schema unavailable: %v", err))
	}
	return append(lines, provider.DescribeSchema(sch)...)
}

func gen(s *Session) *generator.Generator {
	return generator.New(s.Rand, Dialect)
}

func createTable(s *Session, name string) (query.Query, error) {
	opts := generator.TableOptions{MaxColumns: 4}
	if util.Chance(s.Rand, 20) {
		opts.Prefix = "CREATE TEMP TABLE"
	}
	text := gen(s).CreateTable(name, opts)
	return query.New(text, ExpressionErrors.With("already exists"), true)
}
