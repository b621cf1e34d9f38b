// Package mysql fuzzes MySQL-protocol databases such as TiDB. Statements
// can be checked by the TiDB parser before they are sent.
package mysql

import (
	"context"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"lancer/internal/action"
	"lancer/internal/config"
	"lancer/internal/db"
	"lancer/internal/generator"
	"lancer/internal/oracle"
	"lancer/internal/outcome"
	"lancer/internal/provider"
	"lancer/internal/query"
	"lancer/internal/schema"
	"lancer/internal/session"
	"lancer/internal/util"
	"lancer/internal/validator"
)

// Name is the registry name of the provider.
const Name = "mysql"

// Session is a MySQL fuzzing session.
type Session = session.Session[config.MySQL, schema.Schema]

// Action is a MySQL catalog entry.
type Action = action.Action[config.MySQL, schema.Schema]

// Dialect is the expression syntax used for MySQL and TiDB.
var Dialect = generator.Dialect{
	Name:          "mysql",
	ColumnTypes:   []schema.ColumnType{schema.TypeInt, schema.TypeText, schema.TypeReal, schema.TypeDate},
	TypeName:      typeName,
	CheckClauses:  true,
	IntFunctions:  []string{"ABS", "SIGN"},
	TextFunctions: []string{"LOWER", "UPPER", "TRIM", "REVERSE", "HEX"},
	RealFunctions: []string{"ABS", "CEIL", "FLOOR", "ROUND"},
	DateLiteral:   func(s string) string { return "DATE '" + s + "'" },
}

// ExpressionErrors are raised by well-typed expressions on unlucky data.
var ExpressionErrors = query.ExpectedErrors{
	"Out of range value",
	"value is out of range",
	"Truncated incorrect",
	"Incorrect",
	"Data truncated",
	"Division by 0",
	"Illegal mix of collations",
}

var writeErrors = ExpressionErrors.With(
	"Duplicate entry",
	"cannot be null",
	"Check constraint",
	"Data too long",
	"doesn't have a default value",
)

const (
	columnsQuery = `SELECT c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE, t.TABLE_TYPE
FROM information_schema.COLUMNS c
JOIN information_schema.TABLES t ON c.TABLE_SCHEMA = t.TABLE_SCHEMA AND c.TABLE_NAME = t.TABLE_NAME
WHERE c.TABLE_SCHEMA = DATABASE()
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`
	indexesQuery = `SELECT TABLE_NAME, INDEX_NAME FROM information_schema.STATISTICS WHERE TABLE_SCHEMA = DATABASE() AND INDEX_NAME <> 'PRIMARY'`
)

func typeName(t schema.ColumnType) string {
	switch t {
	case schema.TypeInt:
		return "INT"
	case schema.TypeReal:
		return "DOUBLE"
	case schema.TypeDate:
		return "DATE"
	default:
		return "VARCHAR(64)"
	}
}

func mapType(dataType string) schema.ColumnType {
	t := strings.ToLower(dataType)
	switch {
	case strings.HasSuffix(t, "int"):
		return schema.TypeInt
	case strings.Contains(t, "char") || strings.HasSuffix(t, "text"):
		return schema.TypeText
	case t == "double" || t == "float" || t == "decimal":
		return schema.TypeReal
	case t == "date":
		return schema.TypeDate
	default:
		return schema.TypeUnknown
	}
}

// Provider implements provider.Provider for MySQL and TiDB.
type Provider struct {
	cfg     config.MySQL
	actions []Action
}

var _ provider.Provider[config.MySQL, schema.Schema] = (*Provider)(nil)

// New returns a provider for cfg.
func New(cfg config.MySQL) *Provider {
	return &Provider{cfg: cfg, actions: Actions()}
}

// Factory adapts New to the registry.
func Factory(cfg config.Config) (provider.Fuzzer, error) {
	if _, err := mysqldriver.ParseDSN(cfg.MySQL.DSN); err != nil {
		return nil, errors.Wrap(err, "mysql dsn")
	}
	return provider.NewAdapter[config.MySQL, schema.Schema](New(cfg.MySQL)), nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return Name }

// Options implements provider.Provider.
func (p *Provider) Options() config.MySQL { return p.cfg }

// CreateDatabase drops and recreates the session database and connects to it.
func (p *Provider) CreateDatabase(ctx context.Context, s *Session) (session.Conn, error) {
	name := s.DatabaseName
	if err := db.RecreateDatabase(ctx, "mysql", config.AdminDSN(p.cfg.DSN), name, "", s.State.Log); err != nil {
		return nil, describe(err)
	}
	s.State.Log("USE " + name)
	conn, err := db.Open(ctx, "mysql", config.UpdateDatabaseInDSN(p.cfg.DSN, name))
	if err != nil {
		return nil, describe(err)
	}
	if p.cfg.Validate {
		conn.Validate = newValidate()
	}
	return conn, nil
}

// newValidate returns a parser check for one connection; the TiDB parser is
// not safe for concurrent use.
func newValidate() func(string) error {
	v := validator.New()
	return func(sql string) error {
		if err := v.Validate(sql); err != nil {
			return outcome.Construction(sql, err.Error())
		}
		return nil
	}
}

// describe adds the server error number to its message.
func describe(err error) error {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return errors.Wrapf(err, "mysql error %d", myErr.Number)
	}
	return err
}

// Version implements provider.Provider.
func (p *Provider) Version(ctx context.Context, conn session.Conn) string {
	rows, err := conn.QueryContext(ctx, "SELECT VERSION()")
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

// ReadSchema lists the tables of the current database.
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

// GenerateDatabase creates between one and three tables and runs one round
// of the action catalog.
func (p *Provider) GenerateDatabase(ctx context.Context, s *Session) error {
	want := util.RandIntRange(s.Rand, 1, 3)
	if err := provider.CreateTables(ctx, s, want, 50, func(name string) (query.Query, error) {
		return createTable(s, name)
	}); err != nil {
		return err
	}
	return action.NewScheduler(p.actions, provider.RequireTables[config.MySQL]()).Run(ctx, s)
}

// Oracle implements provider.Provider.
func (p *Provider) Oracle(s *Session) (oracle.Oracle, error) {
	return oracle.New(p.cfg.Oracles, oracle.Params[config.MySQL]{
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
	text := gen(s).CreateTable(name, generator.TableOptions{MaxColumns: 4})
	return query.New(text, ExpressionErrors.With("already exists"), true)
}
