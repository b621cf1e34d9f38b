package sqlite3

import (
	"context"
	"fmt"

	"lancer/internal/action"
	"lancer/internal/config"
	"lancer/internal/outcome"
	"lancer/internal/query"
	"lancer/internal/schema"
	"lancer/internal/util"
)

type generate = func(ctx context.Context, s *Session) (query.Query, error)

func upTo(n int) action.RepeatFunc[config.SQLite, schema.Schema] {
	return action.UpTo[config.SQLite, schema.Schema](n)
}

func maxInserts(s *Session) int {
	return util.RandIntRange(s.Rand, 0, s.Main.MaxNumInserts)
}

var writeErrors = ExpressionErrors.With(
	"UNIQUE constraint failed",
	"NOT NULL constraint failed",
	"CHECK constraint failed",
	"datatype mismatch",
)

// Actions returns the SQLite statement catalog in its fixed order.
func Actions() []Action {
	entry := func(name string, repeat action.RepeatFunc[config.SQLite, schema.Schema], g generate) Action {
		return action.New(name, repeat, g)
	}
	return []Action{
		entry("PRAGMA", upTo(5), pragma),
		entry("CREATE_INDEX", upTo(3), createIndex),
		entry("CREATE_VIEW", upTo(2), createView),
		entry("INSERT", maxInserts, insert),
		entry("UPDATE", upTo(5), update),
		entry("DELETE", upTo(3), deleteRows),
		entry("ALTER_TABLE", upTo(2), alterTable),
		entry("ANALYZE", upTo(2), analyze),
		entry("REINDEX", upTo(3), reindex),
		entry("VACUUM", upTo(1), vacuum),
		entry("DROP_INDEX", upTo(2), dropIndex),
	}
}

func baseTable(ctx context.Context, s *Session) (schema.Table, error) {
	sch, err := s.Schema(ctx)
	if err != nil {
		return schema.Table{}, err
	}
	tbl, ok := sch.RandomBaseTable(s.Rand)
	if !ok {
		return schema.Table{}, outcome.Discardf("no base table")
	}
	return tbl, nil
}

var pragmas = []struct {
	name   string
	values []string
}{
	{"automatic_index", []string{"true", "false"}},
	{"cache_size", []string{"0", "2", "-2000", "10000"}},
	{"reverse_unordered_selects", []string{"true", "false"}},
	{"case_sensitive_like", []string{"true", "false"}},
	{"temp_store", []string{"0", "1", "2"}},
	{"cell_size_check", []string{"true", "false"}},
	{"recursive_triggers", []string{"true", "false"}},
}

func pragma(_ context.Context, s *Session) (query.Query, error) {
	if util.Chance(s.Rand, 10) {
		return query.New("PRAGMA optimize", nil, false)
	}
	p := pragmas[s.Rand.Intn(len(pragmas))]
	return pragmaQuery(p.name, util.FromOptions(s.Rand, p.values...))
}

func pragmaQuery(name, value string) (query.Query, error) {
	text := fmt.Sprintf("PRAGMA %s = %s", name, value)
	if name == "temp_store" {
		// A new value closes the temp database and drops every TEMP table.
		return query.New(text, query.ExpectedErrors{"temporary storage cannot be changed"}, true)
	}
	return query.New(text, nil, false)
}

func createIndex(ctx context.Context, s *Session) (query.Query, error) {
	sch, err := s.Schema(ctx)
	if err != nil {
		return query.Query{}, err
	}
	tbl, ok := sch.RandomBaseTable(s.Rand)
	if !ok {
		return query.Query{}, outcome.Discardf("no base table")
	}
	text := gen(s).CreateIndex(sch.FreeName("i"), tbl)
	return query.New(text, writeErrors.With("already exists", "non-deterministic"), true)
}

func createView(ctx context.Context, s *Session) (query.Query, error) {
	sch, err := s.Schema(ctx)
	if err != nil {
		return query.Query{}, err
	}
	if !sch.HasTables() {
		return query.Query{}, outcome.Discardf("no tables")
	}
	text := gen(s).CreateView(sch.FreeName("v"), sch.RandomTables(s.Rand, 2))
	return query.New(text, ExpressionErrors.With("already exists", "cannot reference objects in database"), true)
}

func insert(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	verb := util.FromOptions(s.Rand, "INSERT INTO", "INSERT INTO", "INSERT OR IGNORE INTO", "INSERT OR REPLACE INTO")
	return query.New(gen(s).Insert(verb, tbl, 3), writeErrors, false)
}

func update(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	return query.New(gen(s).Update(tbl), writeErrors, false)
}

func deleteRows(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	return query.New(gen(s).Delete(tbl), ExpressionErrors, false)
}

func alterTable(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	var text string
	if util.Chance(s.Rand, 70) {
		col := fmt.Sprintf("c%d", len(tbl.Columns))
		text = fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", tbl.Name, col, typeName(gen(s).ColumnType()))
	} else {
		col := tbl.RandomColumn(s.Rand)
		text = fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s_r", tbl.Name, col.Name, col.Name)
	}
	errs := query.ExpectedErrors{
		"duplicate column name",
		"Cannot add a NOT NULL column with default value NULL",
		"Cannot add a PRIMARY KEY column",
		"Cannot add a UNIQUE column",
		"error in view",
		"no such column",
	}
	return query.New(text, errs, true)
}

func analyze(ctx context.Context, s *Session) (query.Query, error) {
	if util.Chance(s.Rand, 50) {
		return query.New("ANALYZE", nil, false)
	}
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	name := tbl.Name
	if tbl.IsTemp {
		name = "temp." + name
	}
	return query.New("ANALYZE "+name, nil, false)
}

// reindex rebuilds every index, or those of one table or one index.
func reindex(ctx context.Context, s *Session) (query.Query, error) {
	sch, err := s.Schema(ctx)
	if err != nil {
		return query.Query{}, err
	}
	text := "REINDEX"
	switch indexes := sch.Indexes(); {
	case len(indexes) > 0 && util.Chance(s.Rand, 30):
		text += " " + util.FromOptions(s.Rand, indexes...)
	case util.Chance(s.Rand, 30):
		if tbl, ok := sch.RandomBaseTable(s.Rand); ok {
			text += " " + tbl.Name
		}
	}
	return query.New(text, query.ExpectedErrors{"UNIQUE constraint failed"}, false)
}

func vacuum(context.Context, *Session) (query.Query, error) {
	return query.New("VACUUM", query.ExpectedErrors{"cannot VACUUM from within a transaction"}, false)
}

func dropIndex(ctx context.Context, s *Session) (query.Query, error) {
	sch, err := s.Schema(ctx)
	if err != nil {
		return query.Query{}, err
	}
	indexes := sch.Indexes()
	if len(indexes) == 0 {
		return query.Query{}, outcome.Discardf("no index to drop")
	}
	return query.New("DROP INDEX IF EXISTS "+util.FromOptions(s.Rand, indexes...), nil, true)
}
