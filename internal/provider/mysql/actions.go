package mysql

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

func upTo(n int) action.RepeatFunc[config.MySQL, schema.Schema] {
	return action.UpTo[config.MySQL, schema.Schema](n)
}

func maxInserts(s *Session) int {
	return util.RandIntRange(s.Rand, 0, s.Main.MaxNumInserts)
}

// Actions returns the MySQL statement catalog in its fixed order.
func Actions() []Action {
	entry := func(name string, repeat action.RepeatFunc[config.MySQL, schema.Schema], g generate) Action {
		return action.New(name, repeat, g)
	}
	return []Action{
		entry("SET", upTo(5), set),
		entry("INSERT", maxInserts, insert),
		entry("UPDATE", upTo(10), update),
		entry("DELETE", upTo(5), deleteRows),
		entry("CREATE_INDEX", upTo(3), createIndex),
		entry("DROP_INDEX", upTo(2), dropIndex),
		entry("CREATE_VIEW", upTo(2), createView),
		entry("ALTER_TABLE", upTo(3), alterTable),
		entry("ANALYZE", upTo(3), analyze),
		entry("TRUNCATE", upTo(1), truncate),
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

var variables = []struct {
	name   string
	values []string
}{
	{"optimizer_switch", []string{"'index_merge=on'", "'index_merge=off'", "'index_condition_pushdown=off'", "'derived_merge=off'"}},
	{"tidb_enable_index_merge", []string{"ON", "OFF"}},
	{"tidb_opt_agg_push_down", []string{"ON", "OFF"}},
	{"tidb_opt_prefer_range_scan", []string{"ON", "OFF"}},
	{"tidb_enable_cascades_planner", []string{"ON", "OFF"}},
}

func set(_ context.Context, s *Session) (query.Query, error) {
	v := variables[s.Rand.Intn(len(variables))]
	text := fmt.Sprintf("SET SESSION %s = %s", v.name, util.FromOptions(s.Rand, v.values...))
	return query.New(text, query.ExpectedErrors{"Unknown system variable", "Variable", "deprecated"}, false)
}

func insert(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	verb := util.FromOptions(s.Rand, "INSERT INTO", "INSERT INTO", "INSERT IGNORE INTO", "REPLACE INTO")
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
	return query.New(text, query.ExpectedErrors{"Duplicate entry", "Duplicate key name", "Too many keys"}, true)
}

func dropIndex(ctx context.Context, s *Session) (query.Query, error) {
	sch, err := s.Schema(ctx)
	if err != nil {
		return query.Query{}, err
	}
	for _, tbl := range sch.BaseTables() {
		if len(tbl.Indexes) > 0 && util.Chance(s.Rand, 50) {
			idx := util.FromOptions(s.Rand, tbl.Indexes...)
			return query.New(fmt.Sprintf("DROP INDEX %s ON %s", idx, tbl.Name), query.ExpectedErrors{"check that column/key exists"}, true)
		}
	}
	return query.Query{}, outcome.Discardf("no index picked")
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
	return query.New(text, ExpressionErrors.With("already exists", "Duplicate column name"), true)
}

func alterTable(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	col := fmt.Sprintf("c%d", len(tbl.Columns))
	text := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", tbl.Name, col, typeName(gen(s).ColumnType()))
	return query.New(text, query.ExpectedErrors{"Duplicate column name"}, true)
}

func analyze(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	return query.New("ANALYZE TABLE "+tbl.Name, nil, false)
}

func truncate(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	return query.New("TRUNCATE TABLE "+tbl.Name, nil, false)
}
