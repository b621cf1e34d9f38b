package postgres

import (
	"context"
	"fmt"
	"strings"

	"lancer/internal/action"
	"lancer/internal/config"
	"lancer/internal/generator"
	"lancer/internal/outcome"
	"lancer/internal/query"
	"lancer/internal/schema"
	"lancer/internal/util"
)

type generate = func(ctx context.Context, s *Session) (query.Query, error)

func upTo(n int) action.RepeatFunc[config.Postgres, schema.Schema] {
	return action.UpTo[config.Postgres, schema.Schema](n)
}

func maxInserts(s *Session) int {
	return util.RandIntRange(s.Rand, 0, s.Main.MaxNumInserts)
}

// Actions returns the PostgreSQL statement catalog in its fixed order.
func Actions() []Action {
	entry := func(name string, repeat action.RepeatFunc[config.Postgres, schema.Schema], g generate) Action {
		return action.New(name, repeat, g)
	}
	return []Action{
		entry("ANALYZE", upTo(3), analyze),
		entry("ALTER_TABLE", upTo(5), alterTable),
		entry("CLUSTER", upTo(3), cluster),
		entry("COMMIT", upTo(0), transaction),
		entry("CREATE_STATISTICS", upTo(5), createStatistics),
		entry("DROP_STATISTICS", upTo(2), dropStatistics),
		entry("DELETE", upTo(5), deleteRows),
		entry("DISCARD", upTo(5), discard),
		entry("DROP_INDEX", upTo(5), dropIndex),
		entry("INSERT", maxInserts, insert),
		entry("UPDATE", upTo(10), update),
		entry("TRUNCATE", upTo(2), truncate),
		entry("VACUUM", upTo(2), vacuum),
		entry("REINDEX", upTo(3), reindex),
		entry("SET", upTo(5), set),
		entry("CREATE_INDEX", upTo(3), createIndex),
		entry("SET_CONSTRAINTS", upTo(2), fixed(func(s *Session) string {
			return "SET CONSTRAINTS ALL " + util.FromOptions(s.Rand, "DEFERRED", "IMMEDIATE")
		})),
		entry("RESET_ROLE", upTo(5), fixed(func(*Session) string { return "RESET ROLE" })),
		entry("COMMENT_ON", upTo(2), commentOn),
		entry("RESET", upTo(3), fixed(func(*Session) string { return "RESET ALL" })),
		entry("NOTIFY", upTo(2), fixed(notify)),
		entry("LISTEN", upTo(2), fixed(func(s *Session) string { return "LISTEN " + channel(s) })),
		entry("UNLISTEN", upTo(2), fixed(func(s *Session) string {
			if util.Chance(s.Rand, 50) {
				return "UNLISTEN *"
			}
			return "UNLISTEN " + channel(s)
		})),
		entry("CREATE_SEQUENCE", upTo(2), createSequence),
		entry("CREATE_VIEW", upTo(2), createView),
		entry("QUERY_CATALOG", upTo(5), queryCatalog),
	}
}

func fixed(text func(*Session) string) generate {
	return func(_ context.Context, s *Session) (query.Query, error) {
		return query.New(text(s), nil, false)
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

func analyze(ctx context.Context, s *Session) (query.Query, error) {
	var b strings.Builder
	b.WriteString("ANALYZE")
	if util.Chance(s.Rand, 50) {
		b.WriteString(" VERBOSE")
	}
	if util.Chance(s.Rand, 50) {
		tbl, err := baseTable(ctx, s)
		if err != nil {
			return query.Query{}, err
		}
		b.WriteString(" " + tbl.Name)
		if util.Chance(s.Rand, 50) {
			fmt.Fprintf(&b, "(%s)", tbl.RandomColumn(s.Rand).Name)
		}
	}
	return query.New(b.String(), query.ExpectedErrors{"deadlock"}, false)
}

func alterTable(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	g := gen(s)
	col := tbl.RandomColumn(s.Rand)
	var clause string
	switch s.Rand.Intn(9) {
	case 0:
		clause = fmt.Sprintf("ADD COLUMN %s %s", freeColumn(tbl), typeName(g.ColumnType()))
	case 1:
		if len(tbl.Columns) < 2 {
			return query.Query{}, outcome.Discardf("cannot drop the only column of %s", tbl.Name)
		}
		clause = fmt.Sprintf("DROP COLUMN %s", col.Name)
		if util.Chance(s.Rand, 50) {
			clause += " CASCADE"
		}
	case 2:
		clause = fmt.Sprintf("ALTER COLUMN %s SET NOT NULL", col.Name)
	case 3:
		clause = fmt.Sprintf("ALTER COLUMN %s DROP NOT NULL", col.Name)
	case 4:
		clause = fmt.Sprintf("ALTER COLUMN %s SET STATISTICS %d", col.Name, s.Rand.Intn(10000))
	case 5:
		clause = "ADD " + g.Check(generator.LocalRefs(tbl))
	case 6:
		if len(tbl.Indexes) == 0 {
			return query.Query{}, outcome.Discardf("%s has no index", tbl.Name)
		}
		clause = "CLUSTER ON " + util.FromOptions(s.Rand, tbl.Indexes...)
	case 7:
		clause = "SET WITHOUT CLUSTER"
	default:
		clause = fmt.Sprintf("SET (fillfactor = %d)", util.RandIntRange(s.Rand, 10, 100))
	}
	errs := ExpressionErrors.With("cannot", "does not exist", "already exists", "depend", "contains null values",
		"is violated by some row", "is in a primary key", "is not an index for table",
		"could not create unique index", "ALTER TABLE / ADD")
	return query.New(fmt.Sprintf("ALTER TABLE %s %s", tbl.Name, clause), errs, true)
}

func freeColumn(tbl schema.Table) string {
	for i := len(tbl.Columns); ; i++ {
		name := fmt.Sprintf("c%d", i)
		if _, ok := tbl.ColumnByName(name); !ok {
			return name
		}
	}
}

func cluster(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	text := "CLUSTER "
	if util.Chance(s.Rand, 50) {
		text += "VERBOSE "
	}
	text += tbl.Name
	if len(tbl.Indexes) > 0 && util.Chance(s.Rand, 50) {
		text += " USING " + util.FromOptions(s.Rand, tbl.Indexes...)
	}
	errs := query.ExpectedErrors{
		"there is no previously clustered index for table",
		"cannot cluster on partial index",
		"cannot cluster on invalid index",
		"cannot cluster a partitioned table",
		"cannot cluster temporary tables of other sessions",
		"does not support clustering",
		"deadlock",
	}
	return query.New(text, errs, false)
}

func transaction(_ context.Context, s *Session) (query.Query, error) {
	text := "COMMIT"
	switch s.Rand.Intn(3) {
	case 1:
		text = "BEGIN"
	case 2:
		text = "ROLLBACK"
	}
	return query.New(text, nil, true)
}

func createStatistics(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	if len(tbl.Columns) < 2 {
		return query.Query{}, outcome.Discardf("statistics need two columns")
	}
	n := util.RandIntRange(s.Rand, 2, len(tbl.Columns))
	cols := make([]string, n)
	for i, idx := range s.Rand.Perm(len(tbl.Columns))[:n] {
		cols[i] = tbl.Columns[idx].Name
	}
	var b strings.Builder
	b.WriteString("CREATE STATISTICS ")
	if util.Chance(s.Rand, 50) {
		b.WriteString("IF NOT EXISTS ")
	}
	fmt.Fprintf(&b, "s%d", s.Rand.Intn(10))
	if util.Chance(s.Rand, 50) {
		fmt.Fprintf(&b, " (%s)", util.FromOptions(s.Rand, "ndistinct", "dependencies", "mcv"))
	}
	fmt.Fprintf(&b, " ON %s FROM %s", strings.Join(cols, ", "), tbl.Name)
	errs := query.ExpectedErrors{
		"cannot have more than 8 columns in statistics",
		"already exists",
		"duplicate column name in statistics definition",
		"only simple column references are allowed",
		"cannot create statistics",
	}
	return query.New(b.String(), errs, false)
}

func dropStatistics(_ context.Context, s *Session) (query.Query, error) {
	return query.New(fmt.Sprintf("DROP STATISTICS IF EXISTS s%d", s.Rand.Intn(10)), nil, false)
}

func deleteRows(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	return query.New(gen(s).Delete(tbl), ExpressionErrors.With("violates foreign key constraint", "deadlock"), false)
}

func discard(_ context.Context, s *Session) (query.Query, error) {
	what := util.FromOptions(s.Rand, "ALL", "PLANS", "SEQUENCES", "TEMPORARY", "TEMP")
	return query.New("DISCARD "+what, query.ExpectedErrors{"cannot run inside a transaction block"}, true)
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
	text := "DROP INDEX IF EXISTS " + util.FromOptions(s.Rand, indexes...)
	if util.Chance(s.Rand, 30) {
		text += " " + util.FromOptions(s.Rand, "CASCADE", "RESTRICT")
	}
	errs := query.ExpectedErrors{"cannot drop index", "because", "depend"}
	return query.New(text, errs, true)
}

func insert(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	text := gen(s).Insert("INSERT INTO", tbl, 3)
	if util.Chance(s.Rand, 20) {
		text += " ON CONFLICT DO NOTHING"
	}
	return query.New(text, insertUpdateErrors(), false)
}

// update follows the original PostgreSQL generator: each assigned column
// receives a constant, DEFAULT or an expression.
func update(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	g := gen(s)
	refs := generator.RefsOf(tbl)
	n := util.RandIntRange(s.Rand, 1, len(tbl.Columns))
	sets := make([]string, 0, n)
	for _, idx := range s.Rand.Perm(len(tbl.Columns))[:n] {
		col := tbl.Columns[idx]
		var value string
		switch {
		case util.Chance(s.Rand, 50):
			value = generator.Render(g.Literal(col.Type))
		case util.Chance(s.Rand, 50):
			value = "DEFAULT"
		default:
			value = "(" + generator.Render(g.Expr(col.Type, refs, 1)) + ")"
		}
		sets = append(sets, col.Name+" = "+value)
	}
	text := fmt.Sprintf("UPDATE %s SET %s", tbl.Name, strings.Join(sets, ", "))
	errs := insertUpdateErrors()
	if !util.Chance(s.Rand, 10) {
		text += " WHERE " + generator.Render(g.Predicate(refs))
		errs.Add("must not be VOLATILE", "STABLE functions")
	}
	errs.Add("operator does not exist: text = boolean", "invalid regular expression", " bit string too long")
	return query.New(text, errs, true)
}

func truncate(ctx context.Context, s *Session) (query.Query, error) {
	sch, err := s.Schema(ctx)
	if err != nil {
		return query.Query{}, err
	}
	base := sch.BaseTables()
	if len(base) == 0 {
		return query.Query{}, outcome.Discardf("no base table")
	}
	var b strings.Builder
	b.WriteString("TRUNCATE")
	if util.Chance(s.Rand, 50) {
		b.WriteString(" TABLE")
	}
	if util.Chance(s.Rand, 20) {
		b.WriteString(" ONLY")
	}
	n := util.RandIntRange(s.Rand, 1, len(base))
	names := make([]string, n)
	for i, idx := range s.Rand.Perm(len(base))[:n] {
		names[i] = base[idx].Name
	}
	b.WriteString(" " + strings.Join(names, ", "))
	if util.Chance(s.Rand, 50) {
		b.WriteString(" " + util.FromOptions(s.Rand, "RESTART IDENTITY", "CONTINUE IDENTITY"))
	}
	if util.Chance(s.Rand, 50) {
		b.WriteString(" " + util.FromOptions(s.Rand, "CASCADE", "RESTRICT"))
	}
	errs := query.ExpectedErrors{"cannot truncate a table referenced in a foreign key constraint", "is not a table", "deadlock"}
	return query.New(b.String(), errs, false)
}

func vacuum(ctx context.Context, s *Session) (query.Query, error) {
	var b strings.Builder
	b.WriteString("VACUUM")
	if util.Chance(s.Rand, 50) {
		opts := []string{"FULL", "FREEZE", "VERBOSE", "ANALYZE", "DISABLE_PAGE_SKIPPING"}
		n := util.RandIntRange(s.Rand, 1, len(opts))
		picked := make([]string, n)
		for i, idx := range s.Rand.Perm(len(opts))[:n] {
			picked[i] = opts[idx]
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(picked, ", "))
	}
	if util.Chance(s.Rand, 50) {
		tbl, err := baseTable(ctx, s)
		if err != nil {
			return query.Query{}, err
		}
		b.WriteString(" " + tbl.Name)
	}
	errs := query.ExpectedErrors{
		"cannot run inside a transaction block",
		"VACUUM option DISABLE_PAGE_SKIPPING cannot be used with FULL",
		"ANALYZE option must be specified when a column list is provided",
		"deadlock",
	}
	return query.New(b.String(), errs, false)
}

func reindex(ctx context.Context, s *Session) (query.Query, error) {
	sch, err := s.Schema(ctx)
	if err != nil {
		return query.Query{}, err
	}
	var text string
	indexes := sch.Indexes()
	switch {
	case len(indexes) > 0 && util.Chance(s.Rand, 40):
		text = "REINDEX INDEX " + util.FromOptions(s.Rand, indexes...)
	case util.Chance(s.Rand, 20):
		text = "REINDEX DATABASE " + s.DatabaseName
	default:
		tbl, err := baseTable(ctx, s)
		if err != nil {
			return query.Query{}, err
		}
		text = "REINDEX TABLE " + tbl.Name
	}
	errs := query.ExpectedErrors{
		"could not create unique index",
		"cannot reindex",
		"can only reindex the currently open database",
		"cannot run inside a transaction block",
		"deadlock",
	}
	return query.New(text, errs, false)
}

var settings = []struct {
	name   string
	values []string
}{
	{"enable_bitmapscan", []string{"on", "off"}},
	{"enable_hashagg", []string{"on", "off"}},
	{"enable_hashjoin", []string{"on", "off"}},
	{"enable_indexscan", []string{"on", "off"}},
	{"enable_indexonlyscan", []string{"on", "off"}},
	{"enable_material", []string{"on", "off"}},
	{"enable_mergejoin", []string{"on", "off"}},
	{"enable_nestloop", []string{"on", "off"}},
	{"enable_seqscan", []string{"on", "off"}},
	{"enable_sort", []string{"on", "off"}},
	{"enable_tidscan", []string{"on", "off"}},
	{"random_page_cost", []string{"0", "1", "4", "100"}},
	{"seq_page_cost", []string{"0", "1", "10"}},
	{"cpu_tuple_cost", []string{"0", "0.01", "1"}},
	{"jit", []string{"on", "off"}},
	{"work_mem", []string{"'64kB'", "'4MB'"}},
}

func set(_ context.Context, s *Session) (query.Query, error) {
	opt := settings[s.Rand.Intn(len(settings))]
	scope := util.FromOptions(s.Rand, "", "SESSION ", "LOCAL ")
	text := fmt.Sprintf("SET %s%s = %s", scope, opt.name, util.FromOptions(s.Rand, opt.values...))
	return query.New(text, query.ExpectedErrors{"invalid value for parameter", "can only be used in transaction blocks"}, false)
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
	errs := ExpressionErrors.With("could not create unique index",
		"already exists",
		"functions in index predicate must be marked IMMUTABLE",
		"cannot create index on",
		"has no default operator class",
		"deadlock")
	return query.New(text, errs, true)
}

func commentOn(ctx context.Context, s *Session) (query.Query, error) {
	tbl, err := baseTable(ctx, s)
	if err != nil {
		return query.Query{}, err
	}
	target := "TABLE " + tbl.Name
	switch {
	case len(tbl.Indexes) > 0 && util.Chance(s.Rand, 30):
		target = "INDEX " + util.FromOptions(s.Rand, tbl.Indexes...)
	case util.Chance(s.Rand, 50):
		target = "COLUMN " + schema.ColumnRef(tbl.Name, tbl.RandomColumn(s.Rand).Name)
	}
	comment := "NULL"
	if util.Chance(s.Rand, 70) {
		comment = generator.Render(gen(s).NonNullLiteral(schema.TypeText))
	}
	return query.New(fmt.Sprintf("COMMENT ON %s IS %s", target, comment), query.ExpectedErrors{"is not a table"}, false)
}

func channel(s *Session) string {
	return fmt.Sprintf("chan%d", s.Rand.Intn(3))
}

func notify(s *Session) string {
	text := "NOTIFY " + channel(s)
	if util.Chance(s.Rand, 50) {
		text += ", " + generator.Render(gen(s).NonNullLiteral(schema.TypeText))
	}
	return text
}

func createSequence(_ context.Context, s *Session) (query.Query, error) {
	var b strings.Builder
	b.WriteString("CREATE ")
	if util.Chance(s.Rand, 30) {
		b.WriteString(util.FromOptions(s.Rand, "TEMPORARY ", "TEMP ", "UNLOGGED "))
	}
	fmt.Fprintf(&b, "SEQUENCE IF NOT EXISTS seq%d", s.Rand.Intn(5))
	if util.Chance(s.Rand, 50) {
		fmt.Fprintf(&b, " INCREMENT BY %d", util.RandIntRange(s.Rand, -5, 5))
	}
	if util.Chance(s.Rand, 50) {
		fmt.Fprintf(&b, " MINVALUE %d", util.RandIntRange(s.Rand, -100, 0))
	}
	if util.Chance(s.Rand, 50) {
		fmt.Fprintf(&b, " MAXVALUE %d", util.RandIntRange(s.Rand, 1, 1000))
	}
	if util.Chance(s.Rand, 50) {
		b.WriteString(" CYCLE")
	}
	errs := query.ExpectedErrors{
		"INCREMENT must not be zero",
		"MINVALUE",
		"START value",
		"already exists",
		"unlogged sequences are not supported",
	}
	return query.New(b.String(), errs, false)
}

func createView(ctx context.Context, s *Session) (query.Query, error) {
	sch, err := s.Schema(ctx)
	if err != nil {
		return query.Query{}, err
	}
	if !sch.HasTables() {
		return query.Query{}, outcome.Discardf("no tables")
	}
	tables := sch.RandomTables(s.Rand, 2)
	text := gen(s).CreateView(sch.FreeName("v"), tables)
	return query.New(text, ExpressionErrors.With("already exists", "cannot"), true)
}

var catalogQueries = []string{
	"SELECT * FROM pg_stats",
	"SELECT * FROM pg_statistic_ext",
	"SELECT * FROM pg_indexes",
	"SELECT * FROM information_schema.tables",
	"SELECT * FROM information_schema.columns",
	"SELECT * FROM pg_prepared_statements",
	"SELECT * FROM pg_stat_user_tables",
}

func queryCatalog(_ context.Context, s *Session) (query.Query, error) {
	return query.New(util.FromOptions(s.Rand, catalogQueries...), nil, false)
}
