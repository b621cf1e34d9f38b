package mysql

import (
	"context"
	"errors"
	"testing"

	"lancer/internal/config"
	"lancer/internal/outcome"
	"lancer/internal/schema"
	"lancer/internal/session"
	"lancer/internal/validator"
)

var fixture = schema.Schema{Tables: []schema.Table{
	{
		Name: "t0",
		Columns: []schema.Column{
			{Name: "c0", Type: schema.TypeInt, Nullable: true},
			{Name: "c1", Type: schema.TypeText},
			{Name: "c2", Type: schema.TypeReal, Nullable: true},
			{Name: "c3", Type: schema.TypeDate, Nullable: true},
		},
		Indexes: []string{"i0"},
	},
	{
		Name:    "v0",
		Columns: []schema.Column{{Name: "c0", Type: schema.TypeInt, Nullable: true}},
		IsView:  true,
	},
}}

func fixtureSession(seed int64) *Session {
	main := config.Default()
	return session.New(session.Params[config.MySQL, schema.Schema]{
		Options:  main.MySQL,
		Main:     main,
		Seed:     seed,
		Database: "database0",
		Refresh: func(context.Context, session.Conn) (schema.Schema, error) {
			return fixture, nil
		},
	})
}

func TestGeneratedStatementsParse(t *testing.T) {
	ctx := context.Background()
	v := validator.New()
	for seed := int64(0); seed < 40; seed++ {
		s := fixtureSession(seed)
		q, err := createTable(s, "t1")
		if err != nil {
			t.Fatalf("create table: %v", err)
		}
		if err := v.Validate(q.Text()); err != nil {
			t.Fatalf("%s: %v", q.Text(), err)
		}
		for _, a := range Actions() {
			queries, err := a.Generate(ctx, s)
			if err != nil {
				if outcome.IsDiscard(err) {
					continue
				}
				t.Fatalf("seed %d %s: %v", seed, a.Name, err)
			}
			for _, q := range queries {
				if err := v.Validate(q.Text()); err != nil {
					t.Fatalf("%s does not parse: %s: %v", a.Name, q.Text(), err)
				}
			}
		}
	}
}

func TestCatalogQueriesParse(t *testing.T) {
	v := validator.New()
	for _, text := range []string{columnsQuery, indexesQuery, "SELECT VERSION()"} {
		if err := v.Validate(text); err != nil {
			t.Fatalf("%s: %v", text, err)
		}
	}
}

func TestValidateReportsConstructionError(t *testing.T) {
	err := newValidate()("SELEC 1")
	var c *outcome.ConstructionError
	if !errors.As(err, &c) {
		t.Fatalf("expected construction error, got %v", err)
	}
	if newValidate()("SELECT 1") != nil {
		t.Fatalf("valid statement rejected")
	}
}

func TestMapType(t *testing.T) {
	cases := map[string]schema.ColumnType{
		"int":     schema.TypeInt,
		"bigint":  schema.TypeInt,
		"tinyint": schema.TypeInt,
		"varchar": schema.TypeText,
		"text":    schema.TypeText,
		"double":  schema.TypeReal,
		"date":    schema.TypeDate,
		"json":    schema.TypeUnknown,
	}
	for in, want := range cases {
		if got := mapType(in); got != want {
			t.Fatalf("mapType(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestFactoryRejectsBadDSN(t *testing.T) {
	cfg := config.Default()
	cfg.MySQL.DSN = "root@tcp(127.0.0.1:4000"
	if _, err := Factory(cfg); err == nil {
		t.Fatalf("expected dsn error")
	}
	if _, err := Factory(config.Default()); err != nil {
		t.Fatalf("default dsn: %v", err)
	}
}
