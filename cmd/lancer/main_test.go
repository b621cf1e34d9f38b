package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"lancer/internal/config"
)

type capture struct {
	cfg      config.Config
	provider string
	calls    int
}

func (c *capture) run(_ context.Context, cfg config.Config, name string) (int, error) {
	c.cfg = cfg
	c.provider = name
	c.calls++
	return 7, nil
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("num_threads: 2\nnum_tries: 9\npostgres:\n  host: db.internal\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var c capture
	code, err := execute(context.Background(), []string{
		"postgres", "--config", path, "--num-tries", "3", "--oracle", "TLP_WHERE", "--oracle", "norec", "--port", "5433",
	}, c.run)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if code != 7 || c.calls != 1 || c.provider != "postgres" {
		t.Fatalf("code=%d calls=%d provider=%s", code, c.calls, c.provider)
	}
	if c.cfg.NumTries != 3 || c.cfg.NumThreads != 2 {
		t.Fatalf("tries=%d threads=%d", c.cfg.NumTries, c.cfg.NumThreads)
	}
	if c.cfg.Postgres.Host != "db.internal" || c.cfg.Postgres.Port != 5433 {
		t.Fatalf("unexpected postgres options: %+v", c.cfg.Postgres)
	}
	if got := c.cfg.Postgres.Oracles; len(got) != 2 || got[0] != "tlp_where" || got[1] != "norec" {
		t.Fatalf("oracles=%v", got)
	}
}

func TestSQLiteSubcommand(t *testing.T) {
	var c capture
	_, err := execute(context.Background(), []string{"sqlite3", "--dir", "/tmp/dbs", "--random-seed", "5", "--log-each-select=false"}, c.run)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if c.provider != "sqlite3" || c.cfg.SQLite.Dir != "/tmp/dbs" || c.cfg.Seed != 5 || c.cfg.Logging.LogEachSelect {
		t.Fatalf("unexpected config: %+v", c.cfg)
	}
	if got := c.cfg.SQLite.Oracles; len(got) != 1 || got[0] != "norec" {
		t.Fatalf("default oracle=%v", got)
	}
}

func TestUnknownSubcommand(t *testing.T) {
	var c capture
	if _, err := execute(context.Background(), []string{"oracle"}, c.run); err == nil {
		t.Fatalf("expected an error for an unknown provider")
	}
	if c.calls != 0 {
		t.Fatalf("run must not be called")
	}
}

func TestRegistryHasEveryProvider(t *testing.T) {
	reg, err := newRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	names := reg.Names()
	if len(names) != 3 || names[0] != "mysql" || names[1] != "postgres" || names[2] != "sqlite3" {
		t.Fatalf("names=%v", names)
	}
}
