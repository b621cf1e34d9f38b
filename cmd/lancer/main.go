package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"lancer/internal/config"
	"lancer/internal/harness"
	"lancer/internal/provider"
	"lancer/internal/provider/mysql"
	"lancer/internal/provider/postgres"
	"lancer/internal/provider/sqlite3"
	"lancer/internal/stats"
	"lancer/internal/util"
)

// runFunc starts a fuzzing run for one provider and returns the exit code.
type runFunc func(ctx context.Context, cfg config.Config, provider string) (int, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := execute(ctx, os.Args[1:], run)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lancer: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func execute(ctx context.Context, args []string, fn runFunc) (int, error) {
	code := 0
	root := newRootCmd(func(ctx context.Context, cfg config.Config, name string) (int, error) {
		var err error
		code, err = fn(ctx, cfg, name)
		return code, err
	})
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		return 1, err
	}
	return code, nil
}

func newRegistry() (*provider.Registry, error) {
	reg := provider.NewRegistry()
	for name, f := range map[string]provider.Factory{
		postgres.Name: postgres.Factory,
		sqlite3.Name:  sqlite3.Factory,
		mysql.Name:    mysql.Factory,
	} {
		if err := reg.Register(name, f); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func run(ctx context.Context, cfg config.Config, name string) (int, error) {
	util.SetVerbose(cfg.Logging.Verbose)
	closer, err := util.SetLogFile(cfg.Logging.LogFile)
	if err != nil {
		return 0, err
	}
	defer util.CloseWithErr(closer, "log file")
	printConfig(cfg)

	reg, err := newRegistry()
	if err != nil {
		return 0, err
	}
	counters := &stats.Counters{}
	if cfg.Metrics.Addr != "" {
		promReg := prometheus.NewRegistry()
		if err := counters.Register(promReg); err != nil {
			return 0, err
		}
		srv := stats.ServeMetrics(cfg.Metrics.Addr, promReg)
		defer util.CloseWithErr(srv, "metrics server")
		util.Infof("serving metrics on %s/metrics", cfg.Metrics.Addr)
	}
	return harness.Run(ctx, harness.Options{
		Config:   cfg,
		Provider: name,
		Registry: reg,
		Counters: counters,
	})
}

func printConfig(cfg config.Config) {
	if cfg.Postgres.Password != "" {
		cfg.Postgres.Password = "******"
	}
	cfg.Storage.S3.SecretAccessKey = ""
	cfg.Storage.S3.SessionToken = ""
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return
	}
	util.Detailf("config:\n%s", string(data))
}
