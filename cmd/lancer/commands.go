package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"lancer/internal/config"
	"lancer/internal/provider/mysql"
	"lancer/internal/provider/postgres"
	"lancer/internal/provider/sqlite3"
)

// mainFlags mirror the top-level config options. A flag only overrides the
// config file when it was given on the command line.
type mainFlags struct {
	configPath            string
	numTries              int
	numThreads            int
	seed                  int64
	timeoutSeconds        int
	numQueries            int
	maxNumInserts         int
	maxGeneratedDatabases int
	errorExitCode         int
	logDir                string
	printStatements       bool
	printSucceeding       bool
	logEachSelect         bool
	logExecutionTime      bool
	verbose               bool
	username              string
	password              string
	host                  string
	port                  int
	metricsAddr           string
}

func (f *mainFlags) register(fs *pflag.FlagSet) {
	def := config.Default()
	fs.StringVar(&f.configPath, "config", "", "path to a YAML config file")
	fs.IntVar(&f.numTries, "num-tries", def.NumTries, "number of databases fuzzed (one slot each)")
	fs.IntVar(&f.numThreads, "num-threads", def.NumThreads, "number of concurrent slots")
	fs.Int64Var(&f.seed, "random-seed", def.Seed, "base seed; -1 seeds from the clock")
	fs.IntVar(&f.timeoutSeconds, "timeout-seconds", def.TimeoutSeconds, "stop after this many seconds; -1 runs until done")
	fs.IntVar(&f.numQueries, "num-queries", def.NumQueries, "oracle probes per database")
	fs.IntVar(&f.maxNumInserts, "max-num-inserts", def.MaxNumInserts, "upper bound of INSERT statements per database")
	fs.IntVar(&f.maxGeneratedDatabases, "max-generated-databases", def.MaxGeneratedDatabases, "databases per slot; -1 is unbounded")
	fs.IntVar(&f.errorExitCode, "error-exit-code", def.ErrorExitCode, "exit code when a bug was found")
	fs.StringVar(&f.logDir, "log-dir", def.LogDir, "directory of the reproduction logs")
	fs.BoolVar(&f.printStatements, "print-statements", def.Logging.PrintStatements, "print every statement before it runs")
	fs.BoolVar(&f.printSucceeding, "print-succeeding-statements", def.Logging.PrintSucceeding, "print statements that succeeded")
	fs.BoolVar(&f.logEachSelect, "log-each-select", def.Logging.LogEachSelect, "keep a running log of every statement")
	fs.BoolVar(&f.logExecutionTime, "log-execution-time", def.Logging.LogExecutionTime, "log the duration of every statement")
	fs.BoolVar(&f.verbose, "verbose", def.Logging.Verbose, "verbose console output")
	fs.StringVar(&f.username, "username", def.Postgres.User, "database user")
	fs.StringVar(&f.password, "password", def.Postgres.Password, "database password")
	fs.StringVar(&f.host, "host", def.Postgres.Host, "database host")
	fs.IntVar(&f.port, "port", def.Postgres.Port, "database port")
	fs.StringVar(&f.metricsAddr, "metrics-addr", def.Metrics.Addr, "address of the Prometheus endpoint; empty disables it")
}

func (f *mainFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("num-tries", func() { cfg.NumTries = f.numTries })
	set("num-threads", func() { cfg.NumThreads = f.numThreads })
	set("random-seed", func() { cfg.Seed = f.seed })
	set("timeout-seconds", func() { cfg.TimeoutSeconds = f.timeoutSeconds })
	set("num-queries", func() { cfg.NumQueries = f.numQueries })
	set("max-num-inserts", func() { cfg.MaxNumInserts = f.maxNumInserts })
	set("max-generated-databases", func() { cfg.MaxGeneratedDatabases = f.maxGeneratedDatabases })
	set("error-exit-code", func() { cfg.ErrorExitCode = f.errorExitCode })
	set("log-dir", func() { cfg.LogDir = f.logDir })
	set("print-statements", func() { cfg.Logging.PrintStatements = f.printStatements })
	set("print-succeeding-statements", func() { cfg.Logging.PrintSucceeding = f.printSucceeding })
	set("log-each-select", func() { cfg.Logging.LogEachSelect = f.logEachSelect })
	set("log-execution-time", func() { cfg.Logging.LogExecutionTime = f.logExecutionTime })
	set("verbose", func() { cfg.Logging.Verbose = f.verbose })
	set("username", func() { cfg.Postgres.User = f.username })
	set("password", func() { cfg.Postgres.Password = f.password })
	set("host", func() { cfg.Postgres.Host = f.host })
	set("port", func() { cfg.Postgres.Port = f.port })
	set("metrics-addr", func() { cfg.Metrics.Addr = f.metricsAddr })
}

func newRootCmd(fn runFunc) *cobra.Command {
	flags := &mainFlags{}
	root := &cobra.Command{
		Use:           "lancer",
		Short:         "Randomized testing of SQL database engines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(root.PersistentFlags())

	// load reads the config file and applies the main flags.
	load := func(cmd *cobra.Command) (config.Config, error) {
		cfg, err := config.Load(flags.configPath)
		if err != nil {
			return config.Config{}, err
		}
		flags.apply(cmd.Flags(), &cfg)
		return cfg, nil
	}
	root.AddCommand(
		newPostgresCmd(load, fn),
		newSQLiteCmd(load, fn),
		newMySQLCmd(load, fn),
	)
	return root
}

type loadFunc func(cmd *cobra.Command) (config.Config, error)

func runProvider(cmd *cobra.Command, cfg config.Config, name string, fn runFunc) error {
	config.Normalize(&cfg)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := fn(ctx, cfg, name)
	return err
}

func newPostgresCmd(load loadFunc, fn runFunc) *cobra.Command {
	var (
		oracles        []string
		testCollations bool
		bootstrap      string
	)
	cmd := &cobra.Command{
		Use:   postgres.Name,
		Short: "Fuzz a PostgreSQL server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("oracle") {
				cfg.Postgres.Oracles = oracles
			}
			if cmd.Flags().Changed("test-collations") {
				cfg.Postgres.TestCollations = testCollations
			}
			if cmd.Flags().Changed("bootstrap-database") {
				cfg.Postgres.BootstrapDB = bootstrap
			}
			return runProvider(cmd, cfg, postgres.Name, fn)
		},
	}
	cmd.Flags().StringSliceVar(&oracles, "oracle", nil, "test oracle (norec, tlp_where); repeat to combine")
	cmd.Flags().BoolVar(&testCollations, "test-collations", false, "create databases with random encodings and collations")
	cmd.Flags().StringVar(&bootstrap, "bootstrap-database", "test", "database to connect to while (re)creating test databases")
	return cmd
}

func newSQLiteCmd(load loadFunc, fn runFunc) *cobra.Command {
	var (
		oracles []string
		dir     string
	)
	cmd := &cobra.Command{
		Use:   sqlite3.Name,
		Short: "Fuzz the embedded SQLite engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("oracle") {
				cfg.SQLite.Oracles = oracles
			}
			if cmd.Flags().Changed("dir") {
				cfg.SQLite.Dir = dir
			}
			return runProvider(cmd, cfg, sqlite3.Name, fn)
		},
	}
	cmd.Flags().StringSliceVar(&oracles, "oracle", nil, "test oracle (norec, tlp_where); repeat to combine")
	cmd.Flags().StringVar(&dir, "dir", "databases", "directory of the database files")
	return cmd
}

func newMySQLCmd(load loadFunc, fn runFunc) *cobra.Command {
	var (
		oracles  []string
		dsn      string
		validate bool
	)
	cmd := &cobra.Command{
		Use:   mysql.Name,
		Short: "Fuzz a MySQL compatible server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("oracle") {
				cfg.MySQL.Oracles = oracles
			}
			if cmd.Flags().Changed("dsn") {
				cfg.MySQL.DSN = dsn
			}
			if cmd.Flags().Changed("validate") {
				cfg.MySQL.Validate = validate
			}
			return runProvider(cmd, cfg, mysql.Name, fn)
		},
	}
	cmd.Flags().StringSliceVar(&oracles, "oracle", nil, "test oracle (norec, tlp_where); repeat to combine")
	cmd.Flags().StringVar(&dsn, "dsn", "root:@tcp(127.0.0.1:4000)/", "server DSN without a database")
	cmd.Flags().BoolVar(&validate, "validate", true, "parse every statement before sending it")
	return cmd
}
