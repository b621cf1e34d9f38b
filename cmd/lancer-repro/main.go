package main

import (
	"context"
	"fmt"
	"net/url"
	"os"

	mysqldriver "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"lancer/internal/config"
	"lancer/internal/repro"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "repro failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts repro.Options
	cmd := &cobra.Command{
		Use:           "lancer-repro <log file>",
		Short:         "Replay a failure log against a database",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Path = args[0]
			switcher, err := databaseSwitcher(opts.Driver, opts.DSN)
			if err != nil {
				return err
			}
			opts.SwitchDatabase = switcher
			opts.Out = cmd.OutOrStdout()
			_, err = repro.Replay(context.Background(), opts)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Driver, "driver", "postgres", "database/sql driver: postgres, mysql or sqlite")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "DSN of the database the log starts in")
	_ = cmd.MarkFlagRequired("dsn")
	return cmd
}

// databaseSwitcher returns how "\c name" lines of a log change the DSN.
func databaseSwitcher(driver, dsn string) (func(string) (string, error), error) {
	switch driver {
	case "postgres":
		u, err := url.Parse(dsn)
		if err != nil || u.Scheme == "" {
			return nil, errors.Errorf("postgres dsn must be a URL: %q", dsn)
		}
		return func(database string) (string, error) {
			next := *u
			next.Path = "/" + database
			return next.String(), nil
		}, nil
	case "mysql":
		if _, err := mysqldriver.ParseDSN(dsn); err != nil {
			return nil, errors.Wrap(err, "parse mysql dsn")
		}
		return func(database string) (string, error) {
			return config.UpdateDatabaseInDSN(dsn, database), nil
		}, nil
	case "sqlite":
		return nil, nil
	default:
		return nil, errors.Errorf("unsupported driver %q", driver)
	}
}
