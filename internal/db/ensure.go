package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"lancer/internal/util"
)

// RecreateDatabase drops dbName and creates it again through a short-lived
// admin connection. record is called with each statement before it runs.
// create is appended to "CREATE DATABASE <dbName>" when non-empty.
func RecreateDatabase(ctx context.Context, driver, adminDSN, dbName, create string, record func(string)) error {
	if dbName == "" {
		return errors.New("empty database name")
	}
	admin, err := Open(ctx, driver, adminDSN)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(admin, "admin connection")
	createStmt := "CREATE DATABASE " + dbName
	if create = strings.TrimSpace(create); create != "" {
		createStmt += " " + create
	}
	for _, stmt := range []string{fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName), createStmt} {
		if record != nil {
			record(stmt)
		}
		if _, err := admin.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "%s", stmt)
		}
	}
	return nil
}
