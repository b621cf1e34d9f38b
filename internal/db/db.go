// Package db owns the single connection a fuzzing session runs on.
package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"lancer/internal/util"
)

// DB pins one connection of a pool so that session state such as open
// transactions and SET variables survives between statements.
type DB struct {
	pool *sql.DB
	conn *sql.Conn
	// Validate, when set, runs before every statement. A validation error is
	// returned instead of executing the statement.
	Validate func(sql string) error
}

// Open connects with driver and pins one connection.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	pool, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	pool.SetMaxOpenConns(1)
	pool.SetMaxIdleConns(1)
	conn, err := pool.Conn(ctx)
	if err != nil {
		util.CloseWithErr(pool, "db pool")
		return nil, errors.Wrapf(err, "connect %s", driver)
	}
	return &DB{pool: pool, conn: conn}, nil
}

func (d *DB) validate(query string) error {
	if d.Validate == nil {
		return nil
	}
	return d.Validate(query)
}

// ExecContext executes a statement on the pinned connection.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := d.validate(query); err != nil {
		return nil, err
	}
	return d.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the pinned connection.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := d.validate(query); err != nil {
		return nil, err
	}
	return d.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the pinned connection.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.conn.QueryRowContext(ctx, query, args...)
}

// PrepareContext prepares a statement on the pinned connection.
func (d *DB) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	if err := d.validate(query); err != nil {
		return nil, err
	}
	return d.conn.PrepareContext(ctx, query)
}

// Close releases the connection and the pool.
func (d *DB) Close() error {
	var firstErr error
	if d.conn != nil {
		firstErr = d.conn.Close()
	}
	if err := d.pool.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
