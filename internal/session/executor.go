package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"lancer/internal/outcome"
	"lancer/internal/query"
	"lancer/internal/util"
)

// Execute runs q. It returns false with a nil error when q failed with an
// expected error, and a fatal error when the failure was not expected.
func (s *Session[O, S]) Execute(ctx context.Context, q query.Query) (bool, error) {
	_, ok, err := s.run(ctx, q, true, func(ctx context.Context) (*sql.Rows, error) {
		_, err := s.Conn.ExecContext(ctx, q.Text())
		return nil, err
	})
	return ok, err
}

// ExecuteAndGet runs q and returns its rows. Rows are nil when q failed with
// an expected error. The caller closes the rows.
func (s *Session[O, S]) ExecuteAndGet(ctx context.Context, q query.Query) (*sql.Rows, error) {
	rows, _, err := s.run(ctx, q, false, func(ctx context.Context) (*sql.Rows, error) {
		return s.Conn.QueryContext(ctx, q.Text())
	})
	return rows, err
}

// FillAndExecute prepares q and binds fills positionally as strings.
func (s *Session[O, S]) FillAndExecute(ctx context.Context, q query.Query, fills ...string) (bool, error) {
	_, ok, err := s.run(ctx, q, true, func(ctx context.Context) (*sql.Rows, error) {
		stmt, err := s.Conn.PrepareContext(ctx, q.Text())
		if err != nil {
			return nil, err
		}
		defer util.CloseWithErr(stmt, "prepared statement")
		_, err = stmt.ExecContext(ctx, stringArgs(fills)...)
		return nil, err
	})
	return ok, err
}

// FillAndExecuteAndGet is FillAndExecute returning rows.
func (s *Session[O, S]) FillAndExecuteAndGet(ctx context.Context, q query.Query, fills ...string) (*sql.Rows, error) {
	rows, _, err := s.run(ctx, q, false, func(ctx context.Context) (*sql.Rows, error) {
		return s.Conn.QueryContext(ctx, q.Text(), stringArgs(fills)...)
	})
	return rows, err
}

func stringArgs(fills []string) []any {
	args := make([]any, len(fills))
	for i, f := range fills {
		args[i] = f
	}
	return args
}

func (s *Session[O, S]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Main.StatementTimeoutMs <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(s.Main.StatementTimeoutMs)*time.Millisecond)
}

// run applies the shared bookkeeping around one statement. Only writes are
// recorded in the repro state and bounded by the statement timeout; reads
// belong to the oracle, which keeps the statement under test in QueryString,
// and cancelling their context would close the rows.
func (s *Session[O, S]) run(ctx context.Context, q query.Query, write bool, do func(context.Context) (*sql.Rows, error)) (*sql.Rows, bool, error) {
	if s.Conn == nil {
		return nil, false, errors.New("session has no connection")
	}
	if write {
		s.State.Log(q.Text())
	}
	logging := s.Main.Logging
	if logging.PrintStatements {
		fmt.Fprintln(s.out(), q.Text())
	}
	execCtx := ctx
	cancel := func() {}
	if write {
		execCtx, cancel = s.withTimeout(ctx)
	}
	start := time.Now()
	rows, err := do(execCtx)
	elapsed := time.Since(start)
	timedOut := write && err != nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()
	s.logCurrent(q, elapsed)

	if err != nil {
		s.Counters.UnsuccessfulActions.Add(1)
		if q.Tolerates(err) {
			if q.AffectsSchema() {
				s.InvalidateSchema()
			}
			return nil, false, nil
		}
		if timedOut {
			return nil, false, outcome.Discardf("statement timed out after %dms", s.Main.StatementTimeoutMs)
		}
		return nil, false, outcome.Unexpected(q.Text(), err)
	}
	s.Counters.SuccessfulActions.Add(1)
	if q.AffectsSchema() {
		if rows != nil {
			s.InvalidateSchema()
		} else if _, err := s.RefreshSchema(ctx); err != nil {
			return nil, true, errors.Wrap(err, "refresh schema")
		}
	}
	if logging.PrintSucceeding {
		fmt.Fprintln(s.out(), q.Text())
	}
	return rows, true, nil
}

func (s *Session[O, S]) logCurrent(q query.Query, elapsed time.Duration) {
	if s.Logger == nil || !s.Logger.LogsEachStatement() {
		return
	}
	line := q.Text()
	if s.Main.Logging.LogExecutionTime {
		line = fmt.Sprintf("%s -- %dms", line, elapsed.Milliseconds())
	}
	if err := s.Logger.WriteCurrent(line); err != nil {
		util.Warnf("write running log for %s: %v", s.DatabaseName, err)
	}
}
