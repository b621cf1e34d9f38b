// Package provider defines the contract a database engine implements to be
// fuzzed, the adapter that runs one iteration against it, and the registry
// the CLI resolves engines from.
package provider

import (
	"context"

	"github.com/pkg/errors"

	"lancer/internal/action"
	"lancer/internal/config"
	"lancer/internal/oracle"
	"lancer/internal/outcome"
	"lancer/internal/report"
	"lancer/internal/repro"
	"lancer/internal/session"
	"lancer/internal/stats"
	"lancer/internal/util"
)

// Provider is implemented by every engine. O is the engine option type and
// S its schema type.
type Provider[O, S any] interface {
	Name() string
	Options() O
	// CreateDatabase (re)creates the session's database and returns a
	// connection to it. Setup statements are recorded in s.State.
	CreateDatabase(ctx context.Context, s *session.Session[O, S]) (session.Conn, error)
	Version(ctx context.Context, conn session.Conn) string
	RefreshSchema(ctx context.Context, conn session.Conn) (S, error)
	Actions() []action.Action[O, S]
	GenerateDatabase(ctx context.Context, s *session.Session[O, S]) error
	Oracle(s *session.Session[O, S]) (oracle.Oracle, error)
	// DumpState returns engine specific lines appended to a failure log.
	DumpState(ctx context.Context, s *session.Session[O, S]) []string
}

// Iteration describes one fuzzing iteration of a slot.
type Iteration struct {
	Database string
	Seed     int64
	Main     config.Config
	State    *repro.State
	Logger   *report.StateLogger
	Counters *stats.Counters
}

// Fuzzer is the engine-agnostic face of a provider consumed by the harness.
type Fuzzer interface {
	Name() string
	// Run executes one iteration. ctx is checked between probes only;
	// statements already running are not interrupted when it is cancelled.
	Run(ctx context.Context, it Iteration) error
}

// Adapter turns a Provider into a Fuzzer.
type Adapter[O, S any] struct {
	p Provider[O, S]
}

// NewAdapter wraps p.
func NewAdapter[O, S any](p Provider[O, S]) *Adapter[O, S] {
	return &Adapter[O, S]{p: p}
}

// Name implements Fuzzer.
func (a *Adapter[O, S]) Name() string { return a.p.Name() }

// Run creates and populates a database, then runs num_queries oracle probes.
// A discarded probe moves on to the next one. The first fatal error ends the
// iteration after the provider state was recorded.
func (a *Adapter[O, S]) Run(ctx context.Context, it Iteration) (err error) {
	work := context.WithoutCancel(ctx)
	s := session.New(session.Params[O, S]{
		Options:  a.p.Options(),
		Main:     it.Main,
		Seed:     it.Seed,
		Database: it.Database,
		Logger:   it.Logger,
		State:    it.State,
		Counters: it.Counters,
		Refresh:  a.p.RefreshSchema,
	})
	defer func() {
		if cerr := s.Close(); cerr != nil {
			util.Warnf("close session %s: %v", it.Database, cerr)
		}
	}()
	defer func() {
		if outcome.Classify(err) == outcome.KindFatal && s.Conn != nil {
			s.State.ProviderState = a.p.DumpState(work, s)
		}
	}()

	conn, err := a.p.CreateDatabase(work, s)
	if err != nil {
		if outcome.Classify(err) == outcome.KindFatal {
			return errors.Wrapf(err, "create database %s", it.Database)
		}
		return err
	}
	s.SetConn(conn)
	s.State.DatabaseVersion = a.p.Version(work, conn)
	s.Counters.Databases.Add(1)

	if err := a.p.GenerateDatabase(work, s); err != nil {
		return err
	}
	if it.Logger != nil && it.Logger.LogsEachStatement() {
		if err := it.Logger.WriteCurrentState(s.State); err != nil {
			util.Warnf("checkpoint %s: %v", it.Database, err)
		}
	}

	o, err := a.p.Oracle(s)
	if err != nil {
		return errors.Wrap(err, "build oracle")
	}
	for i := 0; i < it.Main.NumQueries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.State.QueryString = ""
		err := o.Check(work)
		switch outcome.Classify(err) {
		case outcome.KindOK:
			s.Counters.Queries.Add(1)
		case outcome.KindDiscard:
			continue
		default:
			return err
		}
	}
	return nil
}
