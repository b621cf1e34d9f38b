// Package harness runs num_tries independent fuzzing slots on a bounded
// worker pool until every slot finished or the run times out.
package harness

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"lancer/internal/config"
	"lancer/internal/outcome"
	"lancer/internal/provider"
	"lancer/internal/report"
	"lancer/internal/repro"
	"lancer/internal/stats"
	"lancer/internal/uploader"
	"lancer/internal/util"
)

// Options configures one run.
type Options struct {
	Config   config.Config
	Provider string
	Registry *provider.Registry
	// Fs holds the log directory; nil means the OS filesystem.
	Fs afero.Fs
	// Console receives a copy of every failure log; nil means stderr.
	Console io.Writer
	// Uploader defaults to the one configured in Config.Storage.
	Uploader uploader.Uploader
	// Counters defaults to a fresh set.
	Counters *stats.Counters
	Now      func() time.Time
	// ShutdownGrace bounds the wait for running slots once the run is
	// stopped. Zero means DefaultShutdownGrace.
	ShutdownGrace time.Duration
}

// DefaultShutdownGrace is how long a stopped run waits for its slots.
const DefaultShutdownGrace = 10 * time.Second

type harness struct {
	cfg      config.Config
	fuzzer   provider.Fuzzer
	logDir   *report.LogDir
	uploader uploader.Uploader
	counters *stats.Counters
	now      func() time.Time
	grace    time.Duration
	failed   atomic.Bool
}

// Run executes the fuzzing campaign. The exit code is Config.ErrorExitCode
// when any slot ended with a fatal error and 0 otherwise. err is only set
// when the run could not be started.
func Run(ctx context.Context, opts Options) (int, error) {
	if opts.Registry == nil {
		return 0, errors.New("no provider registry")
	}
	factory, err := opts.Registry.Lookup(opts.Provider)
	if err != nil {
		return 0, err
	}
	cfg := opts.Config
	config.Normalize(&cfg)
	fuzzer, err := factory(cfg)
	if err != nil {
		return 0, errors.Wrapf(err, "init provider %s", opts.Provider)
	}
	h := &harness{
		cfg:      cfg,
		fuzzer:   fuzzer,
		uploader: opts.Uploader,
		counters: opts.Counters,
		now:      opts.Now,
		grace:    opts.ShutdownGrace,
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	h.logDir = report.NewLogDir(opts.Fs, cfg.LogDir, fuzzer.Name(), opts.Console)
	if h.uploader == nil {
		if h.uploader, err = uploader.New(cfg.Storage); err != nil {
			return 0, errors.Wrap(err, "init uploader")
		}
	}
	if h.counters == nil {
		h.counters = &stats.Counters{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.grace <= 0 {
		h.grace = DefaultShutdownGrace
	}
	h.run(ctx)
	if h.failed.Load() {
		return cfg.ErrorExitCode, nil
	}
	return 0, nil
}

func (h *harness) run(ctx context.Context) {
	stop, cancel := context.WithCancel(ctx)
	defer cancel()
	if h.cfg.TimeoutSeconds > 0 {
		stop, cancel = context.WithTimeout(stop, time.Duration(h.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	stopReporter := stats.StartReporter(h.counters, time.Duration(h.cfg.Logging.ProgressIntervalSeconds)*time.Second)
	defer stopReporter()

	start := h.counters.Snapshot(h.now())
	util.Infof("running %d %s slot(s) on %d thread(s)", h.cfg.NumTries, h.fuzzer.Name(), h.cfg.NumThreads)

	g := new(errgroup.Group)
	g.SetLimit(h.cfg.NumThreads)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < h.cfg.NumTries; i++ {
			if stop.Err() != nil {
				break
			}
			g.Go(func() error {
				h.slot(stop, i)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-stop.Done():
		util.Warnf("stopping: %v", context.Cause(stop))
		grace := time.NewTimer(h.grace)
		defer grace.Stop()
		select {
		case <-done:
		case <-grace.C:
			util.Warnf("gave up waiting for running slots after %s", h.grace)
		}
	}
	util.Infof("%s", stats.FormatProgress(start, h.counters.Snapshot(h.now())))
}

// slot runs iterations of one database name until a fatal error, the stop
// context or max_generated_databases ends it.
func (h *harness) slot(ctx context.Context, i int) {
	defer h.counters.FinishedSlots.Add(1)
	database := fmt.Sprintf("database%d", i)
	seed := util.SeedFor(h.cfg.Seed, i, h.now())
	rng := util.NewRand(seed)
	for n := 0; ; n++ {
		if ctx.Err() != nil {
			return
		}
		if h.cfg.MaxGeneratedDatabases > 0 && n >= h.cfg.MaxGeneratedDatabases {
			return
		}
		if n > 0 {
			seed = rng.Int63()
		}
		if fatal := h.iterate(ctx, database, seed); fatal {
			h.failed.Store(true)
			return
		}
	}
}

// iterate runs one iteration with a fresh state and logger and reports
// whether it ended with a fatal error.
func (h *harness) iterate(ctx context.Context, database string, seed int64) bool {
	state := repro.NewState(database, seed)
	logger, err := h.logDir.Logger(database, h.cfg.Logging.LogEachSelect)
	if err != nil {
		util.Errorf("open logs of %s: %v", database, err)
		return true
	}
	defer report.CloseLogger(logger)

	err = h.fuzzer.Run(ctx, provider.Iteration{
		Database: database,
		Seed:     seed,
		Main:     h.cfg,
		State:    state,
		Logger:   logger,
		Counters: h.counters,
	})
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return false
	}
	switch outcome.Classify(err) {
	case outcome.KindOK:
		return false
	case outcome.KindDiscard:
		util.Detailf("%s seed=%d discarded: %v", database, seed, err)
		return false
	}
	h.fail(logger, state, err)
	return true
}

func (h *harness) fail(logger *report.StateLogger, state *repro.State, err error) {
	state.Exception = err.Error()
	util.Errorf("%s seed=%d failed: %v", state.DatabaseName, state.Seed, err)
	if lerr := logger.LogException(err, state); lerr != nil {
		util.Errorf("write failure log of %s: %v", state.DatabaseName, lerr)
	}
	if !h.cfg.Storage.Archive && !h.uploader.Enabled() {
		return
	}
	c, aerr := logger.ArchiveFailure(h.fuzzer.Name(), state, err)
	if aerr != nil {
		util.Errorf("archive failure of %s: %v", state.DatabaseName, aerr)
		return
	}
	util.Highlightf("case %s archived to %s", c.ID, c.Archive)
	if !h.uploader.Enabled() {
		return
	}
	location, uerr := h.uploader.UploadFile(context.Background(), h.logDir.Fs(), c.Archive)
	if uerr != nil {
		util.Errorf("upload case %s: %v", c.ID, uerr)
		return
	}
	util.Highlightf("case %s uploaded to %s", c.ID, location)
}
