// Package stats holds the process-wide execution counters and the periodic
// progress report.
package stats

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters are shared by every session of a run. All fields are safe for
// concurrent use.
type Counters struct {
	Queries             atomic.Int64
	Databases           atomic.Int64
	SuccessfulActions   atomic.Int64
	UnsuccessfulActions atomic.Int64
	FinishedSlots       atomic.Int64
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	At                  time.Time
	Queries             int64
	Databases           int64
	SuccessfulActions   int64
	UnsuccessfulActions int64
	FinishedSlots       int64
}

// Snapshot reads every counter.
func (c *Counters) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		At:                  now,
		Queries:             c.Queries.Load(),
		Databases:           c.Databases.Load(),
		SuccessfulActions:   c.SuccessfulActions.Load(),
		UnsuccessfulActions: c.UnsuccessfulActions.Load(),
		FinishedSlots:       c.FinishedSlots.Load(),
	}
}

// Register exposes the counters as read-only Prometheus collectors.
func (c *Counters) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		counterFunc("queries_total", "Oracle probes that completed without a discard.", &c.Queries),
		counterFunc("databases_total", "Databases generated.", &c.Databases),
		counterFunc("actions_successful_total", "Statements that executed successfully.", &c.SuccessfulActions),
		counterFunc("actions_unsuccessful_total", "Statements that failed with an error.", &c.UnsuccessfulActions),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "lancer",
			Name:      "finished_slots",
			Help:      "Fuzzing slots that stopped.",
		}, func() float64 { return float64(c.FinishedSlots.Load()) }),
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return errors.Wrap(err, "register collector")
		}
	}
	return nil
}

func counterFunc(name, help string, v *atomic.Int64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "lancer",
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(v.Load()) })
}

// ServeMetrics starts a /metrics endpoint on addr. The returned server is
// already listening in the background.
func ServeMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
