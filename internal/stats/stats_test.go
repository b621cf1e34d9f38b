package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestFormatProgress(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	prev := Snapshot{At: start}
	cur := Snapshot{
		At:                  start.Add(5 * time.Second),
		Queries:             5000,
		Databases:           10,
		SuccessfulActions:   75,
		UnsuccessfulActions: 25,
		FinishedSlots:       1,
	}
	line := FormatProgress(prev, cur)
	for _, want := range []string{
		"[2024/03/01 10:00:05]",
		"Executed 5,000 queries",
		"(1,000 queries/s;",
		"2.00/s dbs",
		"successful statements: 75%",
		"Threads shut down: 1.",
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("progress line %q missing %q", line, want)
		}
	}
}

func TestFormatProgressNoStatements(t *testing.T) {
	now := time.Now()
	line := FormatProgress(Snapshot{At: now}, Snapshot{At: now})
	if !strings.Contains(line, "successful statements:  0%") {
		t.Fatalf("unexpected line %q", line)
	}
}

func TestReporterDoesNotMutateCounters(t *testing.T) {
	var c Counters
	c.Queries.Store(3)
	c.SuccessfulActions.Store(4)
	stop := StartReporter(&c, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	stop()
	if c.Queries.Load() != 3 || c.SuccessfulActions.Load() != 4 {
		t.Fatalf("reporter mutated counters")
	}
}

func TestRegisterExposesCounters(t *testing.T) {
	var c Counters
	c.Databases.Add(2)
	reg := prometheus.NewRegistry()
	if err := c.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "lancer_databases_total" {
			found = true
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 2 {
				t.Fatalf("databases_total=%v, want 2", got)
			}
		}
	}
	if !found {
		t.Fatalf("lancer_databases_total not registered")
	}
}
