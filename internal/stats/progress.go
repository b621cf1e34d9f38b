package stats

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"lancer/internal/util"
)

// FormatProgress renders the delta between two snapshots as one status line.
func FormatProgress(prev, cur Snapshot) string {
	elapsed := cur.At.Sub(prev.At).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	queries := cur.Queries - prev.Queries
	dbs := cur.Databases - prev.Databases
	ok := cur.SuccessfulActions - prev.SuccessfulActions
	failed := cur.UnsuccessfulActions - prev.UnsuccessfulActions
	ratio := 0
	if total := ok + failed; total > 0 {
		ratio = int(ok * 100 / total)
	}
	return fmt.Sprintf("[%s] Executed %s queries (%s queries/s; %.2f/s dbs, successful statements: %2d%%). Threads shut down: %d.",
		cur.At.Format("2006/01/02 15:04:05"),
		humanize.Comma(cur.Queries),
		humanize.CommafWithDigits(float64(queries)/elapsed, 0),
		float64(dbs)/elapsed,
		ratio,
		cur.FinishedSlots,
	)
}

// StartReporter logs a progress line every interval until the returned stop
// function is called. It only reads the counters.
func StartReporter(c *Counters, interval time.Duration) func() {
	if interval <= 0 {
		return func() {}
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		last := c.Snapshot(time.Now())
		for {
			select {
			case now := <-ticker.C:
				cur := c.Snapshot(now)
				util.Infof("%s", FormatProgress(last, cur))
				last = cur
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
		<-stopped
	}
}
