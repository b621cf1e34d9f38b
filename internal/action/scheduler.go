package action

import (
	"context"

	"github.com/pkg/errors"

	"lancer/internal/outcome"
	"lancer/internal/query"
	"lancer/internal/session"
	"lancer/internal/util"
)

// Check runs after every executed statement. Returning a discard aborts the
// round.
type Check[O, S any] func(ctx context.Context, s *session.Session[O, S], q query.Query) error

// Scheduler runs rounds of a fixed action catalog.
type Scheduler[O, S any] struct {
	actions []Action[O, S]
	check   Check[O, S]
}

// NewScheduler binds a catalog and an optional post-statement check.
func NewScheduler[O, S any](actions []Action[O, S], check Check[O, S]) *Scheduler[O, S] {
	return &Scheduler[O, S]{actions: actions, check: check}
}

// Counts evaluates every repetition policy once, in catalog order.
func (sc *Scheduler[O, S]) Counts(s *session.Session[O, S]) []int {
	counts := make([]int, len(sc.actions))
	for i, a := range sc.actions {
		counts[i] = a.Repetitions(s)
	}
	return counts
}

// Run executes one round. Every repetition policy is evaluated once up front;
// the actions then run in catalog order, each as often as its policy decided
// unless the round ends early.
//
// A generator discard skips that statement. A check discard ends the round
// and is returned. Any other error is fatal and returned immediately.
func (sc *Scheduler[O, S]) Run(ctx context.Context, s *session.Session[O, S]) error {
	counts := sc.Counts(s)
	for i, act := range sc.actions {
		for n := 0; n < counts[i]; n++ {
			if err := sc.step(ctx, s, act); err != nil {
				return err
			}
		}
	}
	return nil
}

func (sc *Scheduler[O, S]) step(ctx context.Context, s *session.Session[O, S], act Action[O, S]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	queries, err := act.Generate(ctx, s)
	if err != nil {
		if outcome.IsDiscard(err) {
			util.Detailf("%s: skip %s: %v", s.DatabaseName, act.Name, err)
			return nil
		}
		return errors.Wrapf(err, "generate %s", act.Name)
	}
	for _, q := range queries {
		if _, err := s.Execute(ctx, q); err != nil {
			return err
		}
		if sc.check == nil {
			continue
		}
		if err := sc.check(ctx, s, q); err != nil {
			return err
		}
	}
	return nil
}
