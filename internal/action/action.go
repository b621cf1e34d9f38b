// Package action defines provider statement actions and the weighted
// scheduler that runs a randomized round of them against a session.
package action

import (
	"context"

	"lancer/internal/query"
	"lancer/internal/session"
	"lancer/internal/util"
)

// RepeatFunc decides how often an action runs in one round.
type RepeatFunc[O, S any] func(s *session.Session[O, S]) int

// Action is one entry of a provider's statement catalog.
type Action[O, S any] struct {
	Name     string
	repeat   RepeatFunc[O, S]
	generate func(ctx context.Context, s *session.Session[O, S]) ([]query.Query, error)
}

// New builds an action generating one statement per repetition.
func New[O, S any](name string, repeat RepeatFunc[O, S], gen func(ctx context.Context, s *session.Session[O, S]) (query.Query, error)) Action[O, S] {
	return Action[O, S]{
		Name:   name,
		repeat: repeat,
		generate: func(ctx context.Context, s *session.Session[O, S]) ([]query.Query, error) {
			q, err := gen(ctx, s)
			if err != nil {
				return nil, err
			}
			return []query.Query{q}, nil
		},
	}
}

// NewBatch builds an action whose repetition runs several statements in order.
func NewBatch[O, S any](name string, repeat RepeatFunc[O, S], gen func(ctx context.Context, s *session.Session[O, S]) ([]query.Query, error)) Action[O, S] {
	return Action[O, S]{Name: name, repeat: repeat, generate: gen}
}

// Repetitions evaluates the policy once. Negative values count as zero.
func (a Action[O, S]) Repetitions(s *session.Session[O, S]) int {
	if a.repeat == nil {
		return 0
	}
	if n := a.repeat(s); n > 0 {
		return n
	}
	return 0
}

// Generate builds the statements of one repetition.
func (a Action[O, S]) Generate(ctx context.Context, s *session.Session[O, S]) ([]query.Query, error) {
	return a.generate(ctx, s)
}

// UpTo repeats an action a uniform number of times in [0, max].
func UpTo[O, S any](max int) RepeatFunc[O, S] {
	return func(s *session.Session[O, S]) int {
		return util.RandIntRange(s.Rand, 0, max)
	}
}

// Exactly repeats an action n times.
func Exactly[O, S any](n int) RepeatFunc[O, S] {
	return func(*session.Session[O, S]) int { return n }
}

// Never disables an action.
func Never[O, S any]() RepeatFunc[O, S] {
	return Exactly[O, S](0)
}
