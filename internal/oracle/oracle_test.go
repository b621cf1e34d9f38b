package oracle

import (
	"context"
	"errors"
	"testing"

	"lancer/internal/outcome"
)

type fakeOracle struct {
	name  string
	err   error
	calls *[]string
}

func (f fakeOracle) Name() string { return f.name }

func (f fakeOracle) Check(context.Context) error {
	*f.calls = append(*f.calls, f.name)
	return f.err
}

func TestCompositeStopsAtFirstFailure(t *testing.T) {
	var calls []string
	mismatch := outcome.Mismatch("b", "1", "2", "SELECT 1")
	c := NewComposite(
		fakeOracle{name: "a", calls: &calls},
		fakeOracle{name: "b", err: mismatch, calls: &calls},
		fakeOracle{name: "c", calls: &calls},
	)
	err := c.Check(context.Background())
	var m *outcome.MismatchError
	if !errors.As(err, &m) || m.Oracle != "b" {
		t.Fatalf("expected mismatch from b, got %v", err)
	}
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Fatalf("unexpected call order %v", calls)
	}
	if c.Name() != "a+b+c" {
		t.Fatalf("Name=%s", c.Name())
	}
}

func TestCompositeDiscardAbortsProbe(t *testing.T) {
	var calls []string
	c := NewComposite(
		fakeOracle{name: "a", err: outcome.Discardf("no tables"), calls: &calls},
		fakeOracle{name: "b", calls: &calls},
	)
	err := c.Check(context.Background())
	if outcome.Classify(err) != outcome.KindDiscard {
		t.Fatalf("expected discard, got %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestCompositeAllPass(t *testing.T) {
	var calls []string
	c := NewComposite(fakeOracle{name: "a", calls: &calls}, fakeOracle{name: "b", calls: &calls})
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestNewRejectsUnknownOracle(t *testing.T) {
	if _, err := New([]string{"pqs"}, Params[struct{}]{}); err == nil {
		t.Fatalf("expected error for unknown oracle")
	}
	if _, err := New(nil, Params[struct{}]{}); err == nil {
		t.Fatalf("expected error for empty oracle list")
	}
}

func TestCompositeFatalFromFirstSkipsTheRest(t *testing.T) {
	var calls []string
	c := NewComposite(
		fakeOracle{name: "a", err: outcome.Unexpected("SELECT 1", errors.New("server crashed")), calls: &calls},
		fakeOracle{name: "b", calls: &calls},
		fakeOracle{name: "c", calls: &calls},
		fakeOracle{name: "d", calls: &calls},
	)
	err := c.Check(context.Background())
	if outcome.Classify(err) != outcome.KindFatal {
		t.Fatalf("expected fatal, got %v", err)
	}
	if len(calls) != 1 || calls[0] != "a" {
		t.Fatalf("oracles after the failing one must not run: %v", calls)
	}
}

func TestCompositeDiscardFromSecondSkipsThird(t *testing.T) {
	var calls []string
	c := NewComposite(
		fakeOracle{name: "a", calls: &calls},
		fakeOracle{name: "b", err: outcome.Discardf("empty candidate set"), calls: &calls},
		fakeOracle{name: "c", calls: &calls},
	)
	err := c.Check(context.Background())
	if !outcome.IsDiscard(err) {
		t.Fatalf("expected discard, got %v", err)
	}
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Fatalf("unexpected calls %v", calls)
	}
}
