// Package oracle defines the test-oracle protocol, the composite that chains
// oracles, and the dialect-neutral NoREC and TLP-WHERE oracles.
package oracle

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Oracle checks one property of the database under test. Check returns nil
// when no bug was found, a discard when the probe was inconclusive, and a
// fatal error (usually *outcome.MismatchError) for a genuine bug.
type Oracle interface {
	Name() string
	Check(ctx context.Context) error
}

// Composite runs its oracles in order and stops at the first non-nil result.
type Composite struct {
	oracles []Oracle
}

// NewComposite chains oracles.
func NewComposite(oracles ...Oracle) *Composite {
	return &Composite{oracles: oracles}
}

// Name joins the member names.
func (c *Composite) Name() string {
	names := make([]string, len(c.oracles))
	for i, o := range c.oracles {
		names[i] = o.Name()
	}
	return strings.Join(names, "+")
}

// Check runs every member until one reports.
func (c *Composite) Check(ctx context.Context) error {
	for _, o := range c.oracles {
		if err := o.Check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of member oracles.
func (c *Composite) Len() int { return len(c.oracles) }

// Names lists the oracle names accepted by New.
var Names = []string{"norec", "tlp_where"}

// New builds the oracles named in names, in order. More than one name
// yields a Composite.
func New[O any](names []string, p Params[O]) (Oracle, error) {
	if len(names) == 0 {
		return nil, errors.New("no oracle configured")
	}
	oracles := make([]Oracle, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(name) {
		case "norec":
			oracles = append(oracles, NewNoREC(p))
		case "tlp_where", "tlpwhere", "query_partitioning":
			oracles = append(oracles, NewTLPWhere(p))
		default:
			return nil, errors.Errorf("unknown oracle %q (known: %s)", name, strings.Join(Names, ", "))
		}
	}
	if len(oracles) == 1 {
		return oracles[0], nil
	}
	return NewComposite(oracles...), nil
}
