// Package outcome defines the control signals that flow out of statement
// execution, action scheduling and oracle probes.
package outcome

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrDiscard marks a run as inconclusive. Callers restart locally and never
// report it as a failure.
var ErrDiscard = errors.New("discarded")

// Discardf returns ErrDiscard annotated with a reason.
func Discardf(format string, args ...any) error {
	return errors.Wrapf(ErrDiscard, format, args...)
}

// IsDiscard reports whether err carries the discard signal.
func IsDiscard(err error) bool {
	return errors.Is(err, ErrDiscard)
}

// MismatchError reports an oracle that observed two results which must agree.
type MismatchError struct {
	Oracle   string
	SQL      []string
	Expected string
	Actual   string
}

// Error implements error.
func (e *MismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: result mismatch (expected %s, actual %s)", e.Oracle, e.Expected, e.Actual)
	for _, sql := range e.SQL {
		b.WriteString("\n")
		b.WriteString(sql)
	}
	return b.String()
}

// Mismatch builds a stack-annotated mismatch.
func Mismatch(oracle string, expected, actual string, sql ...string) error {
	return errors.WithStack(&MismatchError{Oracle: oracle, SQL: sql, Expected: expected, Actual: actual})
}

// UnexpectedError wraps a database error that no expected-error entry matched.
type UnexpectedError struct {
	SQL   string
	Cause error
}

// Error implements error.
func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error %q for statement %s", e.Cause.Error(), e.SQL)
}

// Unwrap returns the driver error.
func (e *UnexpectedError) Unwrap() error {
	return e.Cause
}

// Unexpected builds a stack-annotated unexpected execution error.
func Unexpected(sql string, cause error) error {
	return errors.WithStack(&UnexpectedError{SQL: sql, Cause: cause})
}

// ConstructionError reports a generator that built an invalid statement.
type ConstructionError struct {
	SQL    string
	Reason string
}

// Error implements error.
func (e *ConstructionError) Error() string {
	return fmt.Sprintf("invalid statement %q: %s", e.SQL, e.Reason)
}

// Construction builds a stack-annotated construction error.
func Construction(sql, reason string) error {
	return errors.WithStack(&ConstructionError{SQL: sql, Reason: reason})
}

// Kind classifies an error returned by an executor, scheduler or oracle.
type Kind int

// Result kinds.
const (
	KindOK Kind = iota
	KindDiscard
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindDiscard:
		return "discard"
	default:
		return "fatal"
	}
}

// Classify maps err to its control-flow kind. Anything that is not a discard is fatal.
func Classify(err error) Kind {
	if err == nil {
		return KindOK
	}
	if IsDiscard(err) {
		return KindDiscard
	}
	return KindFatal
}
