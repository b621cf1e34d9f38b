// Package query holds the unit of work handed to the executor: one statement,
// the error messages it may legitimately fail with, and whether it can change
// the schema.
package query

import (
	"regexp"
	"strings"

	"lancer/internal/outcome"
)

var schemaDefinition = regexp.MustCompile(`(?i)\b(CREATE|ALTER|DROP)\s+((GLOBAL|LOCAL)\s+)?((TEMP|TEMPORARY|UNLOGGED)\s+)?(TABLE|VIEW)\b`)

// ExpectedErrors is a set of message fragments. A failure whose message
// contains any fragment is tolerated.
type ExpectedErrors []string

// Add appends fragments.
func (e *ExpectedErrors) Add(fragments ...string) {
	*e = append(*e, fragments...)
}

// With returns a copy of e extended by extra.
func (e ExpectedErrors) With(extra ...string) ExpectedErrors {
	out := make(ExpectedErrors, 0, len(e)+len(extra))
	out = append(out, e...)
	return append(out, extra...)
}

// Matches reports whether msg contains any fragment. Matching is case sensitive.
func (e ExpectedErrors) Matches(msg string) bool {
	for _, fragment := range e {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// Query is an immutable statement ready for execution.
type Query struct {
	text          string
	affectsSchema bool
	expected      ExpectedErrors
}

// New canonicalizes text and validates the schema flag.
func New(text string, expected ExpectedErrors, affectsSchema bool) (Query, error) {
	text = Canonicalize(text)
	if !affectsSchema && schemaDefinition.MatchString(text) {
		return Query{}, outcome.Construction(text, "schema-defining statement must set the schema flag")
	}
	cp := make(ExpectedErrors, len(expected))
	copy(cp, expected)
	return Query{text: text, affectsSchema: affectsSchema, expected: cp}, nil
}

// Plain builds a statement that tolerates no errors and leaves the schema alone.
func Plain(text string) (Query, error) {
	return New(text, nil, false)
}

// Canonicalize terminates text with a semicolon unless it already has one or
// carries a trailing line comment.
func Canonicalize(text string) string {
	if strings.HasSuffix(text, ";") || strings.Contains(text, "--") {
		return text
	}
	return text + ";"
}

// Text returns the canonical statement.
func (q Query) Text() string { return q.text }

// AffectsSchema reports whether a successful run may alter the schema.
func (q Query) AffectsSchema() bool { return q.affectsSchema }

// Expected returns a copy of the tolerated error fragments.
func (q Query) Expected() ExpectedErrors {
	cp := make(ExpectedErrors, len(q.expected))
	copy(cp, q.expected)
	return cp
}

// Tolerates reports whether err matches an expected fragment.
func (q Query) Tolerates(err error) bool {
	if err == nil {
		return true
	}
	return q.expected.Matches(err.Error())
}

func (q Query) String() string { return q.text }
