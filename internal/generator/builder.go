package generator

import "strings"

// SQLBuilder accumulates SQL text.
type SQLBuilder struct {
	sb strings.Builder
}

// Write appends raw SQL text to the builder.
func (b *SQLBuilder) Write(s string) {
	b.sb.WriteString(s)
}

// String returns the assembled SQL statement.
func (b *SQLBuilder) String() string {
	return b.sb.String()
}

// Render builds e into a string.
func Render(e Expr) string {
	var b SQLBuilder
	e.Build(&b)
	return b.String()
}
