package generator

import "lancer/internal/schema"

// Dialect captures the syntax differences the generators care about.
type Dialect struct {
	Name string
	// ColumnTypes lists the types used for new columns.
	ColumnTypes []schema.ColumnType
	TypeName    func(schema.ColumnType) string
	// ConcatOp joins strings. Empty means CONCAT(a, b).
	ConcatOp string
	// TypedNull renders NULL as CAST(NULL AS type) so overloaded operators resolve.
	TypedNull      bool
	PartialIndexes bool
	CheckClauses   bool
	IntFunctions   []string
	TextFunctions  []string
	RealFunctions  []string
	// DateLiteral renders a YYYY-MM-DD string as a date constant.
	DateLiteral func(string) string
}

func (d Dialect) supports(t schema.ColumnType) bool {
	for _, ct := range d.ColumnTypes {
		if ct == t {
			return true
		}
	}
	return false
}
