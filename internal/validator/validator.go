// Package validator checks generated MySQL statements with the TiDB parser
// before they reach the server.
package validator

import (
	"github.com/pingcap/tidb/pkg/parser"
	_ "github.com/pingcap/tidb/pkg/types/parser_driver"
	"github.com/pkg/errors"
)

// Validator is not safe for concurrent use; keep one per connection.
type Validator struct {
	parser *parser.Parser
}

// New returns a Validator.
func New() *Validator {
	return &Validator{parser: parser.New()}
}

// Validate parses sql and fails unless it is exactly one valid statement.
func (v *Validator) Validate(sql string) error {
	stmts, _, err := v.parser.ParseSQL(sql)
	if err != nil {
		return err
	}
	if len(stmts) != 1 {
		return errors.Errorf("expected one statement, parsed %d", len(stmts))
	}
	return nil
}
