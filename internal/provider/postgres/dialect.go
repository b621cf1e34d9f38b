package postgres

import (
	"strings"

	"lancer/internal/generator"
	"lancer/internal/query"
	"lancer/internal/schema"
)

// Dialect is the expression syntax used for PostgreSQL.
var Dialect = generator.Dialect{
	Name:           "postgres",
	ColumnTypes:    []schema.ColumnType{schema.TypeInt, schema.TypeText, schema.TypeBool, schema.TypeReal, schema.TypeDate},
	TypeName:       typeName,
	ConcatOp:       "||",
	TypedNull:      true,
	PartialIndexes: true,
	CheckClauses:   true,
	IntFunctions:   []string{"ABS"},
	TextFunctions:  []string{"LOWER", "UPPER", "MD5", "INITCAP", "RTRIM", "LTRIM"},
	RealFunctions:  []string{"ABS", "CEIL", "FLOOR"},
	DateLiteral:    func(s string) string { return "DATE '" + s + "'" },
}

func typeName(t schema.ColumnType) string {
	switch t {
	case schema.TypeInt:
		return "INT"
	case schema.TypeText:
		return "TEXT"
	case schema.TypeBool:
		return "BOOLEAN"
	case schema.TypeReal:
		return "REAL"
	case schema.TypeDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

func mapType(dataType string) schema.ColumnType {
	switch t := strings.ToLower(dataType); {
	case t == "integer" || t == "smallint" || t == "bigint":
		return schema.TypeInt
	case t == "text" || strings.HasPrefix(t, "character"):
		return schema.TypeText
	case t == "boolean":
		return schema.TypeBool
	case t == "real" || t == "double precision" || t == "numeric":
		return schema.TypeReal
	case t == "date":
		return schema.TypeDate
	default:
		return schema.TypeUnknown
	}
}

// ExpressionErrors are raised by well-typed expressions on unlucky data.
var ExpressionErrors = query.ExpectedErrors{
	"out of range",
	"division by zero",
	"invalid input syntax for",
	"operator does not exist",
	"could not determine which collation to use for string comparison",
	"cannot cast",
	"value too long",
	"is not unique",
	"You might need to add explicit type casts.",
}

func insertUpdateErrors() query.ExpectedErrors {
	errs := query.ExpectedErrors{
		"conflicting key value violates exclusion constraint",
		"reached maximum value of sequence",
		"violates foreign key constraint",
		"violates not-null constraint",
		"violates unique constraint",
		"violates check constraint",
		"duplicate key value",
		"cannot insert into column",
		"can only be updated to DEFAULT",
		"multiple assignments to same column",
		"but expression is of type",
		"View columns that are not columns of their base relation are not updatable",
	}
	errs.Add(ExpressionErrors...)
	return errs
}
