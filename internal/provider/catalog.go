package provider

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"lancer/internal/schema"
	"lancer/internal/session"
)

// ReadColumns scans an information_schema style listing. The query must
// return table name, column name, data type, is_nullable (YES/NO) and
// table type (VIEW for views) in that order.
func ReadColumns(ctx context.Context, conn session.Conn, text string, args ...any) ([]schema.CatalogColumn, error) {
	rows, err := conn.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list columns")
	}
	defer rows.Close()
	var out []schema.CatalogColumn
	for rows.Next() {
		var table, column, dataType, nullable, tableType string
		if err := rows.Scan(&table, &column, &dataType, &nullable, &tableType); err != nil {
			return nil, errors.Wrap(err, "scan column")
		}
		out = append(out, schema.CatalogColumn{
			Table:    table,
			Column:   column,
			DataType: dataType,
			Nullable: strings.EqualFold(nullable, "YES"),
			IsView:   strings.Contains(strings.ToUpper(tableType), "VIEW"),
		})
	}
	return out, errors.Wrap(rows.Err(), "list columns")
}

// ReadIndexes scans (table, index) pairs into a map keyed by table.
func ReadIndexes(ctx context.Context, conn session.Conn, text string, args ...any) (map[string][]string, error) {
	rows, err := conn.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list indexes")
	}
	defer rows.Close()
	out := make(map[string][]string)
	seen := make(map[string]struct{})
	for rows.Next() {
		var table, index string
		if err := rows.Scan(&table, &index); err != nil {
			return nil, errors.Wrap(err, "scan index")
		}
		key := table + "." + index
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out[table] = append(out[table], index)
	}
	return out, errors.Wrap(rows.Err(), "list indexes")
}
