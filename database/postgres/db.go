package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ubitquityx/constellation"
	"github.com/ubitquityx/constellation/database/internal"
)

var historySchema = []internal.Column{
	{Name: "id", Type: "uuid"},
	{Name: "cid", Type: "text"},
	{Name: "name", Type: "text"},
	{Name: "size_bytes", Type: "bigint"},
	{Name: "source_path", Type: "text"},
	{Name: "endpoint", Type: "text"},
	{Name: "pinned", Type: "boolean"},
	{Name: "wrapped", Type: "boolean"},
	{Name: "created_at", Type: "timestamp with time zone"},
}

// ValidateSchema checks that the history table exists in the current schema
// with the columns Repo reads and writes. A mismatch is reported as
// *internal.SchemaError.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables constellation.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}

	columns, err := tableColumns(ctx, pool, tables.History)
	if err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}
	if len(columns) == 0 {
		return fmt.Errorf("validate schema: table %s does not exist", tables.History)
	}

	if err := internal.CompareColumns(tables.History, historySchema, columns); err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}
	return nil
}

func tableColumns(ctx context.Context, pool *pgxpool.Pool, table string) (map[string]internal.Column, error) {
	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
	`, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]internal.Column)
	for rows.Next() {
		var col internal.Column
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns[col.Name] = col
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	return columns, nil
}
