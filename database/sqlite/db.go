package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ubitquityx/constellation"
	"github.com/ubitquityx/constellation/database/internal"
)

// historySchema is the history table as Repo expects it. SQLite stores uuids
// and timestamps as text and booleans as integers.
var historySchema = []internal.Column{
	{Name: "id", Type: "text"},
	{Name: "cid", Type: "text"},
	{Name: "name", Type: "text"},
	{Name: "size_bytes", Type: "integer"},
	{Name: "source_path", Type: "text"},
	{Name: "endpoint", Type: "text"},
	{Name: "pinned", Type: "integer"},
	{Name: "wrapped", Type: "integer"},
	{Name: "created_at", Type: "text"},
}

// ValidateSchema checks that the history table exists with the columns Repo
// reads and writes. A mismatch is reported as *internal.SchemaError.
func ValidateSchema(ctx context.Context, db *sql.DB, tables constellation.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}

	columns, err := tableColumns(ctx, db, tables.History)
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

// tableColumns reads PRAGMA table_info, which yields no rows for a missing table.
func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]internal.Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make(map[string]internal.Column)
	for rows.Next() {
		var (
			pos, notNull, pk int
			name, colType    string
			dflt             sql.NullString
		)
		if err := rows.Scan(&pos, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns[name] = internal.Column{Name: name, Type: colType, Nullable: notNull == 0}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	return columns, nil
}
