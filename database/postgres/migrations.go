package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ubitquityx/constellation"
)

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, pool *pgxpool.Pool) error
	Down      func(ctx context.Context, pool *pgxpool.Pool) error
}

func getTableMigrations(tables constellation.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.History,
			Up:        createHistoryTable(tables.History),
			Down:      dropTable(tables.History),
		},
	}
}

// Migrate creates every table the history store needs.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables constellation.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, pool); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

// DropTables drops every table created by Migrate, in reverse order.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables constellation.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}

	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, pool); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createHistoryTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexCreated := pgx.Identifier{fmt.Sprintf("idx_%s_created", tableName)}.Sanitize()
		indexCID := pgx.Identifier{fmt.Sprintf("idx_%s_cid", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				cid TEXT NOT NULL,
				name TEXT NOT NULL,
				size_bytes BIGINT NOT NULL CHECK (size_bytes >= 0),
				source_path TEXT NOT NULL,
				endpoint TEXT NOT NULL,
				pinned BOOLEAN NOT NULL,
				wrapped BOOLEAN NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (created_at DESC, id DESC);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (cid);
		`,
			quotedTable,
			indexCreated, quotedTable,
			indexCID, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create history table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf("DROP TABLE IF EXISTS %s", pgx.Identifier{tableName}.Sanitize())
		_, err := pool.Exec(ctx, sql)
		return err
	}
}
