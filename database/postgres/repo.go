// Package postgres implements the history repo using PostgreSQL
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ubitquityx/constellation"
	"github.com/ubitquityx/constellation/database/internal"
)

// Tables is an alias for constellation.Tables for package compatibility.
type Tables = constellation.Tables

const historyColumns = `id, cid, name, size_bytes, source_path, endpoint, pinned, wrapped, created_at`

var _ constellation.HistoryRepo = (*Repo)(nil)

type Repo struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewRepo returns a history repo storing records in tables.History.
// The table must already exist; see Migrate.
func NewRepo(pool *pgxpool.Pool, tables Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{pool: pool, tableName: pgx.Identifier{tables.History}.Sanitize()}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repo) Add(ctx context.Context, entry constellation.HistoryEntry) (constellation.HistoryRecord, error) {
	if entry.Size > math.MaxInt64 {
		return constellation.HistoryRecord{}, fmt.Errorf("add: size %d out of range", entry.Size)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (cid, name, size_bytes, source_path, endpoint, pinned, wrapped)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s
	`, r.tableName, historyColumns)

	row := r.pool.QueryRow(ctx, query,
		entry.CID, entry.Name, int64(entry.Size), entry.SourcePath, entry.Endpoint, entry.Pinned, entry.Wrapped,
	)

	rec, err := scanRecord(row)
	if err != nil {
		return constellation.HistoryRecord{}, fmt.Errorf("add: %w", err)
	}

	return rec, nil
}

func (r *Repo) Get(ctx context.Context, cid string) (constellation.HistoryRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE cid = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, historyColumns, r.tableName)

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, cid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return constellation.HistoryRecord{}, fmt.Errorf("get: %w", constellation.ErrHistoryNotFound)
		}
		return constellation.HistoryRecord{}, fmt.Errorf("get: %w", err)
	}

	return rec, nil
}

func (r *Repo) List(ctx context.Context, q constellation.HistoryQuery) (constellation.HistoryPage, error) {
	cursor, err := internal.DecodeCursor(q.Cursor)
	if err != nil {
		return constellation.HistoryPage{}, fmt.Errorf("list: %w", err)
	}

	limit := q.PageSize()

	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.CID != "" {
		conditions = append(conditions, "cid = "+arg(q.CID))
	}
	if q.NamePrefix != "" {
		conditions = append(conditions, "name LIKE "+arg(internal.EscapeLikePattern(q.NamePrefix))+" || '%'")
	}
	if q.Cursor != "" {
		createdAt := arg(cursor.CreatedAt)
		id := arg(cursor.ID)
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < (%s, %s::uuid)", createdAt, id))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT %s
	`, historyColumns, r.tableName, where, arg(limit+1))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return constellation.HistoryPage{}, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	items := make([]constellation.HistoryRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return constellation.HistoryPage{}, fmt.Errorf("list: scan: %w", scanErr)
		}
		items = append(items, rec)
	}

	if err := rows.Err(); err != nil {
		return constellation.HistoryPage{}, fmt.Errorf("list: rows: %w", err)
	}

	var nextCursor string
	if len(items) > limit {
		// Cursor points to the last item of the current page
		lastItem := items[limit-1]
		nextCursor = internal.EncodeCursor(lastItem.CreatedAt, lastItem.ID.String())
		items = items[:limit]
	}

	return constellation.HistoryPage{Items: items, NextCursor: nextCursor}, nil
}

func scanRecord(row pgx.Row) (constellation.HistoryRecord, error) {
	var rec constellation.HistoryRecord
	var size int64

	err := row.Scan(&rec.ID, &rec.CID, &rec.Name, &size, &rec.SourcePath, &rec.Endpoint,
		&rec.Pinned, &rec.Wrapped, &rec.CreatedAt)
	if err != nil {
		return constellation.HistoryRecord{}, err
	}

	rec.Size = uint64(size) //nolint:gosec // G115: column is constrained to be non-negative
	rec.CreatedAt = rec.CreatedAt.UTC()

	return rec, nil
}
