// Package sqlite implements the history repo using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ubitquityx/constellation"
	"github.com/ubitquityx/constellation/database/internal"
)

// timeLayout is fixed width so timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const historyColumns = `id, cid, name, size_bytes, source_path, endpoint, pinned, wrapped, created_at`

var _ constellation.HistoryRepo = (*Repo)(nil)

type Repo struct {
	db        *sql.DB
	tableName string
	now       func() time.Time
}

// NewRepo returns a history repo storing records in tables.History.
// The table must already exist; see Migrate.
func NewRepo(db *sql.DB, tables constellation.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{db: db, tableName: quoteIdentifier(tables.History), now: time.Now}, nil
}

func (r *Repo) Add(ctx context.Context, entry constellation.HistoryEntry) (constellation.HistoryRecord, error) {
	if entry.Size > math.MaxInt64 {
		return constellation.HistoryRecord{}, fmt.Errorf("add: size %d out of range", entry.Size)
	}

	rec := constellation.HistoryRecord{
		ID:         uuid.New(),
		CID:        entry.CID,
		Name:       entry.Name,
		Size:       entry.Size,
		SourcePath: entry.SourcePath,
		Endpoint:   entry.Endpoint,
		Pinned:     entry.Pinned,
		Wrapped:    entry.Wrapped,
		CreatedAt:  r.now().UTC(),
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.tableName, historyColumns)

	_, err := r.db.ExecContext(ctx, query,
		rec.ID.String(), rec.CID, rec.Name, int64(rec.Size), rec.SourcePath, rec.Endpoint,
		rec.Pinned, rec.Wrapped, rec.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return constellation.HistoryRecord{}, fmt.Errorf("add: %w", err)
	}

	return rec, nil
}

func (r *Repo) Get(ctx context.Context, cid string) (constellation.HistoryRecord, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s
		FROM %s
		WHERE cid = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, historyColumns, r.tableName)

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, cid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

	if q.CID != "" {
		conditions = append(conditions, "cid = ?")
		args = append(args, q.CID)
	}
	if q.NamePrefix != "" {
		conditions = append(conditions, `name LIKE ? || '%' ESCAPE '\'`)
		args = append(args, internal.EscapeLikePattern(q.NamePrefix))
	}
	if q.Cursor != "" {
		conditions = append(conditions, "(created_at, id) < (?, ?)")
		args = append(args, cursor.CreatedAt.UTC().Format(timeLayout), cursor.ID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s
		FROM %s
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, historyColumns, r.tableName, where)
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return constellation.HistoryPage{}, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]constellation.HistoryRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return constellation.HistoryPage{}, fmt.Errorf("list: %w", scanErr)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (constellation.HistoryRecord, error) {
	var rec constellation.HistoryRecord
	var idStr, createdAt string
	var size int64

	err := row.Scan(&idStr, &rec.CID, &rec.Name, &size, &rec.SourcePath, &rec.Endpoint,
		&rec.Pinned, &rec.Wrapped, &createdAt)
	if err != nil {
		return constellation.HistoryRecord{}, err
	}

	rec.ID, err = uuid.Parse(idStr)
	if err != nil {
		return constellation.HistoryRecord{}, fmt.Errorf("parse uuid: %w", err)
	}

	rec.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return constellation.HistoryRecord{}, fmt.Errorf("parse created_at: %w", err)
	}

	rec.Size = uint64(size) //nolint:gosec // G115: written from a checked uint64

	return rec, nil
}
