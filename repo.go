package constellation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// HistoryRepo defines the interface for persisting the local upload history.
// Implementations must handle concurrent access safely.
//
// All methods accept a context for cancellation and timeout control.
type HistoryRepo interface {
	// Add records a successful upload.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - entry: HistoryEntry describing the upload
	//
	// Returns:
	//   - HistoryRecord: The stored record with ID and creation time
	//   - error: Any database error
	Add(ctx context.Context, entry HistoryEntry) (HistoryRecord, error)

	// Get retrieves a record by its CID, returning the newest when the same
	// content was uploaded more than once.
	//
	// Returns:
	//   - HistoryRecord: The record if found
	//   - error: ErrHistoryNotFound if no record has the CID, or other database errors
	Get(ctx context.Context, cid string) (HistoryRecord, error)

	// List retrieves a page of records, newest first.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - q: HistoryQuery with optional CID filter, limit, and cursor for pagination
	//
	// Returns:
	//   - HistoryPage: Matching records and the cursor for the next page
	//   - error: Any database error
	List(ctx context.Context, q HistoryQuery) (HistoryPage, error)
}

// Tables holds configurable table names for history storage.
type Tables struct {
	History string
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.History == "" {
		return errors.New("validate tables: history table name cannot be empty")
	}

	if !IsValidTableName(t.History) {
		return fmt.Errorf("validate tables: invalid history table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.History)
	}

	return nil
}
