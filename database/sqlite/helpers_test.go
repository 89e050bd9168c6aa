package sqlite_test

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubitquityx/constellation"
	"github.com/ubitquityx/constellation/database/sqlite"

	_ "modernc.org/sqlite"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	assert.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// getTestDatabase opens an in-memory database. A single connection keeps
// every query on the same in-memory instance.
func getTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "failed to open sqlite database")
	db.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// setupTestRepo creates a repo with a unique table name for test isolation
func setupTestRepo(t *testing.T) (*sqlite.Repo, *sql.DB, constellation.Tables) {
	t.Helper()

	db := getTestDatabase(t)
	ctx := context.Background()

	tables := constellation.Tables{History: fmt.Sprintf("history_%s", getRandomString(t))}

	err := sqlite.Migrate(ctx, db, tables)
	require.NoError(t, err, "failed to migrate")

	repo, err := sqlite.NewRepo(db, tables)
	require.NoError(t, err, "failed to create repo")

	return repo, db, tables
}
