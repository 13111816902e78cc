// Package testhelpers holds shared test fixtures.
package testhelpers

import (
	"context"
	"database/sql"
	"testing"

	"github.com/johnwards/notforce/internal/database"
)

// NewTestDB returns an in-memory SQLite database with all migrations
// applied, closed automatically when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	return db
}
