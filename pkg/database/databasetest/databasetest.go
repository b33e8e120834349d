// Package databasetest opens throwaway migrated sqlite databases for tests.
package databasetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"tomdash/pkg/database"
)

func New(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "tom.db")})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
