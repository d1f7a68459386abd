// Package testutil provides shared test fixtures
package testutil

import (
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"vortex/internal/db"
)

// SetupTestDB creates a new in-memory database with the vortex schema
func SetupTestDB(t *testing.T) *db.DB {
	t.Helper()

	rawDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create raw database: %v", err)
	}

	if _, err := rawDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	schema := `
		CREATE TABLE workspaces (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			config_path TEXT NOT NULL,
			storage_path TEXT NOT NULL DEFAULT '',
			backend_kind TEXT NOT NULL DEFAULT 'krunvm',
			origin TEXT NOT NULL DEFAULT 'scanned',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE sessions (
			id TEXT PRIMARY KEY,
			vm_identity TEXT NOT NULL UNIQUE,
			workspace_name TEXT NOT NULL,
			service_name TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'planned',
			backend_kind TEXT NOT NULL DEFAULT 'krunvm',
			handle TEXT,
			error TEXT,
			attached_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX idx_sessions_workspace ON sessions(workspace_name);
		CREATE INDEX idx_sessions_state ON sessions(state);
	`

	if _, err := rawDB.Exec(schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	sqlxDB := sqlx.NewDb(rawDB, "sqlite3")
	database := &db.DB{DB: sqlxDB}

	t.Cleanup(func() {
		database.Close()
	})

	return database
}
