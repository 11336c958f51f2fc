package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.DB) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_runs_journal",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_reason_to_runs",
		Up:      migrationV2,
	},
}

// RunMigrations applies any pending migrations to conn
func RunMigrations(conn *sql.DB) error {
	// Create schema_version table if it doesn't exist
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	// Get current schema version
	var currentVersion int
	err = conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Run pending migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(conn); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		// Record migration
		_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// migrationV1 creates the original runs journal. Journals written before
// schema versioning existed already have this table, so every statement
// is idempotent.
func migrationV1(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			hostname TEXT NOT NULL,
			environment TEXT NOT NULL CHECK(environment IN ('staging', 'production')),
			action TEXT NOT NULL CHECK(action IN ('none', 'skip', 'request', 'renew')),
			outcome TEXT NOT NULL CHECK(outcome IN ('success', 'failure')),
			failed_stage TEXT,
			error_text TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_runs_hostname ON runs(hostname, started_at);
	`)
	return err
}

// migrationV2 adds the human-readable decision reason to the journal
func migrationV2(conn *sql.DB) error {
	_, err := conn.Exec(`ALTER TABLE runs ADD COLUMN reason TEXT NOT NULL DEFAULT ''`)
	return err
}
