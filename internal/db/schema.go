package db

import "database/sql"

// SchemaSQL is the complete modern schema for fresh journal databases.
// This schema reflects the current state after all migrations.
//
// This is the single source of truth for the journal schema. Tests use it
// via GetSchemaSQL() instead of hardcoding CREATE TABLE statements, so any
// column a repository references but the schema lacks fails immediately
// with "no such column".
//
// IMPORTANT: keep this in sync with migrations.go. When adding a column or
// table, add a migration there and update SchemaSQL here.
const SchemaSQL = `
-- Run journal (one row per certward run, best effort)
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	hostname TEXT NOT NULL,
	environment TEXT NOT NULL CHECK(environment IN ('staging', 'production')),
	action TEXT NOT NULL CHECK(action IN ('none', 'skip', 'request', 'renew')),
	outcome TEXT NOT NULL CHECK(outcome IN ('success', 'failure')),
	reason TEXT NOT NULL DEFAULT '',
	failed_stage TEXT,
	error_text TEXT,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_hostname ON runs(hostname, started_at);
`

// InitSchema creates the journal schema on conn
func InitSchema(conn *sql.DB) error {
	// Check if schema_version table exists to determine if this is a fresh install
	var tableCount int
	err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount == 0 {
		// No version table - check if a pre-versioning journal exists
		var oldTableCount int
		err = conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='runs'").Scan(&oldTableCount)
		if err != nil {
			return err
		}

		if oldTableCount > 0 {
			// Old journal exists - run migrations to upgrade
			return RunMigrations(conn)
		}

		// Completely fresh install - create modern schema directly
		// and mark all migrations as applied so they never re-run
		if _, err := conn.Exec(SchemaSQL); err != nil {
			return err
		}
		_, err = conn.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY,
				applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)
		`)
		if err != nil {
			return err
		}
		for i := 1; i <= len(migrations); i++ {
			if _, err := conn.Exec("INSERT INTO schema_version (version) VALUES (?)", i); err != nil {
				return err
			}
		}
		return nil
	}

	// schema_version table exists - run any pending migrations
	return RunMigrations(conn)
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
