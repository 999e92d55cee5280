package persistence

import (
	"database/sql"
	"fmt"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 1

// initializeSchemaWithMigrations ensures the database schema is at the current version.
func initializeSchemaWithMigrations(db *sql.DB) error {
	currentVersion, err := getSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// If database is empty (version 0), create fresh schema
	if currentVersion == 0 {
		return createSchema(db)
	}

	if currentVersion == CurrentSchemaVersion {
		return nil
	}

	return fmt.Errorf("unsupported schema version %d (current is %d)", currentVersion, CurrentSchemaVersion)
}

// getSchemaVersion reads the schema version, returning 0 for a fresh database.
func getSchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var version int
	if err := db.QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE schema_version (
		version INTEGER NOT NULL
	);

	CREATE TABLE messages (
		id          TEXT PRIMARY KEY,
		project_id  TEXT NOT NULL,
		content     TEXT NOT NULL,
		role        TEXT NOT NULL CHECK (role IN ('USER', 'ASSISTANT')),
		type        TEXT NOT NULL CHECK (type IN ('RESULT', 'ERROR')),
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX idx_messages_project_created ON messages(project_id, created_at);

	CREATE TABLE fragments (
		id          TEXT PRIMARY KEY,
		message_id  TEXT NOT NULL UNIQUE REFERENCES messages(id) ON DELETE CASCADE,
		sandbox_url TEXT NOT NULL DEFAULT '',
		title       TEXT NOT NULL,
		files       TEXT NOT NULL DEFAULT '{}',
		model_path  TEXT NOT NULL DEFAULT '',
		report_path TEXT NOT NULL DEFAULT '',
		data_path   TEXT NOT NULL DEFAULT '',
		app_path    TEXT NOT NULL DEFAULT '',
		api_path    TEXT NOT NULL DEFAULT '',
		plots       TEXT NOT NULL DEFAULT '[]',
		metrics     TEXT NOT NULL DEFAULT '{}',
		phase       TEXT NOT NULL DEFAULT 'done',
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE steps (
		run_id     TEXT NOT NULL,
		step_id    TEXT NOT NULL,
		result     TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, step_id)
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
