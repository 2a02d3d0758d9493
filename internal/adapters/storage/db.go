package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// migration is one step of the schema chain. Steps must be idempotent (IF NOT EXISTS)
// so a database created before version tracking can be brought under it.
type migration struct {
	version     int
	description string
	apply       func(tx *sql.Tx) error
}

// migrations is the ordered schema history. Append only; never edit a released step.
var migrations = []migration{
	{
		version:     1,
		description: "calendar_record baseline",
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS calendar_record (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				name TEXT NOT NULL,
				start_at TEXT NOT NULL,
				end_at TEXT NOT NULL,
				color TEXT,
				is_editable INTEGER,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);`)
			return err
		},
	},
	{
		version:     2,
		description: "calendar_record filter indexes",
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
			CREATE INDEX IF NOT EXISTS idx_calendar_record_start ON calendar_record(start_at);
			CREATE INDEX IF NOT EXISTS idx_calendar_record_title ON calendar_record(title);`)
			return err
		},
	},
}

// LatestSchemaVersion returns the version the migration chain ends at.
// PRE: none
// POST: returns the highest migration version
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the version recorded in schema_version, or 0 for an untracked database.
// PRE: db is a valid database connection
// POST: returns version >= 0
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	var version int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// MigrateDB applies every pending migration, each in its own transaction.
// PRE: db is a valid database connection; dbPath names it for logging
// POST: schema is at LatestSchemaVersion; running again is a no-op
func MigrateDB(db *sql.DB, dbPath string) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", m.version, err)
		}
		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
			m.version, time.Now().UTC().Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: record version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.version, err)
		}
		slog.Info("schema_migrated", "db", dbPath, "version", m.version, "description", m.description)
	}
	return nil
}
