package store

import (
	"database/sql"
	"fmt"
	"log"
)

// migration is one versioned schema change. Versions apply in slice
// order and are tracked in schema_migrations.
type migration struct {
	version     string
	description string
	sql         string
}

var migrations = []migration{
	{
		version:     "001",
		description: "users table",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				id            TEXT PRIMARY KEY,
				email         TEXT NOT NULL UNIQUE,
				name          TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				role          TEXT NOT NULL DEFAULT 'STUDENT',
				created_at    DATETIME NOT NULL
			);
		`,
	},
	{
		version:     "002",
		description: "classrooms and memberships",
		sql: `
			CREATE TABLE IF NOT EXISTS classrooms (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				is_live    INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL
			);
			CREATE TABLE IF NOT EXISTS classroom_users (
				classroom_id TEXT NOT NULL REFERENCES classrooms(id),
				user_id      TEXT NOT NULL REFERENCES users(id),
				role         TEXT NOT NULL,
				created_at   DATETIME NOT NULL,
				PRIMARY KEY (classroom_id, user_id)
			);
		`,
	},
	{
		version:     "003",
		description: "sessions and participant logs",
		sql: `
			CREATE TABLE IF NOT EXISTS sessions (
				id           TEXT PRIMARY KEY,
				classroom_id TEXT NOT NULL REFERENCES classrooms(id),
				started_at   DATETIME NOT NULL,
				ended_at     DATETIME
			);
			CREATE TABLE IF NOT EXISTS participant_logs (
				id         TEXT PRIMARY KEY,
				session_id TEXT NOT NULL REFERENCES sessions(id),
				user_id    TEXT NOT NULL REFERENCES users(id),
				role       TEXT NOT NULL,
				joined_at  DATETIME NOT NULL,
				left_at    DATETIME
			);
			CREATE INDEX IF NOT EXISTS idx_sessions_classroom ON sessions(classroom_id, started_at);
			CREATE INDEX IF NOT EXISTS idx_logs_session ON participant_logs(session_id, joined_at);
		`,
	},
	{
		version:     "004",
		description: "open-session and open-log uniqueness",
		sql: `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_open
				ON sessions(classroom_id) WHERE ended_at IS NULL;
			CREATE UNIQUE INDEX IF NOT EXISTS idx_logs_open
				ON participant_logs(session_id, user_id) WHERE left_at IS NULL;
		`,
	},
}

// applyMigrations applies pending migrations, each in its own
// transaction together with its tracking row.
func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.version, err)
		}
		log.Printf("Applied migration %s: %s", m.version, m.description)
	}
	return nil
}

func appliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(m.sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
