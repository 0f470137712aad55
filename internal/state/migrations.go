package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one forward schema step. Versions are applied in order,
// each in its own transaction.
type migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema: system state and saved views",
		Up: execAll(
			`CREATE TABLE IF NOT EXISTS system_state (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS saved_views (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				selection TEXT NOT NULL, -- JSON dashboard selection
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
		),
	},
	{
		Version:     2,
		Description: "Add dataset load history",
		Up: execAll(
			`CREATE TABLE IF NOT EXISTS dataset_loads (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				source TEXT NOT NULL,
				checksum TEXT NOT NULL,
				trials INTEGER NOT NULL,
				subject_level INTEGER NOT NULL,
				group_level INTEGER NOT NULL,
				participants INTEGER NOT NULL,
				trials_dropped INTEGER NOT NULL DEFAULT 0,
				loaded_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_dataset_loads_loaded ON dataset_loads(loaded_at)`,
		),
	},
}

func execAll(statements ...string) func(*sql.Tx) error {
	return func(tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

func (d *Database) ensureMigrationsTable(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`)
	return err
}

// SchemaVersion returns the highest applied migration, 0 for a new file.
func (d *Database) SchemaVersion(ctx context.Context) (int, error) {
	if err := d.ensureMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	var version sql.NullInt64
	if err := d.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

// migrate applies every migration newer than the recorded version.
func (d *Database) migrate(ctx context.Context) error {
	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().Unix(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
