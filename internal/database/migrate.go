package database

import (
	"context"
	"fmt"
)

// migration is one schema step with per-dialect DDL
type migration struct {
	Version     int
	Description string
	Postgres    []string
	SQLite      []string
}

// migrations is ordered; append new steps with increasing versions.
var migrations = []migration{
	{
		Version:     1,
		Description: "diary entries",
		Postgres: []string{
			`CREATE TABLE IF NOT EXISTS diary_entries (
				id UUID PRIMARY KEY,
				text TEXT NOT NULL,
				insight JSONB,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_diary_entries_created_at ON diary_entries (created_at DESC)`,
		},
		SQLite: []string{
			`CREATE TABLE IF NOT EXISTS diary_entries (
				id TEXT PRIMARY KEY,
				text TEXT NOT NULL,
				insight TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_diary_entries_created_at ON diary_entries (created_at DESC)`,
		},
	},
	{
		Version:     2,
		Description: "rate limit configuration",
		Postgres: []string{
			`CREATE TABLE IF NOT EXISTS ratelimit_config (
				config_key TEXT PRIMARY KEY,
				rate TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
		},
		SQLite: []string{
			`CREATE TABLE IF NOT EXISTS ratelimit_config (
				config_key TEXT PRIMARY KEY,
				rate TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
}

func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

// Migrate brings the schema up to the latest version, tracking applied steps in schema_migrations
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		stmts := m.Postgres
		if db.dialect == DialectSQLite {
			stmts = m.SQLite
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
			}
		}
		if _, err := tx.ExecContext(ctx, db.rebind(`INSERT INTO schema_migrations (version) VALUES ($1)`), m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, 0 for a fresh database
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
