package store

import (
	"database/sql"
	"fmt"

	"romgen/internal/logging"

	"go.uber.org/zap"
)

// Schema versions, tracked in PRAGMA user_version:
// v1: derivations cache
// v2: runs history
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS derivations (
		key              TEXT PRIMARY KEY,
		family           TEXT NOT NULL,
		num_modes        INTEGER NOT NULL,
		dissipation_free INTEGER NOT NULL,
		expressions      TEXT NOT NULL,
		created_at       INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_derivations_created_at ON derivations(created_at);`,

	`CREATE TABLE IF NOT EXISTS runs (
		run_id     TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		selection  TEXT NOT NULL,
		model      INTEGER NOT NULL,
		num_modes  INTEGER NOT NULL,
		artifact   TEXT NOT NULL DEFAULT '',
		outcome    TEXT NOT NULL DEFAULT '',
		violation  TEXT NOT NULL DEFAULT '',
		error      TEXT NOT NULL DEFAULT '',
		elapsed_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,
}

// CurrentSchemaVersion is the version a freshly migrated database reports.
var CurrentSchemaVersion = len(migrations)

// SchemaVersion reads the schema version of db.
func SchemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// migrate applies every migration newer than the database's version, each
// in its own transaction.
func migrate(db *sql.DB) error {
	log := logging.Get(logging.CategoryStore)

	from, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if from > len(migrations) {
		return fmt.Errorf("store schema version %d is newer than supported version %d", from, len(migrations))
	}

	for v := from; v < len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration v%d: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d: %w", v+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration v%d: %w", v+1, err)
		}
		log.Debug("migration applied", zap.Int("version", v+1))
	}
	if from < len(migrations) {
		log.Info("store schema migrated", zap.Int("from", from), zap.Int("to", len(migrations)))
	}
	return nil
}
