package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS batches (
		id           TEXT PRIMARY KEY,
		session_id   INTEGER NOT NULL,
		event        TEXT NOT NULL,
		mode         TEXT NOT NULL,
		worker_count INTEGER NOT NULL,
		files        TEXT NOT NULL DEFAULT '[]',
		status       TEXT NOT NULL,
		message      TEXT NOT NULL DEFAULT '',
		results      TEXT NOT NULL DEFAULT '[]',
		delivered    INTEGER NOT NULL DEFAULT 0,
		duration_ns  INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS simulations (
		id                 TEXT PRIMARY KEY,
		policy             TEXT NOT NULL,
		quantum            INTEGER NOT NULL DEFAULT 0,
		workers            INTEGER NOT NULL,
		processes          TEXT NOT NULL DEFAULT '[]',
		average_waiting    REAL NOT NULL DEFAULT 0,
		average_turnaround REAL NOT NULL DEFAULT 0,
		makespan           INTEGER NOT NULL DEFAULT 0,
		created_at         TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_batches_event ON batches(event)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_simulations_policy ON simulations(policy)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
