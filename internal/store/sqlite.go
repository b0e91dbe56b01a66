// Package store provides SQLite and file-backed persistence for the
// execution governor: the run registry, decision audit trail, usage
// ledger, and phase event log live in SQLite; routing snapshots and
// phase proofs live as per-run JSON files.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	status          TEXT NOT NULL DEFAULT 'running',
	safety_profile  TEXT NOT NULL DEFAULT 'normal',
	state_version   INTEGER NOT NULL DEFAULT 1,
	created_at_unix INTEGER NOT NULL DEFAULT 0,
	updated_at_unix INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS decisions (
	id                   TEXT PRIMARY KEY,
	run_id               TEXT NOT NULL,
	phase_id             TEXT NOT NULL,
	decision             TEXT NOT NULL,
	reason               TEXT NOT NULL,
	budget_remaining     REAL NOT NULL DEFAULT 0.0,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	escalations_used     INTEGER NOT NULL DEFAULT 0,
	note                 TEXT NOT NULL DEFAULT '',
	created_at_unix      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id, created_at_unix);

CREATE TABLE IF NOT EXISTS usage_deltas (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id            TEXT NOT NULL,
	phase_id          TEXT NOT NULL,
	tier              TEXT NOT NULL DEFAULT '',
	model_used        TEXT NOT NULL DEFAULT '',
	tokens_used       INTEGER NOT NULL DEFAULT 0,
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	split_reported    INTEGER NOT NULL DEFAULT 0,
	created_at_unix   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_usage_run_phase ON usage_deltas(run_id, phase_id);

CREATE TABLE IF NOT EXISTS phase_events (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	phase_id        TEXT NOT NULL DEFAULT '',
	seq_no          INTEGER NOT NULL,
	event_type      TEXT NOT NULL,
	payload_json    TEXT NOT NULL DEFAULT '{}',
	created_at_unix INTEGER NOT NULL DEFAULT 0,
	UNIQUE(run_id, seq_no)
);
CREATE INDEX IF NOT EXISTS idx_phase_events_run_seq ON phase_events(run_id, seq_no);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
