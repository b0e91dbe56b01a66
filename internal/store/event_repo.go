package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/anthropics/foreman/internal/domain"
)

// EventRepo handles persistence for the per-run ordered event log.
type EventRepo struct{}

// AppendTx inserts a phase event within an existing transaction. The
// (run_id, seq_no) pair is unique; a duplicate append is rejected so
// the log stays gap-free and strictly ordered.
func (r *EventRepo) AppendTx(ctx context.Context, tx *sql.Tx, event domain.PhaseEvent) error {
	const q = `INSERT INTO phase_events (run_id, phase_id, seq_no, event_type, payload_json, created_at_unix)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		event.RunID,
		event.PhaseID,
		event.SeqNo,
		event.EventType,
		event.PayloadJSON,
		event.CreatedAtUnix,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListByRun returns events for a run with sequence numbers greater than
// sinceSeq, ordered by sequence number ascending.
func (r *EventRepo) ListByRun(ctx context.Context, db *sql.DB, runID string, sinceSeq int64) ([]domain.PhaseEvent, error) {
	const q = `SELECT id, run_id, phase_id, seq_no, event_type, payload_json, created_at_unix
FROM phase_events
WHERE run_id = ? AND seq_no > ?
ORDER BY seq_no ASC`

	rows, err := db.QueryContext(ctx, q, runID, sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.PhaseEvent
	for rows.Next() {
		var e domain.PhaseEvent
		if err := rows.Scan(&e.ID, &e.RunID, &e.PhaseID, &e.SeqNo, &e.EventType, &e.PayloadJSON, &e.CreatedAtUnix); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// NextSeq returns the next free sequence number for a run's event log.
func (r *EventRepo) NextSeq(ctx context.Context, db *sql.DB, runID string) (int64, error) {
	const q = `SELECT COALESCE(MAX(seq_no), 0) FROM phase_events WHERE run_id = ?`

	var last int64
	if err := db.QueryRowContext(ctx, q, runID).Scan(&last); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return last + 1, nil
}
