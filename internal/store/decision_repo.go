package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anthropics/foreman/internal/domain"
)

// DecisionRepo handles persistence for the stuck-decision audit trail.
type DecisionRepo struct{}

// Record inserts a decision record.
func (r *DecisionRepo) Record(ctx context.Context, db *sql.DB, rec domain.DecisionRecord) error {
	const q = `INSERT INTO decisions (id, run_id, phase_id, decision, reason, budget_remaining, consecutive_failures, escalations_used, note, created_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		rec.ID,
		rec.RunID,
		rec.PhaseID,
		string(rec.Decision),
		string(rec.Reason),
		rec.BudgetRemaining,
		rec.ConsecutiveFailures,
		rec.EscalationsUsed,
		rec.Note,
		rec.CreatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// ListByRun returns all decision records for a run, oldest first.
func (r *DecisionRepo) ListByRun(ctx context.Context, db *sql.DB, runID string) ([]domain.DecisionRecord, error) {
	const q = `SELECT id, run_id, phase_id, decision, reason, budget_remaining, consecutive_failures, escalations_used, note, created_at_unix
FROM decisions
WHERE run_id = ?
ORDER BY created_at_unix ASC, id ASC`

	rows, err := db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var records []domain.DecisionRecord
	for rows.Next() {
		var d domain.DecisionRecord
		var decision, reason string
		if err := rows.Scan(&d.ID, &d.RunID, &d.PhaseID, &decision, &reason,
			&d.BudgetRemaining, &d.ConsecutiveFailures, &d.EscalationsUsed, &d.Note, &d.CreatedAtUnix); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Decision = domain.StuckDecision(decision)
		d.Reason = domain.StuckReason(reason)
		records = append(records, d)
	}
	return records, rows.Err()
}

// LastByPhase returns the most recent decision for a phase, or nil when
// the phase has none.
func (r *DecisionRepo) LastByPhase(ctx context.Context, db *sql.DB, runID, phaseID string) (*domain.DecisionRecord, error) {
	const q = `SELECT id, run_id, phase_id, decision, reason, budget_remaining, consecutive_failures, escalations_used, note, created_at_unix
FROM decisions
WHERE run_id = ? AND phase_id = ?
ORDER BY created_at_unix DESC, id DESC
LIMIT 1`

	row := db.QueryRowContext(ctx, q, runID, phaseID)

	var d domain.DecisionRecord
	var decision, reason string
	err := row.Scan(&d.ID, &d.RunID, &d.PhaseID, &decision, &reason,
		&d.BudgetRemaining, &d.ConsecutiveFailures, &d.EscalationsUsed, &d.Note, &d.CreatedAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("last decision: %w", err)
	}
	d.Decision = domain.StuckDecision(decision)
	d.Reason = domain.StuckReason(reason)
	return &d, nil
}
