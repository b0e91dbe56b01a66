package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anthropics/foreman/internal/domain"
)

// UsageRepo handles persistence for the token usage ledger.
type UsageRepo struct{}

// Record inserts a usage delta for one agent attempt.
func (r *UsageRepo) Record(ctx context.Context, db *sql.DB, delta domain.UsageDelta) error {
	const q = `INSERT INTO usage_deltas (run_id, phase_id, tier, model_used, tokens_used, prompt_tokens, completion_tokens, split_reported, created_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		delta.RunID,
		delta.PhaseID,
		string(delta.Tier),
		delta.ModelUsed,
		delta.TokensUsed,
		delta.PromptTokens,
		delta.CompletionTokens,
		boolToInt(delta.SplitReported),
		delta.CreatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// ListByRun returns all usage deltas for a run, oldest first.
func (r *UsageRepo) ListByRun(ctx context.Context, db *sql.DB, runID string) ([]domain.UsageDelta, error) {
	const q = `SELECT id, run_id, phase_id, tier, model_used, tokens_used, prompt_tokens, completion_tokens, split_reported, created_at_unix
FROM usage_deltas
WHERE run_id = ?
ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer rows.Close()

	var deltas []domain.UsageDelta
	for rows.Next() {
		var d domain.UsageDelta
		var tier string
		var split int
		if err := rows.Scan(&d.ID, &d.RunID, &d.PhaseID, &tier, &d.ModelUsed,
			&d.TokensUsed, &d.PromptTokens, &d.CompletionTokens, &split, &d.CreatedAtUnix); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		d.Tier = domain.Tier(tier)
		d.SplitReported = split != 0
		deltas = append(deltas, d)
	}
	return deltas, rows.Err()
}

// TotalTokens sums the tokens used across a whole run.
func (r *UsageRepo) TotalTokens(ctx context.Context, db *sql.DB, runID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(tokens_used), 0) FROM usage_deltas WHERE run_id = ?`

	var total int64
	if err := db.QueryRowContext(ctx, q, runID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum run usage: %w", err)
	}
	return total, nil
}

// TotalTokensForPhase sums the tokens used by one phase of a run.
func (r *UsageRepo) TotalTokensForPhase(ctx context.Context, db *sql.DB, runID, phaseID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(tokens_used), 0) FROM usage_deltas WHERE run_id = ? AND phase_id = ?`

	var total int64
	if err := db.QueryRowContext(ctx, q, runID, phaseID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum phase usage: %w", err)
	}
	return total, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
