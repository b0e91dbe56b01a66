package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/anthropics/foreman/internal/domain"
)

// RunRepo handles persistence for the run registry.
type RunRepo struct{}

// CreateTx inserts a new run within an existing transaction.
func (r *RunRepo) CreateTx(ctx context.Context, tx *sql.Tx, rec domain.RunRecord) error {
	const q = `INSERT INTO runs (run_id, status, safety_profile, state_version, created_at_unix, updated_at_unix)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		rec.RunID,
		string(rec.Status),
		string(rec.SafetyProfile),
		rec.StateVersion,
		rec.CreatedAtUnix,
		rec.UpdatedAtUnix,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.ErrDuplicateRun
		}
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateStatusTx moves a run to a new status within a transaction using
// optimistic locking. The update only succeeds if the current
// state_version matches the expected version.
func (r *RunRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, rec domain.RunRecord) error {
	const q = `UPDATE runs SET
		status = ?,
		state_version = state_version + 1,
		updated_at_unix = ?
	WHERE run_id = ? AND state_version = ?`

	res, err := tx.ExecContext(ctx, q,
		string(rec.Status),
		rec.UpdatedAtUnix,
		rec.RunID,
		rec.StateVersion,
	)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrStaleRun
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepo) GetByID(ctx context.Context, db *sql.DB, runID string) (*domain.RunRecord, error) {
	const q = `SELECT run_id, status, safety_profile, state_version, created_at_unix, updated_at_unix
FROM runs WHERE run_id = ?`

	row := db.QueryRowContext(ctx, q, runID)

	var rec domain.RunRecord
	var status, profile string
	err := row.Scan(&rec.RunID, &status, &profile, &rec.StateVersion, &rec.CreatedAtUnix, &rec.UpdatedAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	rec.Status = domain.RunStatus(status)
	rec.SafetyProfile = domain.SafetyProfile(profile)
	return &rec, nil
}

// List returns all runs ordered by creation time descending.
func (r *RunRepo) List(ctx context.Context, db *sql.DB) ([]domain.RunRecord, error) {
	const q = `SELECT run_id, status, safety_profile, state_version, created_at_unix, updated_at_unix
FROM runs ORDER BY created_at_unix DESC`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var recs []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var status, profile string
		if err := rows.Scan(&rec.RunID, &status, &profile, &rec.StateVersion, &rec.CreatedAtUnix, &rec.UpdatedAtUnix); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Status = domain.RunStatus(status)
		rec.SafetyProfile = domain.SafetyProfile(profile)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
