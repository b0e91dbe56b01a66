package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/anthropics/foreman/internal/domain"
)

const snapshotFile = "routing_snapshot.json"

// SnapshotRepo persists one routing snapshot per run as a JSON file.
type SnapshotRepo struct {
	files *FileStore
}

// NewSnapshotRepo creates a snapshot repo over the given file store.
func NewSnapshotRepo(files *FileStore) *SnapshotRepo {
	return &SnapshotRepo{files: files}
}

// SaveSnapshot atomically upserts the run's snapshot.
func (r *SnapshotRepo) SaveSnapshot(ctx context.Context, snap *domain.RoutingSnapshot) error {
	dir, err := r.files.runDir(snap.RunID)
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, snapshotFile), snap); err != nil {
		return fmt.Errorf("write snapshot for run %s: %w", snap.RunID, err)
	}
	return nil
}

// LoadSnapshot returns the run's persisted snapshot, reporting absence
// without error.
func (r *SnapshotRepo) LoadSnapshot(ctx context.Context, runID string) (*domain.RoutingSnapshot, bool, error) {
	dir, err := r.files.runDir(runID)
	if err != nil {
		return nil, false, err
	}
	var snap domain.RoutingSnapshot
	ok, err := readJSON(filepath.Join(dir, snapshotFile), &snap)
	if err != nil || !ok {
		return nil, false, err
	}
	return &snap, true, nil
}
