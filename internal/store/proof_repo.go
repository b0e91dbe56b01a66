package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anthropics/foreman/internal/domain"
)

const proofsDir = "proofs"

// ProofRepo persists phase proofs as one JSON file per phase under the
// run's directory.
type ProofRepo struct {
	files *FileStore
}

// NewProofRepo creates a proof repo over the given file store.
func NewProofRepo(files *FileStore) *ProofRepo {
	return &ProofRepo{files: files}
}

// Save writes the proof to runs/<run>/proofs/<phase>.json. Saving the
// same phase again replaces the previous proof atomically.
func (r *ProofRepo) Save(ctx context.Context, p *domain.PhaseProof) error {
	dir, err := r.files.runDir(p.RunID)
	if err != nil {
		return err
	}
	if err := checkRecordID(p.PhaseID); err != nil {
		return err
	}
	path := filepath.Join(dir, proofsDir, p.PhaseID+".json")
	if err := writeJSON(path, p); err != nil {
		return fmt.Errorf("write proof for phase %s: %w", p.PhaseID, err)
	}
	return nil
}

// Load returns the proof for a phase, reporting absence without error.
func (r *ProofRepo) Load(ctx context.Context, runID, phaseID string) (*domain.PhaseProof, bool, error) {
	dir, err := r.files.runDir(runID)
	if err != nil {
		return nil, false, err
	}
	if err := checkRecordID(phaseID); err != nil {
		return nil, false, err
	}
	var p domain.PhaseProof
	ok, err := readJSON(filepath.Join(dir, proofsDir, phaseID+".json"), &p)
	if err != nil || !ok {
		return nil, false, err
	}
	return &p, true, nil
}

// List returns the phase IDs with recorded proofs, sorted. A run with
// no proofs yet yields an empty list.
func (r *ProofRepo) List(ctx context.Context, runID string) ([]string, error) {
	dir, err := r.files.runDir(runID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(dir, proofsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list proofs for run %s: %w", runID, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
