package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/anthropics/foreman/internal/domain"
)

// recordIDPattern constrains ids that become path components. The first
// character must be alphanumeric, which also rules out "." and "..".
var recordIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// FileStore persists per-run JSON records under a root directory:
//
//	<root>/runs/<runID>/routing_snapshot.json
//	<root>/runs/<runID>/proofs/<phaseID>.json
type FileStore struct {
	root string
}

// NewFileStore creates the store root if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the store's root directory.
func (s *FileStore) Root() string {
	return s.root
}

// runDir resolves the directory holding one run's records.
func (s *FileStore) runDir(runID string) (string, error) {
	if err := checkRecordID(runID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, "runs", runID), nil
}

func checkRecordID(id string) error {
	if !recordIDPattern.MatchString(id) {
		return domain.NewGovernorError(domain.ErrBadRecordID.Code,
			fmt.Sprintf("record id %q contains unsafe characters", id))
	}
	return nil
}

// writeJSON atomically replaces path with the JSON encoding of v: the
// data is written to a temp file in the same directory, synced, and
// renamed into place. A crash mid-write never leaves a partial record
// visible.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	renamed := false
	defer func() {
		if !renamed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	renamed = true
	return nil
}

// readJSON loads path into v. Absence is reported without error; a
// present-but-unparseable record is an error. Unknown fields are
// tolerated for forward compatibility.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return true, nil
}
