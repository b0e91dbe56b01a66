// Package proof builds and validates phase proofs, the append-once
// records of what each phase changed and verified.
//
// Construction is a pure validation boundary: bounded fields are
// enforced here and over-length input is rejected, never truncated.
// Callers that want truncation do it before construction.
package proof

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anthropics/foreman/internal/domain"
)

const (
	// SchemaVersion is stamped on every proof written by this build.
	SchemaVersion = 1
	// MaxKeyChanges bounds the key-change list.
	MaxKeyChanges = 10
	// MaxListItems bounds the probe and contract lists.
	MaxListItems = 20
	// MaxSummaryLen bounds every free-text field, in bytes.
	MaxSummaryLen = 500
)

// Input carries everything needed to construct a proof.
type Input struct {
	RunID        string
	PhaseID      string
	StartedAt    time.Time
	CompletedAt  time.Time
	Changes      domain.ChangeSummary
	Verification domain.VerificationSummary
	Success      bool
	ErrorSummary string
}

// New validates the input and constructs a proof with a fresh proof id.
func New(in Input) (*domain.PhaseProof, error) {
	p := domain.PhaseProof{
		ProofID:         uuid.New().String(),
		RunID:           in.RunID,
		PhaseID:         in.PhaseID,
		CreatedAtUnix:   in.StartedAt.Unix(),
		CompletedAtUnix: in.CompletedAt.Unix(),
		DurationSeconds: in.CompletedAt.Sub(in.StartedAt).Seconds(),
		Changes:         in.Changes,
		Verification:    in.Verification,
		Success:         in.Success,
		ErrorSummary:    in.ErrorSummary,
		SchemaVersion:   SchemaVersion,
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every bounded-field invariant and returns an error
// listing all problems if any are found.
func Validate(p domain.PhaseProof) error {
	var problems []string

	if p.RunID == "" {
		problems = append(problems, "run id must be non-empty")
	}
	if p.PhaseID == "" {
		problems = append(problems, "phase id must be non-empty")
	}
	if p.CompletedAtUnix < p.CreatedAtUnix {
		problems = append(problems, "completed before started")
	}
	if p.DurationSeconds < 0 {
		problems = append(problems, "duration is negative")
	}

	if len(p.Changes.KeyChanges) > MaxKeyChanges {
		problems = append(problems, fmt.Sprintf("key changes list has %d entries, max %d", len(p.Changes.KeyChanges), MaxKeyChanges))
	}
	problems = appendOverlongItems(problems, "key change", p.Changes.KeyChanges)
	if len(p.Changes.Summary) > MaxSummaryLen {
		problems = append(problems, fmt.Sprintf("change summary is %d bytes, max %d", len(p.Changes.Summary), MaxSummaryLen))
	}
	for _, c := range []struct {
		name  string
		value int
	}{
		{"files created", p.Changes.FilesCreated},
		{"files modified", p.Changes.FilesModified},
		{"files deleted", p.Changes.FilesDeleted},
		{"tests passed", p.Verification.TestsPassed},
		{"tests failed", p.Verification.TestsFailed},
	} {
		if c.value < 0 {
			problems = append(problems, c.name+" count is negative")
		}
	}

	if len(p.Verification.ProbesExecuted) > MaxListItems {
		problems = append(problems, fmt.Sprintf("probe list has %d entries, max %d", len(p.Verification.ProbesExecuted), MaxListItems))
	}
	if len(p.Verification.ContractsVerified) > MaxListItems {
		problems = append(problems, fmt.Sprintf("contract list has %d entries, max %d", len(p.Verification.ContractsVerified), MaxListItems))
	}
	problems = appendOverlongItems(problems, "probe", p.Verification.ProbesExecuted)
	problems = appendOverlongItems(problems, "contract", p.Verification.ContractsVerified)
	if len(p.Verification.Summary) > MaxSummaryLen {
		problems = append(problems, fmt.Sprintf("verification summary is %d bytes, max %d", len(p.Verification.Summary), MaxSummaryLen))
	}

	if p.Success && p.ErrorSummary != "" {
		problems = append(problems, "error summary must be empty when the phase succeeded")
	}
	if !p.Success && p.ErrorSummary == "" {
		problems = append(problems, "error summary is required when the phase failed")
	}
	if len(p.ErrorSummary) > MaxSummaryLen {
		problems = append(problems, fmt.Sprintf("error summary is %d bytes, max %d", len(p.ErrorSummary), MaxSummaryLen))
	}

	if len(problems) > 0 {
		return domain.NewGovernorError(domain.ErrProofInvalid.Code, strings.Join(problems, "; "))
	}
	return nil
}

func appendOverlongItems(problems []string, kind string, items []string) []string {
	for i, item := range items {
		if len(item) > MaxSummaryLen {
			problems = append(problems, fmt.Sprintf("%s[%d] is %d bytes, max %d", kind, i, len(item), MaxSummaryLen))
		}
	}
	return problems
}
