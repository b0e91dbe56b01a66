package proof

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/foreman/internal/domain"
)

func validInput() Input {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return Input{
		RunID:       "run-1",
		PhaseID:     "phase-auth",
		StartedAt:   start,
		CompletedAt: start.Add(90 * time.Second),
		Changes: domain.ChangeSummary{
			FilesCreated:  2,
			FilesModified: 1,
			KeyChanges:    []string{"added login handler", "wired session store"},
			Summary:       "implemented authentication endpoints",
		},
		Verification: domain.VerificationSummary{
			TestsPassed:    12,
			ProbesExecuted: []string{"POST /login"},
			Summary:        "all tests green",
		},
		Success: true,
	}
}

func TestNew_ValidProof(t *testing.T) {
	p, err := New(validInput())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ProofID == "" {
		t.Error("ProofID should be assigned")
	}
	if p.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", p.SchemaVersion, SchemaVersion)
	}
	if p.DurationSeconds != 90 {
		t.Errorf("DurationSeconds = %v, want 90", p.DurationSeconds)
	}
	if p.ErrorSummary != "" {
		t.Errorf("ErrorSummary = %q, want empty", p.ErrorSummary)
	}
}

func TestNew_FailureRequiresErrorSummary(t *testing.T) {
	in := validInput()
	in.Success = false
	in.ErrorSummary = ""

	_, err := New(in)
	if err == nil {
		t.Fatal("expected error for failed proof without error summary")
	}
	var gerr *domain.GovernorError
	if !errors.As(err, &gerr) || gerr.Code != domain.ErrProofInvalid.Code {
		t.Errorf("err = %v, want code %d", err, domain.ErrProofInvalid.Code)
	}

	in.ErrorSummary = "tests failed on the third attempt"
	if _, err := New(in); err != nil {
		t.Fatalf("failed proof with error summary should construct: %v", err)
	}
}

func TestNew_SuccessForbidsErrorSummary(t *testing.T) {
	in := validInput()
	in.ErrorSummary = "leftover text"

	if _, err := New(in); err == nil {
		t.Fatal("expected error for successful proof carrying an error summary")
	}
}

func TestNew_BoundsAreEnforced(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"too many key changes", func(in *Input) {
			in.Changes.KeyChanges = make([]string, MaxKeyChanges+1)
		}},
		{"over-length change summary", func(in *Input) {
			in.Changes.Summary = strings.Repeat("x", MaxSummaryLen+1)
		}},
		{"over-length verification summary", func(in *Input) {
			in.Verification.Summary = strings.Repeat("x", MaxSummaryLen+1)
		}},
		{"too many probes", func(in *Input) {
			in.Verification.ProbesExecuted = make([]string, MaxListItems+1)
		}},
		{"too many contracts", func(in *Input) {
			in.Verification.ContractsVerified = make([]string, MaxListItems+1)
		}},
		{"over-length key change entry", func(in *Input) {
			in.Changes.KeyChanges = []string{strings.Repeat("x", MaxSummaryLen+1)}
		}},
		{"over-length error summary", func(in *Input) {
			in.Success = false
			in.ErrorSummary = strings.Repeat("x", MaxSummaryLen+1)
		}},
		{"missing run id", func(in *Input) { in.RunID = "" }},
		{"missing phase id", func(in *Input) { in.PhaseID = "" }},
		{"completed before started", func(in *Input) {
			in.CompletedAt = in.StartedAt.Add(-1 * time.Minute)
		}},
		{"negative test count", func(in *Input) { in.Verification.TestsPassed = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			if _, err := New(in); err == nil {
				t.Fatal("expected construction to be rejected")
			}
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	p := domain.PhaseProof{
		Success:      false,
		ErrorSummary: "",
		Changes: domain.ChangeSummary{
			FilesCreated: -1,
			KeyChanges:   make([]string, MaxKeyChanges+1),
		},
	}

	err := Validate(p)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"run id", "phase id", "key changes", "files created", "error summary"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error should mention %q, got %q", want, msg)
		}
	}
}

func TestNew_NoTruncationFallback(t *testing.T) {
	in := validInput()
	in.Changes.Summary = strings.Repeat("y", MaxSummaryLen+50)

	p, err := New(in)
	if err == nil {
		t.Fatalf("over-length summary must be rejected, got proof %+v", p)
	}
	// The input is rejected, never silently shortened.
	if len(in.Changes.Summary) != MaxSummaryLen+50 {
		t.Error("input must not be mutated")
	}
}
