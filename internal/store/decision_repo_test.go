package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/anthropics/foreman/internal/domain"
)

func TestDecisionRepo_RecordAndList(t *testing.T) {
	dir := t.TempDir()
	db, err := NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := &DecisionRepo{}

	records := []domain.DecisionRecord{
		{ID: "d-1", RunID: "run-1", PhaseID: "build", Decision: domain.DecisionContinue,
			Reason: domain.ReasonRepeatedFailures, BudgetRemaining: 0.8, ConsecutiveFailures: 1, CreatedAtUnix: 100},
		{ID: "d-2", RunID: "run-1", PhaseID: "build", Decision: domain.DecisionEscalateModel,
			Reason: domain.ReasonRepeatedFailures, BudgetRemaining: 0.7, ConsecutiveFailures: 2, EscalationsUsed: 1, CreatedAtUnix: 200},
		{ID: "d-3", RunID: "run-2", PhaseID: "api", Decision: domain.DecisionStop,
			Reason: domain.ReasonBudgetExceeded, BudgetRemaining: 0, ConsecutiveFailures: 0, CreatedAtUnix: 300},
	}
	for _, rec := range records {
		if err := repo.Record(ctx, db, rec); err != nil {
			t.Fatalf("Record %s: %v", rec.ID, err)
		}
	}

	got, err := repo.ListByRun(ctx, db, "run-1")
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 decisions for run-1, got %d", len(got))
	}
	if got[0].ID != "d-1" || got[1].ID != "d-2" {
		t.Errorf("order = [%s, %s], want [d-1, d-2]", got[0].ID, got[1].ID)
	}
	if got[1].Decision != domain.DecisionEscalateModel {
		t.Errorf("Decision = %q, want %q", got[1].Decision, domain.DecisionEscalateModel)
	}
	if got[1].Reason != domain.ReasonRepeatedFailures {
		t.Errorf("Reason = %q, want %q", got[1].Reason, domain.ReasonRepeatedFailures)
	}
	if got[1].BudgetRemaining != 0.7 {
		t.Errorf("BudgetRemaining = %v, want 0.7", got[1].BudgetRemaining)
	}
}

func TestDecisionRepo_LastByPhase(t *testing.T) {
	dir := t.TempDir()
	db, err := NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := &DecisionRepo{}

	first := domain.DecisionRecord{ID: "d-1", RunID: "run-1", PhaseID: "build",
		Decision: domain.DecisionContinue, Reason: domain.ReasonRepeatedFailures, CreatedAtUnix: 100}
	second := domain.DecisionRecord{ID: "d-2", RunID: "run-1", PhaseID: "build",
		Decision: domain.DecisionReplan, Reason: domain.ReasonRepeatedFailures, CreatedAtUnix: 200}
	for _, rec := range []domain.DecisionRecord{first, second} {
		if err := repo.Record(ctx, db, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := repo.LastByPhase(ctx, db, "run-1", "build")
	if err != nil {
		t.Fatalf("LastByPhase: %v", err)
	}
	if got == nil || got.ID != "d-2" {
		t.Fatalf("LastByPhase = %+v, want d-2", got)
	}

	// A phase with no decisions reports absence without error.
	got, err = repo.LastByPhase(ctx, db, "run-1", "deploy")
	if err != nil {
		t.Fatalf("LastByPhase empty: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for phase with no decisions, got %+v", got)
	}
}
