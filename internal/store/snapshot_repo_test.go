package store

import (
	"context"
	"errors"
	"testing"

	"github.com/anthropics/foreman/internal/domain"
)

func testSnapshot(runID string) *domain.RoutingSnapshot {
	return &domain.RoutingSnapshot{
		SnapshotID:    "snap-1",
		RunID:         runID,
		CreatedAtUnix: 1000,
		ExpiresAtUnix: 1000 + 24*3600,
		Entries: []domain.RoutingEntry{
			{Tier: domain.TierLow, ModelID: "small-1", Provider: "acme",
				MaxOutputTokens: 4096, MaxContextChars: 200000, SafetyCompatible: true},
			{Tier: domain.TierMid, ModelID: "medium-1", Provider: "acme",
				MaxOutputTokens: 8192, MaxContextChars: 400000, SafetyCompatible: true},
		},
		SchemaVersion: 1,
	}
}

func TestSnapshotRepo_SaveAndLoad(t *testing.T) {
	files, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	repo := NewSnapshotRepo(files)
	ctx := context.Background()

	snap := testSnapshot("run-1")
	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, ok, err := repo.LoadSnapshot(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !ok {
		t.Fatal("expected snapshot to exist")
	}
	if got.SnapshotID != "snap-1" {
		t.Errorf("SnapshotID = %q, want snap-1", got.SnapshotID)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.Entries))
	}
	if got.Entries[1].ModelID != "medium-1" {
		t.Errorf("Entries[1].ModelID = %q, want medium-1", got.Entries[1].ModelID)
	}
}

func TestSnapshotRepo_SaveReplaces(t *testing.T) {
	files, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	repo := NewSnapshotRepo(files)
	ctx := context.Background()

	if err := repo.SaveSnapshot(ctx, testSnapshot("run-1")); err != nil {
		t.Fatalf("first SaveSnapshot: %v", err)
	}

	replacement := testSnapshot("run-1")
	replacement.SnapshotID = "snap-2"
	replacement.Entries = replacement.Entries[:1]
	if err := repo.SaveSnapshot(ctx, replacement); err != nil {
		t.Fatalf("second SaveSnapshot: %v", err)
	}

	got, ok, err := repo.LoadSnapshot(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("LoadSnapshot: ok=%v err=%v", ok, err)
	}
	if got.SnapshotID != "snap-2" {
		t.Errorf("SnapshotID = %q, want snap-2", got.SnapshotID)
	}
	if len(got.Entries) != 1 {
		t.Errorf("expected 1 entry after replace, got %d", len(got.Entries))
	}
}

func TestSnapshotRepo_LoadMissing(t *testing.T) {
	files, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	repo := NewSnapshotRepo(files)

	got, ok, err := repo.LoadSnapshot(context.Background(), "run-none")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if ok || got != nil {
		t.Errorf("expected absent snapshot, got ok=%v snap=%+v", ok, got)
	}
}

func TestSnapshotRepo_RejectsUnsafeRunID(t *testing.T) {
	files, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	repo := NewSnapshotRepo(files)

	snap := testSnapshot("../escape")
	err = repo.SaveSnapshot(context.Background(), snap)
	if err == nil {
		t.Fatal("expected error for path-traversal run id")
	}
	var gerr *domain.GovernorError
	if !errors.As(err, &gerr) || gerr.Code != domain.ErrBadRecordID.Code {
		t.Errorf("expected ErrBadRecordID code, got %v", err)
	}
}
