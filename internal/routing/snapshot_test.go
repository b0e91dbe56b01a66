package routing

import (
	"strings"
	"testing"
	"time"

	"github.com/anthropics/foreman/internal/domain"
)

func testEntries() []domain.RoutingEntry {
	return []domain.RoutingEntry{
		{
			Tier:             domain.TierHigh,
			ModelID:          "model-h",
			Provider:         "claude",
			MaxOutputTokens:  32000,
			MaxContextChars:  800000,
			SafetyCompatible: false,
		},
		{
			Tier:             domain.TierLow,
			ModelID:          "model-l",
			Provider:         "claude",
			MaxOutputTokens:  8192,
			MaxContextChars:  400000,
			SafetyCompatible: true,
		},
		{
			Tier:             domain.TierMid,
			ModelID:          "model-m",
			Provider:         "claude",
			MaxOutputTokens:  16000,
			MaxContextChars:  600000,
			SafetyCompatible: true,
		},
	}
}

func newTestSnapshot(t *testing.T) *domain.RoutingSnapshot {
	t.Helper()
	snap, err := NewSnapshot("run-1", testEntries(), time.Now(), 0)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

func TestNewSnapshot_SortsByTierRank(t *testing.T) {
	snap := newTestSnapshot(t)

	want := []domain.Tier{domain.TierLow, domain.TierMid, domain.TierHigh}
	if len(snap.Entries) != len(want) {
		t.Fatalf("len(Entries) = %d, want %d", len(snap.Entries), len(want))
	}
	for i, tier := range want {
		if snap.Entries[i].Tier != tier {
			t.Errorf("Entries[%d].Tier = %q, want %q", i, snap.Entries[i].Tier, tier)
		}
	}
	if snap.SnapshotID == "" {
		t.Error("SnapshotID should be assigned")
	}
	if snap.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", snap.SchemaVersion, SchemaVersion)
	}
}

func TestNewSnapshot_RejectsDuplicateTier(t *testing.T) {
	entries := testEntries()
	entries[0].Tier = domain.TierLow // duplicates the low entry

	_, err := NewSnapshot("run-1", entries, time.Now(), 0)
	if err == nil {
		t.Fatal("expected error for duplicate tier, got nil")
	}
	if !strings.Contains(err.Error(), "more than once") {
		t.Errorf("error should name the duplicate, got %q", err.Error())
	}
}

func TestNewSnapshot_CollectsAllProblems(t *testing.T) {
	entries := []domain.RoutingEntry{
		{Tier: "turbo", ModelID: "", Provider: "claude", MaxOutputTokens: 100, MaxContextChars: 100},
	}

	_, err := NewSnapshot("run-1", entries, time.Now(), 0)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	msg := err.Error()
	if !strings.Contains(msg, "tier") || !strings.Contains(msg, "model_id") {
		t.Errorf("error should list every problem, got %q", msg)
	}
}

func TestParseEntries_RejectsUnknownFields(t *testing.T) {
	data := []byte(`[{
		"tier": "low",
		"model_id": "model-l",
		"provider": "claude",
		"max_output_tokens": 8192,
		"max_context_chars": 400000,
		"cost_per_unit_input": 1,
		"cost_per_unit_output": 5,
		"safety_compatible": true,
		"turbo_mode": true
	}]`)

	_, err := ParseEntries(data)
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
	if !strings.Contains(err.Error(), "turbo_mode") {
		t.Errorf("error should name the unknown field, got %q", err.Error())
	}
}

func TestParseEntries_Valid(t *testing.T) {
	data := []byte(`[{
		"tier": "mid",
		"model_id": "model-m",
		"provider": "claude",
		"max_output_tokens": 16000,
		"max_context_chars": 600000,
		"cost_per_unit_input": 3,
		"cost_per_unit_output": 15,
		"safety_compatible": true
	}]`)

	entries, err := ParseEntries(data)
	if err != nil {
		t.Fatalf("ParseEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Tier != domain.TierMid {
		t.Errorf("entries = %+v, want one mid entry", entries)
	}
}

func TestEntryForTier_SafetyProfiles(t *testing.T) {
	snap := newTestSnapshot(t)

	// Normal profile sees everything, including the unsafe high tier.
	if _, ok := EntryForTier(snap, domain.TierHigh, domain.SafetyNormal); !ok {
		t.Error("normal profile should see the high tier")
	}

	// Strict profile hides entries that are not safety compatible.
	if _, ok := EntryForTier(snap, domain.TierHigh, domain.SafetyStrict); ok {
		t.Error("strict profile should hide the unsafe high tier")
	}
	if _, ok := EntryForTier(snap, domain.TierMid, domain.SafetyStrict); !ok {
		t.Error("strict profile should see the safe mid tier")
	}
}

func TestEscalateFrom(t *testing.T) {
	snap := newTestSnapshot(t)

	tests := []struct {
		name    string
		current domain.Tier
		profile domain.SafetyProfile
		want    domain.Tier
		wantOK  bool
	}{
		{"low to mid", domain.TierLow, domain.SafetyNormal, domain.TierMid, true},
		{"mid to high", domain.TierMid, domain.SafetyNormal, domain.TierHigh, true},
		{"top tier absent", domain.TierHigh, domain.SafetyNormal, "", false},
		{"strict profile hides unsafe next", domain.TierMid, domain.SafetyStrict, "", false},
		{"unknown tier absent", domain.Tier("turbo"), domain.SafetyNormal, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := EscalateFrom(snap, tt.current, tt.profile)
			if ok != tt.wantOK {
				t.Fatalf("EscalateFrom(%s) ok = %v, want %v", tt.current, ok, tt.wantOK)
			}
			if ok && entry.Tier != tt.want {
				t.Errorf("EscalateFrom(%s) = %s, want %s", tt.current, entry.Tier, tt.want)
			}
		})
	}
}

func TestEscalateFrom_TopTierRepeatable(t *testing.T) {
	snap := newTestSnapshot(t)

	for i := 0; i < 5; i++ {
		if _, ok := EscalateFrom(snap, domain.TierHigh, domain.SafetyNormal); ok {
			t.Fatalf("call %d: escalation from the top tier must stay absent", i)
		}
	}
}

func TestEscalateFrom_MissingNextTierNotSkipped(t *testing.T) {
	entries := []domain.RoutingEntry{
		{Tier: domain.TierLow, ModelID: "model-l", Provider: "claude", MaxOutputTokens: 8192, MaxContextChars: 400000, SafetyCompatible: true},
		{Tier: domain.TierHigh, ModelID: "model-h", Provider: "claude", MaxOutputTokens: 32000, MaxContextChars: 800000, SafetyCompatible: true},
	}
	snap, err := NewSnapshot("run-1", entries, time.Now(), 0)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}

	// The ladder lacks mid; escalation from low must not jump to high.
	if _, ok := EscalateFrom(snap, domain.TierLow, domain.SafetyNormal); ok {
		t.Error("escalation must not skip a missing tier")
	}
}

func TestLowestTier(t *testing.T) {
	snap := newTestSnapshot(t)

	entry, ok := LowestTier(snap, domain.SafetyNormal)
	if !ok || entry.Tier != domain.TierLow {
		t.Errorf("LowestTier = (%v, %v), want low entry", entry.Tier, ok)
	}
}

func TestIsFresh(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		snap domain.RoutingSnapshot
		want bool
	}{
		{
			"recent without expiry",
			domain.RoutingSnapshot{CreatedAtUnix: now.Add(-1 * time.Hour).Unix()},
			true,
		},
		{
			"25h old without expiry",
			domain.RoutingSnapshot{CreatedAtUnix: now.Add(-25 * time.Hour).Unix()},
			false,
		},
		{
			"explicit expiry in the future",
			domain.RoutingSnapshot{
				CreatedAtUnix: now.Add(-48 * time.Hour).Unix(),
				ExpiresAtUnix: now.Add(1 * time.Hour).Unix(),
			},
			true,
		},
		{
			"explicit expiry passed",
			domain.RoutingSnapshot{
				CreatedAtUnix: now.Add(-1 * time.Minute).Unix(),
				ExpiresAtUnix: now.Add(-1 * time.Second).Unix(),
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFresh(&tt.snap, now, 0); got != tt.want {
				t.Errorf("IsFresh = %v, want %v", got, tt.want)
			}
		})
	}
}
