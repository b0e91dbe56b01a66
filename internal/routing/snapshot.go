// Package routing maintains the per-run agent tier catalog: an immutable
// snapshot of the available tiers with safety-filtered lookup, single-step
// escalation, and staleness tracking. Snapshotting per run keeps escalation
// deterministic and replayable across process restarts.
package routing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anthropics/foreman/internal/domain"
)

// SchemaVersion is the snapshot record version written to storage.
const SchemaVersion = 1

// DefaultStaleness is how long a snapshot without an explicit expiry
// stays fresh.
const DefaultStaleness = 24 * time.Hour

// ValidateEntry checks one routing entry and returns all problems found.
func ValidateEntry(e domain.RoutingEntry) []string {
	var problems []string

	if !e.Tier.Valid() {
		problems = append(problems, fmt.Sprintf("tier %q is not valid; must be low, mid, or high", e.Tier))
	}
	if e.ModelID == "" {
		problems = append(problems, "model_id must be non-empty")
	}
	if e.Provider == "" {
		problems = append(problems, "provider must be non-empty")
	}
	if e.MaxOutputTokens <= 0 {
		problems = append(problems, fmt.Sprintf("max_output_tokens %d must be positive", e.MaxOutputTokens))
	}
	if e.MaxContextChars <= 0 {
		problems = append(problems, fmt.Sprintf("max_context_chars %d must be positive", e.MaxContextChars))
	}
	if e.CostPerUnitInput < 0 {
		problems = append(problems, "cost_per_unit_input must be non-negative")
	}
	if e.CostPerUnitOutput < 0 {
		problems = append(problems, "cost_per_unit_output must be non-negative")
	}

	return problems
}

// NewSnapshot builds a validated snapshot for a run. Entries must carry
// unique known tiers and are stored sorted by ascending tier rank, which
// is the cost order. A zero ttl means no explicit expiry; freshness then
// falls to the staleness window.
func NewSnapshot(runID string, entries []domain.RoutingEntry, now time.Time, ttl time.Duration) (*domain.RoutingSnapshot, error) {
	if runID == "" {
		return nil, domain.NewGovernorError(domain.ErrSnapshotInvalid.Code, "run id must be non-empty")
	}
	if len(entries) == 0 {
		return nil, domain.NewGovernorError(domain.ErrSnapshotInvalid.Code, "snapshot requires at least one entry")
	}

	var problems []string
	seen := make(map[domain.Tier]bool, len(entries))
	for i, e := range entries {
		for _, p := range ValidateEntry(e) {
			problems = append(problems, fmt.Sprintf("entry[%d]: %s", i, p))
		}
		if seen[e.Tier] {
			problems = append(problems, fmt.Sprintf("entry[%d]: tier %q appears more than once", i, e.Tier))
		}
		seen[e.Tier] = true
	}
	if len(problems) > 0 {
		return nil, domain.NewGovernorError(domain.ErrSnapshotInvalid.Code, strings.Join(problems, "; "))
	}

	sorted := make([]domain.RoutingEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Tier.Rank() < sorted[j].Tier.Rank()
	})

	snap := &domain.RoutingSnapshot{
		SnapshotID:    uuid.New().String(),
		RunID:         runID,
		CreatedAtUnix: now.Unix(),
		Entries:       sorted,
		SchemaVersion: SchemaVersion,
	}
	if ttl > 0 {
		snap.ExpiresAtUnix = now.Add(ttl).Unix()
	}
	return snap, nil
}

// ParseEntries decodes caller-supplied tier data with a strict schema:
// unknown or extra fields are rejected to prevent silent misconfiguration.
func ParseEntries(data []byte) ([]domain.RoutingEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var entries []domain.RoutingEntry
	if err := dec.Decode(&entries); err != nil {
		return nil, domain.WrapGovernorError(domain.ErrSnapshotInvalid.Code, "parse routing entries", err)
	}

	var problems []string
	for i, e := range entries {
		for _, p := range ValidateEntry(e) {
			problems = append(problems, fmt.Sprintf("entry[%d]: %s", i, p))
		}
	}
	if len(problems) > 0 {
		return nil, domain.NewGovernorError(domain.ErrSnapshotInvalid.Code, strings.Join(problems, "; "))
	}
	return entries, nil
}

// EntryForTier returns the snapshot's entry for a tier. Under the strict
// safety profile, entries that are not safety compatible are invisible.
func EntryForTier(s *domain.RoutingSnapshot, tier domain.Tier, profile domain.SafetyProfile) (domain.RoutingEntry, bool) {
	for _, e := range s.Entries {
		if e.Tier != tier {
			continue
		}
		if profile == domain.SafetyStrict && !e.SafetyCompatible {
			return domain.RoutingEntry{}, false
		}
		return e, true
	}
	return domain.RoutingEntry{}, false
}

// EscalateFrom returns the entry one tier above current. It returns
// false at the top tier, when the snapshot lacks the next tier, or when
// the safety profile hides it. It never skips a tier and never
// fabricates one.
func EscalateFrom(s *domain.RoutingSnapshot, current domain.Tier, profile domain.SafetyProfile) (domain.RoutingEntry, bool) {
	next, ok := domain.NextTier(current)
	if !ok {
		return domain.RoutingEntry{}, false
	}
	return EntryForTier(s, next, profile)
}

// LowestTier returns the cheapest visible entry, the default assignment
// for new phases.
func LowestTier(s *domain.RoutingSnapshot, profile domain.SafetyProfile) (domain.RoutingEntry, bool) {
	for _, e := range s.Entries {
		if profile == domain.SafetyStrict && !e.SafetyCompatible {
			continue
		}
		return e, true
	}
	return domain.RoutingEntry{}, false
}

// IsFresh reports whether the snapshot is usable at the given time:
// before its explicit expiry when one is set, otherwise within the
// staleness window of its creation. A non-positive staleness falls back
// to DefaultStaleness.
func IsFresh(s *domain.RoutingSnapshot, now time.Time, staleness time.Duration) bool {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	if s.ExpiresAtUnix > 0 {
		return now.Unix() < s.ExpiresAtUnix
	}
	return now.Sub(time.Unix(s.CreatedAtUnix, 0)) < staleness
}
