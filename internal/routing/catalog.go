package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/foreman/internal/domain"
)

// Catalog supplies the tier entries a snapshot is built from.
type Catalog interface {
	Entries(ctx context.Context) ([]domain.RoutingEntry, error)
}

// StaticCatalog serves a fixed, pre-validated entry list, typically
// loaded from configuration.
type StaticCatalog struct {
	entries []domain.RoutingEntry
}

// NewStaticCatalog validates and wraps a fixed entry list.
func NewStaticCatalog(entries []domain.RoutingEntry) (*StaticCatalog, error) {
	if len(entries) == 0 {
		return nil, domain.ErrCatalogEmpty
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

	return &StaticCatalog{entries: entries}, nil
}

// Entries implements Catalog.
func (c *StaticCatalog) Entries(ctx context.Context) ([]domain.RoutingEntry, error) {
	out := make([]domain.RoutingEntry, len(c.entries))
	copy(out, c.entries)
	return out, nil
}

// DefaultEntries returns the built-in three-tier ladder used as a last
// resort when no catalog is configured or reachable.
func DefaultEntries() []domain.RoutingEntry {
	return []domain.RoutingEntry{
		{
			Tier:              domain.TierLow,
			ModelID:           "claude-3-5-haiku-latest",
			Provider:          "claude",
			MaxOutputTokens:   8192,
			MaxContextChars:   800000,
			CostPerUnitInput:  0.80,
			CostPerUnitOutput: 4.00,
			SafetyCompatible:  true,
		},
		{
			Tier:              domain.TierMid,
			ModelID:           "claude-sonnet-4-5",
			Provider:          "claude",
			MaxOutputTokens:   64000,
			MaxContextChars:   800000,
			CostPerUnitInput:  3.00,
			CostPerUnitOutput: 15.00,
			SafetyCompatible:  true,
		},
		{
			Tier:              domain.TierHigh,
			ModelID:           "claude-opus-4-1",
			Provider:          "claude",
			MaxOutputTokens:   32000,
			MaxContextChars:   800000,
			CostPerUnitInput:  15.00,
			CostPerUnitOutput: 75.00,
			SafetyCompatible:  true,
		},
	}
}
