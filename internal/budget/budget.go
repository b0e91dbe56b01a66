// Package budget implements the governor's budget engine: remaining-fraction
// math across the token, context, and source-of-truth dimensions, and
// per-phase token allocation adjusted by tier cost.
package budget

import (
	"fmt"
	"math"

	"github.com/anthropics/foreman/internal/domain"
)

// DefaultBaselineTokens is the per-phase allocation tuned for the
// cheapest tier.
const DefaultBaselineTokens int64 = 4000

// DefaultCostRatios maps each tier to its cost multiple of the cheapest tier.
func DefaultCostRatios() map[domain.Tier]float64 {
	return map[domain.Tier]float64{
		domain.TierLow:  1,
		domain.TierMid:  3,
		domain.TierHigh: 15,
	}
}

// DefaultMinTokens maps each tier to its allocation floor.
func DefaultMinTokens() map[domain.Tier]int64 {
	return map[domain.Tier]int64{
		domain.TierLow:  1000,
		domain.TierMid:  500,
		domain.TierHigh: 200,
	}
}

// FractionRemaining converts a (used, cap) pair into the remaining
// fraction in [0, 1]. A non-positive cap means the dimension is
// unconstrained and always returns 1.0.
func FractionRemaining(used, cap int64) float64 {
	if cap <= 0 {
		return 1.0
	}
	frac := 1.0 - float64(used)/float64(cap)
	return math.Min(1.0, math.Max(0.0, frac))
}

// Remaining computes the fraction independently for tokens, context
// characters, and source-of-truth characters and returns the minimum:
// the most constraining dimension wins. This is the single authoritative
// signal consumed by the stuck-handling policy.
func Remaining(in domain.BudgetInputs) float64 {
	frac := FractionRemaining(in.TokensUsed, in.TokenCap)
	if f := FractionRemaining(in.ContextCharsUsed, in.MaxContextChars); f < frac {
		frac = f
	}
	if f := FractionRemaining(in.SotCharsUsed, in.MaxSotChars); f < frac {
		frac = f
	}
	return frac
}

// Exhausted reports whether usage has met or passed the cap.
// A non-positive cap means no constraint, never exhausted.
func Exhausted(used, cap int64) bool {
	return cap > 0 && used >= cap
}

// PhaseExceeded reports whether a phase's token usage has met or passed
// its allocated ceiling. Same semantics as Exhausted.
func PhaseExceeded(used, cap int64) bool {
	return Exhausted(used, cap)
}

// ValidateBudgetInputs rejects negative caps or usages. Negative values
// are a caller contract violation; every remaining function is total
// over non-negative inputs.
func ValidateBudgetInputs(in domain.BudgetInputs) error {
	var problems []string
	check := func(name string, v int64) {
		if v < 0 {
			problems = append(problems, fmt.Sprintf("%s is negative (%d)", name, v))
		}
	}
	check("token_cap", in.TokenCap)
	check("tokens_used", in.TokensUsed)
	check("max_context_chars", in.MaxContextChars)
	check("context_chars_used", in.ContextCharsUsed)
	check("max_sot_chars", in.MaxSotChars)
	check("sot_chars_used", in.SotCharsUsed)

	if len(problems) > 0 {
		return domain.NewGovernorError(domain.ErrBudgetInputs.Code,
			fmt.Sprintf("%s: %v", domain.ErrBudgetInputs.Message, problems))
	}
	return nil
}

// Allocator computes per-phase token ceilings adjusted by tier cost.
type Allocator struct {
	// BaselineTokens is the per-phase allocation for the cheapest tier.
	BaselineTokens int64
	// PhaseBaselines overrides BaselineTokens for specific phase types.
	PhaseBaselines map[string]int64
	// CostRatios maps each tier to its cost multiple of the cheapest tier.
	CostRatios map[domain.Tier]float64
	// MinTokens floors the allocation so no tier is starved to zero.
	MinTokens map[domain.Tier]int64
}

// NewAllocator creates an allocator, filling unset fields with defaults.
func NewAllocator(baseline int64, phaseBaselines map[string]int64, ratios map[domain.Tier]float64, mins map[domain.Tier]int64) *Allocator {
	a := &Allocator{
		BaselineTokens: baseline,
		PhaseBaselines: phaseBaselines,
		CostRatios:     ratios,
		MinTokens:      mins,
	}
	if a.BaselineTokens <= 0 {
		a.BaselineTokens = DefaultBaselineTokens
	}
	if len(a.CostRatios) == 0 {
		a.CostRatios = DefaultCostRatios()
	}
	if len(a.MinTokens) == 0 {
		a.MinTokens = DefaultMinTokens()
	}
	return a
}

// PhaseBudget returns the token ceiling for one phase attempt on the
// given tier: the baseline (or the phase type's override) divided by the
// tier's cost ratio, floored at the tier minimum.
func (a *Allocator) PhaseBudget(phaseType string, tier domain.Tier) int64 {
	baseline := a.BaselineTokens
	if b, ok := a.PhaseBaselines[phaseType]; ok && b > 0 {
		baseline = b
	}

	ratio, ok := a.CostRatios[tier]
	if !ok || ratio <= 0 {
		ratio = 1
	}

	tokens := int64(float64(baseline) / ratio)
	if floor := a.MinTokens[tier]; tokens < floor {
		tokens = floor
	}
	return tokens
}
