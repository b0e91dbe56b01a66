// Package patchgate validates proposed patches before they may be applied.
//
// The gate runs an ordered list of independent validators and collects
// every violation; it never stops at the first defect because the caller
// needs the complete list to decide whether one re-attempt can plausibly
// fix everything. An empty result is the only pass.
package patchgate

import (
	"github.com/anthropics/foreman/internal/domain"
)

// Validator is one independent check over a patch.
type Validator interface {
	Name() string
	Check(patch domain.Patch) []domain.PatchViolation
}

// Config holds the tunable thresholds for the gate.
type Config struct {
	// SymbolLossRatio is the fraction of pre-existing top-level symbols
	// that may disappear from a modified file before symbol_loss fires.
	SymbolLossRatio float64
	// SimilarityMin is the minimum normalized similarity between the old
	// and new content of a modified file.
	SimilarityMin float64
	// MaxMissingSymbols bounds how many lost symbol names a violation lists.
	MaxMissingSymbols int
	// MaxDetailLen bounds the length of parser error text in a violation.
	MaxDetailLen int
}

// DefaultConfig returns the gate thresholds used when none are configured.
func DefaultConfig() Config {
	return Config{
		SymbolLossRatio:   0.3,
		SimilarityMin:     0.6,
		MaxMissingSymbols: 8,
		MaxDetailLen:      200,
	}
}

// Gate runs every validator over a patch and concatenates their findings.
type Gate struct {
	validators []Validator
}

// New builds the standard validation pipeline.
func New(cfg Config) *Gate {
	if cfg.SymbolLossRatio <= 0 {
		cfg.SymbolLossRatio = DefaultConfig().SymbolLossRatio
	}
	if cfg.SimilarityMin <= 0 {
		cfg.SimilarityMin = DefaultConfig().SimilarityMin
	}
	if cfg.MaxMissingSymbols <= 0 {
		cfg.MaxMissingSymbols = DefaultConfig().MaxMissingSymbols
	}
	if cfg.MaxDetailLen <= 0 {
		cfg.MaxDetailLen = DefaultConfig().MaxDetailLen
	}
	return &Gate{
		validators: []Validator{
			&StructureValidator{MaxDetailLen: cfg.MaxDetailLen},
			&TruncationValidator{},
			&SyntaxValidator{MaxDetailLen: cfg.MaxDetailLen},
			&ConflictValidator{},
			&SymbolValidator{LossRatio: cfg.SymbolLossRatio, MaxListed: cfg.MaxMissingSymbols},
			&SimilarityValidator{Minimum: cfg.SimilarityMin},
		},
	}
}

// NewWithValidators builds a gate from an explicit validator list, in order.
func NewWithValidators(validators ...Validator) *Gate {
	return &Gate{validators: validators}
}

// Validate runs all validators and returns every violation found.
// An empty slice means the patch is safe to apply.
func (g *Gate) Validate(patch domain.Patch) []domain.PatchViolation {
	var violations []domain.PatchViolation
	for _, v := range g.validators {
		violations = append(violations, v.Check(patch)...)
	}
	return violations
}

// truncateDetail bounds error text so violations stay loggable.
func truncateDetail(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
