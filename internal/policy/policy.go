// Package policy decides what a stuck phase does next.
//
// The decision table is ordered and first-match-wins, so the outcome for
// any input is deterministic. The policy mutates only the phase's own
// loop state (escalation and replan bookkeeping); everything else it
// returns as data for the caller to act on.
package policy

import (
	"strings"

	"go.uber.org/zap"

	"github.com/anthropics/foreman/internal/domain"
)

// Escalator resolves the next-higher tier entry for a phase's current
// tier, honoring the run's safety profile. Absent means there is nowhere
// to escalate to.
type Escalator interface {
	EscalateFrom(current domain.Tier, profile domain.SafetyProfile) (domain.RoutingEntry, bool)
}

// Config holds the policy thresholds.
type Config struct {
	// EscalateAfterFailures is the consecutive-failure count at which a
	// phase may escalate tiers, once.
	EscalateAfterFailures int
	// ReplanAfterFailures is the consecutive-failure count at which a
	// phase may replan, once.
	ReplanAfterFailures int
	// FailureCeiling is the consecutive-failure count above which the
	// phase is handed to a human. Strictly above: a count equal to the
	// ceiling still continues.
	FailureCeiling int
	// ReduceScopeBelow is the budget fraction under which a
	// budget-exceeded phase shrinks its task list instead of retrying.
	ReduceScopeBelow float64
}

// DefaultConfig returns the thresholds used when none are configured.
func DefaultConfig() Config {
	return Config{
		EscalateAfterFailures: 2,
		ReplanAfterFailures:   3,
		FailureCeiling:        4,
		ReduceScopeBelow:      0.2,
	}
}

// Policy evaluates the stuck-handling transition table.
type Policy struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a policy. Zero thresholds fall back to defaults; a nil
// logger is replaced with a no-op logger.
func New(cfg Config, logger *zap.Logger) *Policy {
	def := DefaultConfig()
	if cfg.EscalateAfterFailures <= 0 {
		cfg.EscalateAfterFailures = def.EscalateAfterFailures
	}
	if cfg.ReplanAfterFailures <= 0 {
		cfg.ReplanAfterFailures = def.ReplanAfterFailures
	}
	if cfg.FailureCeiling <= 0 {
		cfg.FailureCeiling = def.FailureCeiling
	}
	if cfg.ReduceScopeBelow <= 0 {
		cfg.ReduceScopeBelow = def.ReduceScopeBelow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{cfg: cfg, logger: logger}
}

// Request carries everything one decision needs.
type Request struct {
	State           *domain.PhaseLoopState
	Reason          domain.StuckReason
	BudgetRemaining float64
	CurrentTier     domain.Tier
	Profile         domain.SafetyProfile
	Escalator       Escalator
}

// Decision is the policy's verdict plus the context a caller needs to
// dispatch it and an auditor needs to understand it.
type Decision struct {
	Decision        domain.StuckDecision
	Reason          domain.StuckReason
	BudgetRemaining float64
	// Escalation is the target tier entry when Decision is escalate_model.
	Escalation *domain.RoutingEntry
	// Degraded marks an escalation that had nowhere to go and became a
	// plain continue. The escalation attempt is still consumed so the
	// phase cannot retry it forever.
	Degraded bool
	Note     string
}

// Decide evaluates the transition table, first match wins.
func (p *Policy) Decide(req Request) (Decision, error) {
	if req.State == nil {
		return Decision{}, domain.NewGovernorError(domain.ErrPhaseUnknown.Code, "phase loop state is required")
	}
	if !req.Reason.Valid() {
		return Decision{}, domain.NewGovernorError(domain.ErrReasonUnknown.Code, "unknown stuck reason "+string(req.Reason))
	}

	decision := p.evaluate(req)
	decision.Reason = req.Reason
	decision.BudgetRemaining = req.BudgetRemaining

	p.logger.Info("stuck decision",
		zap.String("phase_id", req.State.PhaseID),
		zap.String("reason", string(req.Reason)),
		zap.String("decision", string(decision.Decision)),
		zap.Float64("budget_remaining", req.BudgetRemaining),
		zap.Int("consecutive_failures", req.State.ConsecutiveFailures),
		zap.Int("escalations_used", req.State.EscalationsUsed),
		zap.Bool("degraded", decision.Degraded))

	return decision, nil
}

func (p *Policy) evaluate(req Request) Decision {
	state := req.State

	if req.BudgetRemaining <= 0 {
		return Decision{Decision: domain.DecisionStop, Note: "budget exhausted"}
	}

	if req.Reason == domain.ReasonBudgetExceeded && req.BudgetRemaining < p.cfg.ReduceScopeBelow {
		return Decision{Decision: domain.DecisionReduceScope, Note: "budget low, shrinking the unit of work"}
	}

	if state.EscalationsUsed == 0 &&
		req.Reason == domain.ReasonRepeatedFailures &&
		state.ConsecutiveFailures >= p.cfg.EscalateAfterFailures {
		// The attempt is consumed before resolution so a phase whose
		// ladder has no next tier cannot re-enter this rule forever.
		state.EscalationsUsed++

		if req.Escalator != nil {
			if entry, ok := req.Escalator.EscalateFrom(req.CurrentTier, req.Profile); ok {
				return Decision{Decision: domain.DecisionEscalateModel, Escalation: &entry}
			}
		}
		p.logger.Warn("escalation unavailable, degrading to continue",
			zap.String("phase_id", state.PhaseID),
			zap.String("current_tier", string(req.CurrentTier)),
			zap.String("safety_profile", string(req.Profile)))
		return Decision{
			Decision: domain.DecisionContinue,
			Degraded: true,
			Note:     "no higher tier available from " + string(req.CurrentTier),
		}
	}

	if !state.ReplanAttempted && state.ConsecutiveFailures >= p.cfg.ReplanAfterFailures {
		state.ReplanAttempted = true
		return Decision{Decision: domain.DecisionReplan, Note: "replanning the phase"}
	}

	if state.ConsecutiveFailures > p.cfg.FailureCeiling {
		return Decision{Decision: domain.DecisionNeedsHuman, Note: "failure ceiling crossed"}
	}

	return Decision{Decision: domain.DecisionContinue}
}

// ClassifyReason maps a free-text failure status onto a reason code.
// Upstreams that know the exact reason should pass the enum directly;
// this shim exists only for callers stuck with prose status strings.
func ClassifyReason(status string) (domain.StuckReason, bool) {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "budget") || strings.Contains(s, "token limit"):
		return domain.ReasonBudgetExceeded, true
	case strings.Contains(s, "truncat") || strings.Contains(s, "cut off") || strings.Contains(s, "incomplete output"):
		return domain.ReasonOutputTruncation, true
	case strings.Contains(s, "fail") || strings.Contains(s, "error"):
		return domain.ReasonRepeatedFailures, true
	}
	return "", false
}
