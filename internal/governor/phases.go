package governor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/anthropics/foreman/internal/budget"
	"github.com/anthropics/foreman/internal/domain"
	"github.com/anthropics/foreman/internal/policy"
	"github.com/anthropics/foreman/internal/proof"
	"github.com/anthropics/foreman/internal/routing"
)

// snapshotEscalator adapts the run's routing snapshot to the policy's
// Escalator interface.
type snapshotEscalator struct {
	snap *domain.RoutingSnapshot
}

func (e snapshotEscalator) EscalateFrom(current domain.Tier, profile domain.SafetyProfile) (domain.RoutingEntry, bool) {
	return routing.EscalateFrom(e.snap, current, profile)
}

// BeginPhase registers the phase's loop state and opens it in the event
// log. Beginning an already-active phase is an error.
func (g *Governor) BeginPhase(ctx context.Context, phaseID string) error {
	ctx, span := g.tracer.Start(ctx, "Governor.BeginPhase")
	defer span.End()

	if phaseID == "" {
		return domain.NewGovernorError(domain.ErrPhaseUnknown.Code, "phase id must be non-empty")
	}

	g.mu.Lock()
	if _, exists := g.phases[phaseID]; exists {
		g.mu.Unlock()
		return domain.NewGovernorError(domain.ErrPhaseUnknown.Code,
			fmt.Sprintf("phase %s is already active", phaseID))
	}
	g.phases[phaseID] = &phaseState{loop: domain.PhaseLoopState{PhaseID: phaseID}}
	g.mu.Unlock()

	if err := g.appendEvent(ctx, phaseID, "phase_started",
		fmt.Sprintf(`{"phase_id":%q}`, phaseID)); err != nil {
		return err
	}

	g.logger.Info("phase started",
		zap.String("run_id", g.runID),
		zap.String("phase_id", phaseID))
	return nil
}

// ActiveTier returns the tier the phase routes at: its escalation
// override if one was granted, otherwise the snapshot's lowest visible
// tier.
func (g *Governor) ActiveTier(phaseID string) domain.Tier {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activeTierLocked(g.phases[phaseID])
}

func (g *Governor) activeTierLocked(ps *phaseState) domain.Tier {
	if ps != nil && ps.tierOverride != "" {
		return ps.tierOverride
	}
	if entry, ok := routing.LowestTier(g.snapshot, g.profile); ok {
		return entry.Tier
	}
	return domain.TierLow
}

// PhaseTokenBudget returns the phase's output-token allocation at its
// active tier.
func (g *Governor) PhaseTokenBudget(phaseID, phaseType string) int64 {
	return g.alloc.PhaseBudget(phaseType, g.ActiveTier(phaseID))
}

// ReportAttempt records one agent attempt: the loop counters move, the
// usage ledger gets a delta, and the event log gets an attempt entry.
// When the provider did not report a prompt/completion split, the delta
// is flagged rather than guessed.
func (g *Governor) ReportAttempt(ctx context.Context, phaseID string, res domain.AgentResult) error {
	ctx, span := g.tracer.Start(ctx, "Governor.ReportAttempt")
	defer span.End()

	g.mu.Lock()
	ps, ok := g.phases[phaseID]
	if !ok {
		g.mu.Unlock()
		return domain.NewGovernorError(domain.ErrPhaseUnknown.Code,
			fmt.Sprintf("phase %s has not been started", phaseID))
	}
	ps.loop.IterationsUsed++
	if res.Success {
		ps.loop.ConsecutiveFailures = 0
	} else {
		ps.loop.ConsecutiveFailures++
	}
	tier := g.activeTierLocked(ps)
	g.mu.Unlock()

	delta := domain.UsageDelta{
		RunID:         g.runID,
		PhaseID:       phaseID,
		Tier:          tier,
		ModelUsed:     res.ModelUsed,
		TokensUsed:    res.TokensUsed,
		SplitReported: res.SplitReported,
		CreatedAtUnix: time.Now().Unix(),
	}
	if res.SplitReported {
		delta.PromptTokens = res.PromptTokens
		delta.CompletionTokens = res.CompletionTokens
	}
	if err := g.usage.Record(ctx, g.db, delta); err != nil {
		return err
	}

	if err := g.appendEvent(ctx, phaseID, "attempt",
		fmt.Sprintf(`{"phase_id":%q,"success":%t,"tokens_used":%d,"model_used":%q}`,
			phaseID, res.Success, res.TokensUsed, res.ModelUsed)); err != nil {
		return err
	}

	g.logger.Debug("attempt reported",
		zap.String("run_id", g.runID),
		zap.String("phase_id", phaseID),
		zap.Bool("success", res.Success),
		zap.Int64("tokens_used", res.TokensUsed),
		zap.Bool("split_reported", res.SplitReported))
	return nil
}

// HandleStuck runs the stuck-handling policy for a phase and dispatches
// the verdict: escalations install the phase's tier override, every
// decision is persisted to the audit trail and event log, and terminal
// decisions move the run row.
func (g *Governor) HandleStuck(ctx context.Context, phaseID string, reason domain.StuckReason, inputs domain.BudgetInputs) (policy.Decision, error) {
	ctx, span := g.tracer.Start(ctx, "Governor.HandleStuck")
	defer span.End()

	if err := budget.ValidateBudgetInputs(inputs); err != nil {
		return policy.Decision{}, err
	}
	remaining := budget.Remaining(inputs)

	g.mu.Lock()
	ps, ok := g.phases[phaseID]
	if !ok {
		g.mu.Unlock()
		return policy.Decision{}, domain.NewGovernorError(domain.ErrPhaseUnknown.Code,
			fmt.Sprintf("phase %s has not been started", phaseID))
	}

	decision, err := g.policy.Decide(policy.Request{
		State:           &ps.loop,
		Reason:          reason,
		BudgetRemaining: remaining,
		CurrentTier:     g.activeTierLocked(ps),
		Profile:         g.profile,
		Escalator:       snapshotEscalator{snap: g.snapshot},
	})
	if err != nil {
		g.mu.Unlock()
		return policy.Decision{}, err
	}
	if decision.Decision == domain.DecisionEscalateModel && decision.Escalation != nil {
		ps.tierOverride = decision.Escalation.Tier
	}
	failures := ps.loop.ConsecutiveFailures
	escalations := ps.loop.EscalationsUsed
	g.mu.Unlock()

	record := domain.DecisionRecord{
		ID:                  uuid.New().String(),
		RunID:               g.runID,
		PhaseID:             phaseID,
		Decision:            decision.Decision,
		Reason:              decision.Reason,
		BudgetRemaining:     decision.BudgetRemaining,
		ConsecutiveFailures: failures,
		EscalationsUsed:     escalations,
		Note:                decision.Note,
		CreatedAtUnix:       time.Now().Unix(),
	}
	if err := g.decisions.Record(ctx, g.db, record); err != nil {
		return policy.Decision{}, err
	}

	if err := g.appendEvent(ctx, phaseID, "decision",
		fmt.Sprintf(`{"phase_id":%q,"decision":%q,"reason":%q,"budget_remaining":%.4f}`,
			phaseID, decision.Decision, decision.Reason, decision.BudgetRemaining)); err != nil {
		return policy.Decision{}, err
	}

	if g.meters.decisions != nil {
		g.meters.decisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("decision", string(decision.Decision)),
			attribute.String("reason", string(decision.Reason))))
	}
	if g.meters.escalations != nil && (decision.Decision == domain.DecisionEscalateModel || decision.Degraded) {
		g.meters.escalations.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("granted", decision.Decision == domain.DecisionEscalateModel)))
	}

	switch decision.Decision {
	case domain.DecisionNeedsHuman:
		if err := g.updateRunStatus(ctx, domain.RunNeedsHuman); err != nil {
			return policy.Decision{}, err
		}
	case domain.DecisionStop:
		if err := g.updateRunStatus(ctx, domain.RunStopped); err != nil {
			return policy.Decision{}, err
		}
	}

	return decision, nil
}

// ProposeScopeReduction forwards to the policy's pure proposal. The
// original task list is preserved in the result so callers can revert.
func (g *Governor) ProposeScopeReduction(phaseID string, tasks []string) domain.ScopeReduction {
	return policy.ProposeScopeReduction(phaseID, tasks)
}

// CheckPatch runs the quality gate over a resolved patch. The verdict
// is advisory to the event log but binding to callers: any violation
// means the patch must not be applied.
func (g *Governor) CheckPatch(ctx context.Context, phaseID string, patch domain.Patch) []domain.PatchViolation {
	ctx, span := g.tracer.Start(ctx, "Governor.CheckPatch")
	defer span.End()

	violations := g.gate.Validate(patch)

	if g.meters.violations != nil {
		for _, v := range violations {
			g.meters.violations.Add(ctx, 1, metric.WithAttributes(
				attribute.String("kind", string(v.Kind))))
		}
	}

	if err := g.appendEvent(ctx, phaseID, "patch_checked",
		fmt.Sprintf(`{"phase_id":%q,"violations":%d}`, phaseID, len(violations))); err != nil {
		g.logger.Warn("append patch_checked event", zap.Error(err))
	}

	g.logger.Info("patch checked",
		zap.String("run_id", g.runID),
		zap.String("phase_id", phaseID),
		zap.Int("violations", len(violations)))
	return violations
}

// Outcome reports how a phase ended.
type Outcome struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	Changes      domain.ChangeSummary
	Verification domain.VerificationSummary
	Success      bool
	ErrorSummary string
}

// CompletePhase closes a phase: its proof is built, validated, and
// written, and the phase leaves the loop-state map. A proof that fails
// validation is an error; a proof that fails to persist is logged and
// swallowed so a full disk cannot wedge the run.
func (g *Governor) CompletePhase(ctx context.Context, phaseID string, outcome Outcome) (*domain.PhaseProof, error) {
	ctx, span := g.tracer.Start(ctx, "Governor.CompletePhase")
	defer span.End()

	g.mu.Lock()
	_, ok := g.phases[phaseID]
	g.mu.Unlock()
	if !ok {
		return nil, domain.NewGovernorError(domain.ErrPhaseUnknown.Code,
			fmt.Sprintf("phase %s has not been started", phaseID))
	}

	p, err := proof.New(proof.Input{
		RunID:        g.runID,
		PhaseID:      phaseID,
		StartedAt:    outcome.StartedAt,
		CompletedAt:  outcome.CompletedAt,
		Changes:      outcome.Changes,
		Verification: outcome.Verification,
		Success:      outcome.Success,
		ErrorSummary: outcome.ErrorSummary,
	})
	if err != nil {
		return nil, err
	}

	if err := g.proofs.Save(ctx, p); err != nil {
		g.logger.Warn("phase proof write failed",
			zap.String("run_id", g.runID),
			zap.String("phase_id", phaseID),
			zap.Error(err))
	} else if g.meters.proofs != nil {
		g.meters.proofs.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("success", outcome.Success)))
	}

	eventType := "phase_completed"
	if !outcome.Success {
		eventType = "phase_failed"
	}
	if err := g.appendEvent(ctx, phaseID, eventType,
		fmt.Sprintf(`{"phase_id":%q,"proof_id":%q,"success":%t}`,
			phaseID, p.ProofID, outcome.Success)); err != nil {
		return nil, err
	}

	g.mu.Lock()
	delete(g.phases, phaseID)
	g.mu.Unlock()

	g.logger.Info("phase completed",
		zap.String("run_id", g.runID),
		zap.String("phase_id", phaseID),
		zap.Bool("success", outcome.Success),
		zap.String("proof_id", p.ProofID))
	return p, nil
}
