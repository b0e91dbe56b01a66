// Package governor wires budget accounting, routing snapshots, the
// stuck-handling policy, the patch quality gate, and phase proofs into
// one run-scoped service.
package governor

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/anthropics/foreman/internal/budget"
	"github.com/anthropics/foreman/internal/config"
	"github.com/anthropics/foreman/internal/domain"
	"github.com/anthropics/foreman/internal/patchgate"
	"github.com/anthropics/foreman/internal/policy"
	"github.com/anthropics/foreman/internal/routing"
	"github.com/anthropics/foreman/internal/store"
)

const instrumentationName = "github.com/anthropics/foreman/internal/governor"

// Options configure one governed run.
type Options struct {
	RunID string
	// SafetyProfile overrides the configured profile when non-empty.
	SafetyProfile domain.SafetyProfile
	// Catalog supplies routing entries for snapshot builds. Nil uses
	// the configured tier list, or the built-in ladder when none is
	// configured.
	Catalog routing.Catalog
}

// phaseState pairs a phase's loop counters with its escalation
// override. The zero override means "route at the snapshot's lowest
// visible tier".
type phaseState struct {
	loop         domain.PhaseLoopState
	tierOverride domain.Tier
}

// Governor is the run-scoped execution governor.
type Governor struct {
	cfg     *config.Config
	db      *sql.DB
	logger  *zap.Logger
	runID   string
	profile domain.SafetyProfile

	runs      *store.RunRepo
	decisions *store.DecisionRepo
	usage     *store.UsageRepo
	events    *store.EventRepo
	proofs    *store.ProofRepo

	manager  *routing.Manager
	snapshot *domain.RoutingSnapshot
	policy   *policy.Policy
	gate     *patchgate.Gate
	alloc    *budget.Allocator

	tracer trace.Tracer
	meters meters

	mu     sync.Mutex
	phases map[string]*phaseState

	// seqMu serializes event-log appends. One governor owns a run's
	// log; the UNIQUE(run_id, seq_no) constraint backstops a second
	// process appending concurrently.
	seqMu sync.Mutex
}

// New opens the governor for one run: the run row is created or
// resumed, the routing snapshot is loaded or built, and the policy,
// gate, and allocator are wired from config.
func New(ctx context.Context, cfg *config.Config, db *sql.DB, logger *zap.Logger, opts Options) (*Governor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RunID == "" {
		return nil, domain.NewGovernorError(domain.ErrRunNotFound.Code, "run id must be non-empty")
	}

	profile := opts.SafetyProfile
	if profile == "" {
		parsed, err := domain.ParseSafetyProfile(cfg.SafetyProfile)
		if err != nil {
			return nil, err
		}
		profile = parsed
	}

	files, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, domain.WrapGovernorError(domain.ErrStoreInit.Code, "file store", err)
	}

	catalog := opts.Catalog
	if catalog == nil {
		if entries := cfg.RoutingEntries(); len(entries) > 0 {
			static, err := routing.NewStaticCatalog(entries)
			if err != nil {
				return nil, err
			}
			catalog = static
		}
	}

	g := &Governor{
		cfg:       cfg,
		db:        db,
		logger:    logger,
		runID:     opts.RunID,
		profile:   profile,
		runs:      &store.RunRepo{},
		decisions: &store.DecisionRepo{},
		usage:     &store.UsageRepo{},
		events:    &store.EventRepo{},
		proofs:    store.NewProofRepo(files),
		manager:   routing.NewManager(store.NewSnapshotRepo(files), catalog, cfg.Staleness(), logger),
		policy:    policy.New(policyConfig(cfg), logger),
		gate:      patchgate.New(gateConfig(cfg)),
		alloc:     budget.NewAllocator(cfg.Budget.BaselineTokens, cfg.Budget.PhaseBaselines, cfg.TierRatios(), cfg.TierMins()),
		tracer:    otel.Tracer(instrumentationName),
		meters:    newMeters(otel.Meter(instrumentationName), logger),
		phases:    make(map[string]*phaseState),
	}

	if err := g.registerRun(ctx); err != nil {
		return nil, err
	}

	snap, err := g.manager.RefreshOrLoad(ctx, g.runID, false)
	if err != nil {
		return nil, err
	}
	g.snapshot = snap

	return g, nil
}

func policyConfig(cfg *config.Config) policy.Config {
	return policy.Config{
		EscalateAfterFailures: cfg.Policy.EscalateAfterFailures,
		ReplanAfterFailures:   cfg.Policy.ReplanAfterFailures,
		FailureCeiling:        cfg.Policy.FailureCeiling,
		ReduceScopeBelow:      cfg.Policy.ReduceScopeBelow,
	}
}

func gateConfig(cfg *config.Config) patchgate.Config {
	gc := patchgate.DefaultConfig()
	gc.SymbolLossRatio = cfg.Gate.SymbolLossRatio
	gc.SimilarityMin = cfg.Gate.SimilarityMin
	return gc
}

// registerRun creates the run row, or resumes it when it already
// exists.
func (g *Governor) registerRun(ctx context.Context) error {
	rec, err := g.runs.GetByID(ctx, g.db, g.runID)
	if err == nil {
		g.logger.Info("resuming run",
			zap.String("run_id", g.runID),
			zap.String("status", string(rec.Status)))
		return nil
	}
	if err != domain.ErrRunNotFound {
		return err
	}

	now := time.Now().Unix()
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := domain.RunRecord{
		RunID:         g.runID,
		Status:        domain.RunRunning,
		SafetyProfile: g.profile,
		StateVersion:  1,
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
	if err := g.runs.CreateTx(ctx, tx, row); err != nil {
		return err
	}

	event := domain.PhaseEvent{
		RunID:         g.runID,
		SeqNo:         1,
		EventType:     "run_registered",
		PayloadJSON:   fmt.Sprintf(`{"safety_profile":%q}`, g.profile),
		CreatedAtUnix: now,
	}
	if err := g.events.AppendTx(ctx, tx, event); err != nil {
		return fmt.Errorf("append register event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run registration: %w", err)
	}

	g.logger.Info("run registered",
		zap.String("run_id", g.runID),
		zap.String("safety_profile", string(g.profile)))
	return nil
}

// appendEvent writes one entry to the run's ordered event log.
func (g *Governor) appendEvent(ctx context.Context, phaseID, eventType, payload string) error {
	g.seqMu.Lock()
	defer g.seqMu.Unlock()

	seq, err := g.events.NextSeq(ctx, g.db, g.runID)
	if err != nil {
		return err
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	event := domain.PhaseEvent{
		RunID:         g.runID,
		PhaseID:       phaseID,
		SeqNo:         seq,
		EventType:     eventType,
		PayloadJSON:   payload,
		CreatedAtUnix: time.Now().Unix(),
	}
	if err := g.events.AppendTx(ctx, tx, event); err != nil {
		return fmt.Errorf("append %s event: %w", eventType, err)
	}
	return tx.Commit()
}

// updateRunStatus moves the run row to a new status. Already being in
// that status is a no-op.
func (g *Governor) updateRunStatus(ctx context.Context, status domain.RunStatus) error {
	rec, err := g.runs.GetByID(ctx, g.db, g.runID)
	if err != nil {
		return err
	}
	if rec.Status == status {
		return nil
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec.Status = status
	rec.UpdatedAtUnix = time.Now().Unix()
	if err := g.runs.UpdateStatusTx(ctx, tx, *rec); err != nil {
		return err
	}
	return tx.Commit()
}

// FinishRun moves the run to its terminal status and closes the event
// log with a run_finished entry.
func (g *Governor) FinishRun(ctx context.Context, success bool) error {
	ctx, span := g.tracer.Start(ctx, "Governor.FinishRun")
	defer span.End()

	status := domain.RunCompleted
	if !success {
		status = domain.RunFailed
	}
	if err := g.updateRunStatus(ctx, status); err != nil {
		return err
	}
	if err := g.appendEvent(ctx, "", "run_finished",
		fmt.Sprintf(`{"success":%t}`, success)); err != nil {
		return err
	}

	g.logger.Info("run finished",
		zap.String("run_id", g.runID),
		zap.String("status", string(status)))
	return nil
}

// RunReport is the operator-facing summary of one run.
type RunReport struct {
	Run         domain.RunRecord        `json:"run"`
	SnapshotID  string                  `json:"snapshot_id"`
	TotalTokens int64                   `json:"total_tokens"`
	Decisions   []domain.DecisionRecord `json:"decisions"`
	ProofPhases []string                `json:"proof_phases"`
}

// Report assembles the run's registry row, token total, decision audit
// trail, and proof index.
func (g *Governor) Report(ctx context.Context) (*RunReport, error) {
	ctx, span := g.tracer.Start(ctx, "Governor.Report")
	defer span.End()

	rec, err := g.runs.GetByID(ctx, g.db, g.runID)
	if err != nil {
		return nil, err
	}
	total, err := g.usage.TotalTokens(ctx, g.db, g.runID)
	if err != nil {
		return nil, err
	}
	decisions, err := g.decisions.ListByRun(ctx, g.db, g.runID)
	if err != nil {
		return nil, err
	}
	proofPhases, err := g.proofs.List(ctx, g.runID)
	if err != nil {
		return nil, err
	}

	return &RunReport{
		Run:         *rec,
		SnapshotID:  g.snapshot.SnapshotID,
		TotalTokens: total,
		Decisions:   decisions,
		ProofPhases: proofPhases,
	}, nil
}
