package routing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anthropics/foreman/internal/domain"
)

// SnapshotStore persists one snapshot per run.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *domain.RoutingSnapshot) error
	LoadSnapshot(ctx context.Context, runID string) (*domain.RoutingSnapshot, bool, error)
}

// Manager owns the snapshot lifecycle for runs. Refreshes are serialized
// under a mutex so two phases cannot race to write divergent snapshots
// for the same run.
type Manager struct {
	store     SnapshotStore
	catalog   Catalog
	staleness time.Duration
	logger    *zap.Logger

	mu sync.Mutex
}

// NewManager creates a snapshot manager. A nil logger is replaced with a
// no-op logger; a non-positive staleness falls back to DefaultStaleness.
func NewManager(store SnapshotStore, catalog Catalog, staleness time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Manager{
		store:     store,
		catalog:   catalog,
		staleness: staleness,
		logger:    logger,
	}
}

// RefreshOrLoad returns the run's snapshot: the persisted one when it is
// fresh and not force-refreshed, otherwise a new one built from the
// catalog and persisted before returning. Persist failures are fatal
// because escalation correctness depends on the snapshot being durable.
func (m *Manager) RefreshOrLoad(ctx context.Context, runID string, force bool) (*domain.RoutingSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	if !force {
		snap, ok, err := m.store.LoadSnapshot(ctx, runID)
		switch {
		case err != nil:
			// Only snapshot writes are fatal. A snapshot that cannot
			// be read is treated like an absent one and rebuilt.
			m.logger.Warn("routing snapshot unreadable, rebuilding",
				zap.String("run_id", runID),
				zap.Error(err))
		case ok && IsFresh(snap, now, m.staleness):
			return snap, nil
		case ok:
			m.logger.Info("routing snapshot is stale, rebuilding",
				zap.String("run_id", runID),
				zap.String("snapshot_id", snap.SnapshotID))
		}
	}

	entries := m.catalogEntries(ctx)

	snap, err := NewSnapshot(runID, entries, now, 0)
	if err != nil {
		return nil, err
	}
	if err := m.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, domain.WrapGovernorError(domain.ErrSnapshotWrite.Code, domain.ErrSnapshotWrite.Message, err)
	}

	m.logger.Info("routing snapshot created",
		zap.String("run_id", runID),
		zap.String("snapshot_id", snap.SnapshotID),
		zap.Int("tiers", len(snap.Entries)))
	return snap, nil
}

// catalogEntries asks the configured catalog for tier entries and falls
// back to the built-in ladder when the catalog is missing, unreachable,
// or empty. The fallback is an explicit, logged step rather than an
// error path.
func (m *Manager) catalogEntries(ctx context.Context) []domain.RoutingEntry {
	if m.catalog == nil {
		m.logger.Warn("no model catalog configured, using built-in default tiers")
		return DefaultEntries()
	}

	entries, err := m.catalog.Entries(ctx)
	if err != nil {
		m.logger.Warn("model catalog unavailable, using built-in default tiers", zap.Error(err))
		return DefaultEntries()
	}
	if len(entries) == 0 {
		m.logger.Warn("model catalog returned no entries, using built-in default tiers")
		return DefaultEntries()
	}
	return entries
}
