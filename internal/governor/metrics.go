package governor

import (
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// meters holds the governor's counters. Creation failures are logged
// and the call sites nil-guard, so a broken meter never blocks a run.
type meters struct {
	decisions   metric.Int64Counter
	escalations metric.Int64Counter
	violations  metric.Int64Counter
	proofs      metric.Int64Counter
}

func newMeters(meter metric.Meter, logger *zap.Logger) meters {
	var m meters
	var err error

	if m.decisions, err = meter.Int64Counter("foreman.decisions_total",
		metric.WithDescription("Stuck-handling decisions by decision and reason.")); err != nil {
		logger.Warn("create decisions counter", zap.Error(err))
	}
	if m.escalations, err = meter.Int64Counter("foreman.escalations_total",
		metric.WithDescription("Escalation attempts by grant outcome.")); err != nil {
		logger.Warn("create escalations counter", zap.Error(err))
	}
	if m.violations, err = meter.Int64Counter("foreman.patch_violations_total",
		metric.WithDescription("Patch gate violations by kind.")); err != nil {
		logger.Warn("create violations counter", zap.Error(err))
	}
	if m.proofs, err = meter.Int64Counter("foreman.proofs_written_total",
		metric.WithDescription("Phase proofs written by success.")); err != nil {
		logger.Warn("create proofs counter", zap.Error(err))
	}
	return m
}
