package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics tracks stock ledger activity: entries written, rejected
// commands, lock timeouts, idempotent replays and reconciliation drift.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	entriesTotal      *Counter
	quantityMoved     *Counter
	rejectionsTotal   *Counter
	lockTimeoutsTotal *Counter
	replaysTotal      *Counter
	driftTotal        *Counter

	// Gauge metrics (point-in-time values)
	belowReorderPoint *Gauge
	onHandUnits       *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	stockProvider StockMetricsProvider
}

// StockMetricsProvider provides projection aggregates for periodic collection.
// It lets the telemetry layer read stock state without depending on the
// inventory domain.
type StockMetricsProvider interface {
	// BelowReorderPointCount counts active items at or below their reorder point
	BelowReorderPointCount(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// OnHandUnits sums on-hand quantity across active items
	OnHandUnits(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// TenantProvider lists tenants for periodic collection
type TenantProvider interface {
	TenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter         metric.Meter
	Logger        *zap.Logger
	StockProvider StockMetricsProvider
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		stockProvider: cfg.StockProvider,
	}

	counters := []struct {
		target           **Counter
		name, desc, unit string
	}{
		{&lm.entriesTotal, "ledger_entries_total", "Ledger entries appended", "{entries}"},
		{&lm.quantityMoved, "ledger_quantity_moved_total", "Absolute units moved by ledger entries", "{units}"},
		{&lm.rejectionsTotal, "ledger_rejections_total", "Ledger commands rejected", "{commands}"},
		{&lm.lockTimeoutsTotal, "ledger_lock_timeouts_total", "Transactions that timed out waiting for a row lock", "{transactions}"},
		{&lm.replaysTotal, "ledger_idempotent_replays_total", "Keyed commands answered from a stored result", "{commands}"},
		{&lm.driftTotal, "ledger_reconciliation_drift_total", "Stock items whose ledger does not replay onto the projection", "{items}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	lm.belowReorderPoint, err = NewGauge(cfg.Meter,
		"ledger_items_below_reorder_point",
		"Active stock items at or below their reorder point",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	lm.onHandUnits, err = NewGauge(cfg.Meter,
		"ledger_on_hand_units",
		"Units on hand across active stock items",
		"{units}",
	)
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordEntry records one appended ledger entry
func (lm *LedgerMetrics) RecordEntry(ctx context.Context, tenantID uuid.UUID, changeType string, delta int64) {
	if lm == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrTenantID.String(tenantID.String()),
		AttrChangeType.String(changeType),
	}
	lm.entriesTotal.Inc(ctx, attrs...)
	if delta < 0 {
		delta = -delta
	}
	lm.quantityMoved.Add(ctx, delta, attrs...)
}

// RecordRejection records a command that failed with a domain error code
func (lm *LedgerMetrics) RecordRejection(ctx context.Context, tenantID uuid.UUID, operation, code string) {
	if lm == nil {
		return
	}
	lm.rejectionsTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOperation.String(operation),
		AttrErrorCode.String(code),
	)
}

// RecordLockTimeout records a transaction that gave up waiting for a row lock
func (lm *LedgerMetrics) RecordLockTimeout(ctx context.Context, tenantID uuid.UUID, operation string) {
	if lm == nil {
		return
	}
	lm.lockTimeoutsTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOperation.String(operation),
	)
}

// RecordReplay records a keyed command answered from its stored result
func (lm *LedgerMetrics) RecordReplay(ctx context.Context, tenantID uuid.UUID, operation string) {
	if lm == nil {
		return
	}
	lm.replaysTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOperation.String(operation),
	)
}

// RecordDrift records items that failed reconciliation
func (lm *LedgerMetrics) RecordDrift(ctx context.Context, tenantID uuid.UUID, items int64) {
	if lm == nil || items <= 0 {
		return
	}
	lm.driftTotal.Add(ctx, items, AttrTenantID.String(tenantID.String()))
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects every interval (default: 5 minutes) until Stop is called or
// ctx is cancelled.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, tenants TenantProvider, interval time.Duration) {
	if lm == nil {
		return
	}
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go lm.runPeriodicCollection(ctx, tenants, interval)
	})
}

func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, tenants TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lm.collect(ctx, tenants)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			lm.collect(ctx, tenants)
		}
	}
}

func (lm *LedgerMetrics) collect(ctx context.Context, tenants TenantProvider) {
	if lm.stockProvider == nil {
		lm.logger.Debug("No stock provider configured, skipping ledger gauge collection")
		return
	}

	tenantIDs, err := tenants.TenantIDs(ctx)
	if err != nil {
		lm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		attr := AttrTenantID.String(tenantID.String())
		if count, err := lm.stockProvider.BelowReorderPointCount(ctx, tenantID); err != nil {
			lm.logger.Warn("Failed to count items below reorder point",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		} else {
			lm.belowReorderPoint.Record(ctx, count, attr)
		}
		if units, err := lm.stockProvider.OnHandUnits(ctx, tenantID); err != nil {
			lm.logger.Warn("Failed to sum on-hand units",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		} else {
			lm.onHandUnits.Record(ctx, units, attr)
		}
	}
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	if lm == nil {
		return
	}
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
