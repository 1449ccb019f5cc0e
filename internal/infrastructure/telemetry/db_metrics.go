package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetrics records statement latency and errors per operation and table,
// and observes the connection pool on every collection.
type DBMetrics struct {
	queryDuration *Histogram
	queryErrors   *Counter
	registration  metric.Registration
	logger        *zap.Logger
}

// RegisterDBMetrics instruments db. Pool gauges read sql.DBStats lazily, so
// they cost nothing between collections.
func RegisterDBMetrics(db *gorm.DB, meter metric.Meter, logger *zap.Logger) (*DBMetrics, error) {
	if meter == nil {
		return nil, &MetricsError{Op: "RegisterDBMetrics", Err: "meter cannot be nil"}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	m := &DBMetrics{logger: logger}
	m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Time spent executing a statement",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	m.queryErrors, err = NewCounter(meter, "db_query_errors_total", "Statements that returned an error", "{statements}")
	if err != nil {
		return nil, err
	}

	if err := m.observePool(meter, sqlDB); err != nil {
		return nil, err
	}
	if err := registerTimed(db, "ledger_db_metrics", m.record); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DBMetrics) observePool(meter metric.Meter, sqlDB *sql.DB) error {
	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Pooled connections by state"),
		metric.WithUnit("{connections}"))
	if err != nil {
		return err
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Connection requests that had to wait"),
		metric.WithUnit("{requests}"))
	if err != nil {
		return err
	}
	waitTime, err := meter.Float64ObservableCounter("db_pool_wait_seconds_total",
		metric.WithDescription("Time spent waiting for a pooled connection"),
		metric.WithUnit("s"))
	if err != nil {
		return err
	}

	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(conns, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(conns, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(conns, int64(stats.MaxOpenConnections), metric.WithAttributes(AttrDBState.String("max")))
		o.ObserveInt64(waits, stats.WaitCount)
		o.ObserveFloat64(waitTime, stats.WaitDuration.Seconds())
		return nil
	}, conns, waits, waitTime)
	return err
}

func (m *DBMetrics) record(tx *gorm.DB, operation string, elapsed time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := []attribute.KeyValue{AttrDBOperation.String(operation), AttrDBTable.String(tx.Statement.Table)}
	m.queryDuration.RecordDuration(ctx, elapsed, attrs...)
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		m.queryErrors.Inc(ctx, attrs...)
	}
}

// Stop unregisters the pool callback
func (m *DBMetrics) Stop() {
	if m == nil || m.registration == nil {
		return
	}
	if err := m.registration.Unregister(); err != nil {
		m.logger.Warn("Failed to unregister pool metrics", zap.Error(err))
	}
}
