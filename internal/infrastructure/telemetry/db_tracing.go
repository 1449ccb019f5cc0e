package telemetry

import (
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures statement spans.
type DBTracingConfig struct {
	Enabled            bool
	DBName             string        // db.system attribute: postgresql, mysql, sqlite
	LogFullSQL         bool          // bind values in spans and slow-query logs; never in production
	SlowQueryThreshold time.Duration // default 200ms
}

// RegisterDBTracing installs the otelgorm plugin, so every statement becomes
// a child span of the ledger transaction that issued it, and logs statements
// slower than the threshold with their trace id.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	threshold := cfg.SlowQueryThreshold
	if threshold <= 0 {
		threshold = 200 * time.Millisecond
	}
	slow := func(tx *gorm.DB, operation string, elapsed time.Duration) {
		if elapsed < threshold {
			return
		}
		fields := []zap.Field{
			zap.String("operation", operation),
			zap.String("table", tx.Statement.Table),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", tx.RowsAffected),
		}
		if tx.Statement.Context != nil {
			if id := TraceID(tx.Statement.Context); id != "" {
				fields = append(fields, zap.String("trace_id", id))
			}
		}
		if cfg.LogFullSQL {
			fields = append(fields, zap.String("sql", tx.Dialector.Explain(tx.Statement.SQL.String(), tx.Statement.Vars...)))
		}
		logger.Warn("Slow query", fields...)
	}
	if err := registerTimed(db, "ledger_slow_query", slow); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", cfg.DBName),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", threshold),
	)
	return nil
}
