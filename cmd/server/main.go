// Command server runs the stock ledger HTTP API together with the
// reconciliation scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appidem "github.com/stockledger/backend/internal/application/idempotency"
	appinv "github.com/stockledger/backend/internal/application/inventory"
	appreorder "github.com/stockledger/backend/internal/application/reorder"
	apptrade "github.com/stockledger/backend/internal/application/trade"
	"github.com/stockledger/backend/internal/domain/reorder"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/auth"
	"github.com/stockledger/backend/internal/infrastructure/cache"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
	"github.com/stockledger/backend/internal/infrastructure/scheduler"
	"github.com/stockledger/backend/internal/infrastructure/storage"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
	"github.com/stockledger/backend/internal/interfaces/http/handler"
	"github.com/stockledger/backend/internal/interfaces/http/middleware"
	"github.com/stockledger/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const archiveLinkTTL = 15 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, logger.WithFields(zap.String("service", cfg.Telemetry.ServiceName), zap.String("env", cfg.App.Env)))
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer tel.shutdown(log)
	log = tel.logs.Bridge(log, zapcore.InfoLevel)

	log.Info("Starting stock ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if db.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			return err
		}
		log.Info("SQLite schema migrated from models")
	}

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:            cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:             dbSystem(cfg.Database.Driver),
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		return fmt.Errorf("register database tracing: %w", err)
	}

	meter := tel.meter()
	var ledgerMetrics *telemetry.LedgerMetrics
	if meter != nil {
		dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meter, log)
		if err != nil {
			return fmt.Errorf("register database metrics: %w", err)
		}
		defer dbMetrics.Stop()

		ledgerMetrics, err = telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
			Meter:         meter,
			Logger:        log,
			StockProvider: telemetry.NewGormStockMetricsProvider(db.DB),
		})
		if err != nil {
			return fmt.Errorf("create ledger metrics: %w", err)
		}
		defer ledgerMetrics.Stop()
	}

	// Repositories
	stockItemRepo := persistence.NewGormStockItemRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	salesOrderRepo := persistence.NewGormSalesOrderRepository(db.DB)
	purchaseOrderRepo := persistence.NewGormPurchaseOrderRepository(db.DB)
	settingsRepo := persistence.NewGormReorderSettingsRepository(db.DB)
	idempotencyRepo := persistence.NewGormIdempotencyRepository(db.DB)

	if ledgerMetrics != nil {
		ledgerMetrics.StartPeriodicCollection(ctx, stockItemRepo, cfg.Telemetry.MetricsInterval)
	}

	idemCache, err := cache.NewIdempotencyCacheFactory(cfg.Redis, cache.WithLogger(log)).
		CreateCache(cfg.Ledger.IdempotencyCache)
	if err != nil {
		return err
	}

	// Services
	writer := appinv.NewLedgerWriter(persistence.NewGormTransactionScopeFromDatabase(db, cfg.Database.LockTimeout))
	writer.SetLedgerMetrics(ledgerMetrics)
	guard := appidem.NewGuard(idemCache, shared.IdempotencyConfig{
		TTL:     cfg.Ledger.IdempotencyTTL,
		Enabled: idemCache != nil,
	})
	guard.SetLedgerMetrics(ledgerMetrics)

	inventoryService := appinv.NewInventoryService(writer, stockItemRepo, ledgerRepo)
	inventoryService.SetMaxBatchRows(cfg.Ledger.MaxBatchRows)
	saleService := apptrade.NewSaleService(writer, guard, salesOrderRepo)
	purchaseOrderService := apptrade.NewPurchaseOrderService(writer, guard, purchaseOrderRepo)
	reorderService := appreorder.NewReorderService(stockItemRepo, ledgerRepo, settingsRepo)
	if err := reorderService.SetDefaultPolicy(reorder.Policy{
		LeadTimeDays:       cfg.Reorder.LeadTimeDays,
		SafetyStockDays:    cfg.Reorder.SafetyStockDays,
		VelocityWindowDays: cfg.Reorder.VelocityWindowDays,
		ReviewPeriodDays:   cfg.Reorder.ReviewPeriodDays,
		DeadStockDays:      cfg.Reorder.DeadStockDays,
	}); err != nil {
		return fmt.Errorf("reorder defaults: %w", err)
	}

	archiveHandler, err := setupArchive(ctx, cfg, ledgerRepo, log)
	if err != nil {
		return err
	}

	var limiter *middleware.TenantRateLimiter
	if cfg.HTTP.RateLimitRPS > 0 {
		limiter = middleware.NewTenantRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
		defer limiter.Stop()
	}

	engine, err := router.New(router.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		HTTP:        cfg.HTTP,
		Auth: middleware.TenantAuthConfig{
			Verifier:        auth.NewVerifier(cfg.Auth),
			AllowHeaderAuth: cfg.Auth.AllowHeaderAuth,
			Logger:          log,
		},
		Logger:      log,
		Meter:       meter,
		RateLimiter: limiter,
	}, router.Handlers{
		Inventory:      handler.NewInventoryHandler(inventoryService),
		Sales:          handler.NewSaleHandler(saleService),
		PurchaseOrders: handler.NewPurchaseOrderHandler(purchaseOrderService),
		Reorder:        handler.NewReorderHandler(reorderService),
		Archive:        archiveHandler,
		System: handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion, map[string]handler.Pinger{
			"database": handler.PingerFunc(func(ctx context.Context) error {
				sqlDB, err := db.DB.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}),
		}),
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	var (
		jobs    *scheduler.Scheduler
		trigger *scheduler.Trigger
	)
	if cfg.Scheduler.Enabled {
		jobs = scheduler.NewScheduler(scheduler.Config{
			Workers:    cfg.Scheduler.MaxConcurrentTenants,
			JobTimeout: cfg.Scheduler.JobTimeout,
		}, scheduler.NewLedgerJobExecutor(inventoryService, idempotencyRepo, log), log)
		trigger = scheduler.NewTrigger(scheduler.TriggerConfig{
			Interval:         cfg.Scheduler.ReconciliationInterval,
			PurgeIdempotency: true,
		}, jobs, stockItemRepo, log)
		if err := jobs.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		if err := trigger.Start(ctx); err != nil {
			return fmt.Errorf("start reconciliation trigger: %w", err)
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http: %w", err))
		}
		if trigger != nil {
			if err := trigger.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("stop trigger: %w", err))
			}
		}
		if jobs != nil {
			if err := jobs.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}

// setupArchive builds the ledger export handler. Without object storage the
// archive is kept in memory, which only suits development.
func setupArchive(ctx context.Context, cfg *config.Config, ledgerRepo *persistence.GormLedgerRepository, log *zap.Logger) (*handler.ArchiveHandler, error) {
	if !cfg.Storage.Enabled {
		log.Warn("Object storage disabled, ledger archives are kept in memory")
		store := storage.NewMemoryArchive()
		return handler.NewArchiveHandler(appinv.NewLedgerArchiver(ledgerRepo, store, cfg.Storage.Prefix), store, archiveLinkTTL), nil
	}

	store, err := storage.NewS3Archive(ctx, &cfg.Storage, storage.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("create archive storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure archive bucket: %w", err)
	}
	return handler.NewArchiveHandler(appinv.NewLedgerArchiver(ledgerRepo, store, cfg.Storage.Prefix), store, archiveLinkTTL), nil
}

func dbSystem(driver string) string {
	switch driver {
	case config.DriverMySQL:
		return "mysql"
	case config.DriverSQLite:
		return "sqlite"
	default:
		return "postgresql"
	}
}
