package persistence

import (
	"context"
	"fmt"
	"time"

	appinv "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/trade"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// On Postgres and MySQL every transaction bounds how long it waits for a row
// lock, so a blocked writer fails with LOCK_TIMEOUT instead of hanging.
type GormTransactionScope struct {
	db          *gorm.DB
	driver      string
	lockTimeout time.Duration
}

// NewGormTransactionScope creates a new GormTransactionScope without a lock timeout
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// NewGormTransactionScopeFromDatabase creates a scope that applies the
// configured lock timeout for the database's driver
func NewGormTransactionScopeFromDatabase(d *Database, lockTimeout time.Duration) *GormTransactionScope {
	return &GormTransactionScope{db: d.DB, driver: d.Driver, lockTimeout: lockTimeout}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reset, err := s.applyLockTimeout(tx)
		if err != nil {
			return err
		}
		if reset != "" {
			defer s.restoreLockTimeout(ctx, tx, reset)
		}
		return fn(&gormTransactionalRepositories{tx: tx})
	})
	return translateError(err)
}

// applyLockTimeout bounds row-lock waits for the transaction. It returns the
// statement that undoes a session-level setting, empty when the setting ends
// with the transaction.
func (s *GormTransactionScope) applyLockTimeout(tx *gorm.DB) (string, error) {
	if s.lockTimeout <= 0 {
		return "", nil
	}
	var stmt, reset string
	switch s.driver {
	case config.DriverPostgres:
		stmt = fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
	case config.DriverMySQL:
		// MySQL has no transaction-local variant; the pooled connection
		// gets the server default back before it is released.
		secs := int64(s.lockTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		stmt = fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)
		reset = "SET SESSION innodb_lock_wait_timeout = DEFAULT"
	default:
		return "", nil
	}
	if err := tx.Exec(stmt).Error; err != nil {
		return "", fmt.Errorf("set lock timeout: %w", err)
	}
	return reset, nil
}

func (s *GormTransactionScope) restoreLockTimeout(ctx context.Context, tx *gorm.DB, stmt string) {
	if err := tx.WithContext(context.WithoutCancel(ctx)).Exec(stmt).Error; err != nil {
		logger.L(ctx).Warn("failed to restore session lock timeout", zap.Error(err))
	}
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) StockItemRepo() inventory.StockItemRepository {
	return NewGormStockItemRepository(r.tx)
}

func (r *gormTransactionalRepositories) LedgerRepo() inventory.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

func (r *gormTransactionalRepositories) SalesOrderRepo() trade.SalesOrderRepository {
	return NewGormSalesOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) PurchaseOrderRepo() trade.PurchaseOrderRepository {
	return NewGormPurchaseOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) IdempotencyRepo() shared.IdempotencyRepository {
	return NewGormIdempotencyRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appinv.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
