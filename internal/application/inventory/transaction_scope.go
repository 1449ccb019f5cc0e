package inventory

import (
	"context"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/trade"
)

// TransactionScope provides transactional access to the ledger repositories.
// All repository operations made through the repositories handed to fn are
// part of one database transaction and are committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories bound to one transaction.
//
// Aggregate boundary notes:
//   - StockItemRepo: the projection. Quantities change only through the
//     ledger writer, which locks rows before reading them.
//   - LedgerRepo: append-only.
//   - PurchaseOrderRepo: lines are saved with their header.
//   - IdempotencyRepo: records commit together with the work they guard.
type TransactionalRepositories interface {
	StockItemRepo() inventory.StockItemRepository
	LedgerRepo() inventory.LedgerRepository
	SalesOrderRepo() trade.SalesOrderRepository
	PurchaseOrderRepo() trade.PurchaseOrderRepository
	IdempotencyRepo() shared.IdempotencyRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	stockItemRepo     inventory.StockItemRepository
	ledgerRepo        inventory.LedgerRepository
	salesOrderRepo    trade.SalesOrderRepository
	purchaseOrderRepo trade.PurchaseOrderRepository
	idempotencyRepo   shared.IdempotencyRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	stockItemRepo inventory.StockItemRepository,
	ledgerRepo inventory.LedgerRepository,
	salesOrderRepo trade.SalesOrderRepository,
	purchaseOrderRepo trade.PurchaseOrderRepository,
	idempotencyRepo shared.IdempotencyRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		stockItemRepo:     stockItemRepo,
		ledgerRepo:        ledgerRepo,
		salesOrderRepo:    salesOrderRepo,
		purchaseOrderRepo: purchaseOrderRepo,
		idempotencyRepo:   idempotencyRepo,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// StockItemRepo returns the stock item repository
func (s *NoOpTransactionScope) StockItemRepo() inventory.StockItemRepository {
	return s.stockItemRepo
}

// LedgerRepo returns the ledger repository
func (s *NoOpTransactionScope) LedgerRepo() inventory.LedgerRepository {
	return s.ledgerRepo
}

// SalesOrderRepo returns the sales order repository
func (s *NoOpTransactionScope) SalesOrderRepo() trade.SalesOrderRepository {
	return s.salesOrderRepo
}

// PurchaseOrderRepo returns the purchase order repository
func (s *NoOpTransactionScope) PurchaseOrderRepo() trade.PurchaseOrderRepository {
	return s.purchaseOrderRepo
}

// IdempotencyRepo returns the idempotency record repository
func (s *NoOpTransactionScope) IdempotencyRepo() shared.IdempotencyRepository {
	return s.idempotencyRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
