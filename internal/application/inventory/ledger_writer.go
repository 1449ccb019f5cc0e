package inventory

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AppendCommand describes one signed change to a stock item's on-hand quantity
type AppendCommand struct {
	SKU        string
	ChangeType inventory.ChangeType
	Delta      int64
	RelatedID  *uuid.UUID
	Notes      string
}

// LedgerWriter owns every write to on-hand quantities. Each change locks the
// stock row, checks the new quantity, saves the projection and appends the
// ledger entry inside one transaction.
type LedgerWriter struct {
	scope   TransactionScope
	metrics *telemetry.LedgerMetrics
}

// NewLedgerWriter creates a LedgerWriter running on scope
func NewLedgerWriter(scope TransactionScope) *LedgerWriter {
	return &LedgerWriter{scope: scope}
}

// SetLedgerMetrics sets the ledger metrics collector
func (w *LedgerWriter) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	w.metrics = m
}

// Append applies a single change in its own transaction
func (w *LedgerWriter) Append(ctx context.Context, tc *shared.TenantContext, cmd AppendCommand) (*inventory.LedgerEntry, error) {
	var entry *inventory.LedgerEntry
	_, err := w.Run(ctx, tc, "append", func(tx *LedgerTx) error {
		locks, err := tx.Lock(ctx, cmd.SKU)
		if err != nil {
			return err
		}
		entry, err = locks.Append(ctx, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Run executes fn in one transaction and returns the ledger entries it
// appended once the transaction has committed. Any error rolls back every
// projection and ledger write made through tx.
func (w *LedgerWriter) Run(ctx context.Context, tc *shared.TenantContext, operation string, fn func(tx *LedgerTx) error) (_ []*inventory.LedgerEntry, err error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartLedgerSpan(ctx, tc.TenantID, operation)
	defer func() { telemetry.EndSpan(span, err) }()

	var entries []*inventory.LedgerEntry
	telemetry.WithLedgerLabels(ctx, tc.TenantID, operation, func(ctx context.Context) {
		err = w.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			tx := &LedgerTx{TransactionalRepositories: repos, tc: tc}
			if err := fn(tx); err != nil {
				return err
			}
			entries = tx.entries
			return nil
		})
	})
	if err != nil {
		w.recordFailure(ctx, tc, operation, err)
		return nil, err
	}
	span.SetAttributes(telemetry.SpanAttrEntries.Int(len(entries)))

	for _, e := range entries {
		w.metrics.RecordEntry(ctx, tc.TenantID, e.ChangeType.String(), e.QuantityChange)
	}
	if len(entries) > 0 {
		logger.L(ctx).Debug("ledger entries committed",
			zap.String("operation", operation),
			zap.String("tenant_id", tc.TenantID.String()),
			zap.Int("entries", len(entries)),
		)
	}
	return entries, nil
}

func (w *LedgerWriter) recordFailure(ctx context.Context, tc *shared.TenantContext, operation string, err error) {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return
	}
	w.metrics.RecordRejection(ctx, tc.TenantID, operation, de.Code)
	if de.Code == shared.CodeLockTimeout {
		w.metrics.RecordLockTimeout(ctx, tc.TenantID, operation)
		logger.L(ctx).Warn("lock timeout",
			zap.String("operation", operation),
			zap.String("tenant_id", tc.TenantID.String()),
		)
	}
}

// LedgerTx is the transaction handed to LedgerWriter.Run. Stock rows may be
// locked only once per transaction, so the whole lock set is always taken in
// one ascending SKU sweep.
type LedgerTx struct {
	TransactionalRepositories
	tc      *shared.TenantContext
	locked  bool
	entries []*inventory.LedgerEntry
}

// Tenant returns the tenant context of the transaction
func (tx *LedgerTx) Tenant() *shared.TenantContext {
	return tx.tc
}

// Lock takes row locks on the stock items for skus in ascending SKU order.
// Every SKU must exist for the tenant; the first missing one (in SKU order)
// fails with SKU_NOT_FOUND.
func (tx *LedgerTx) Lock(ctx context.Context, skus ...string) (*LockSet, error) {
	if tx.locked {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Stock rows are already locked in this transaction")
	}

	normalized := make([]string, 0, len(skus))
	for _, raw := range skus {
		sku, err := inventory.NormalizeSKU(raw)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, sku)
	}
	sort.Strings(normalized)

	items, err := tx.StockItemRepo().LockBySKUs(ctx, tx.tc.TenantID, normalized)
	if err != nil {
		return nil, err
	}
	for _, sku := range normalized {
		if _, ok := items[sku]; !ok {
			return nil, shared.NewDomainErrorf(shared.CodeSkuNotFound, "SKU %s not found", sku)
		}
	}
	tx.locked = true
	return &LockSet{tx: tx, items: items}, nil
}

// Register inserts a new stock item together with its creation entry
func (tx *LedgerTx) Register(ctx context.Context, item *inventory.StockItem, entry *inventory.LedgerEntry) error {
	if err := tx.StockItemRepo().Create(ctx, item); err != nil {
		return err
	}
	if err := tx.LedgerRepo().Append(ctx, entry); err != nil {
		return err
	}
	tx.entries = append(tx.entries, entry)
	return nil
}

// LockSet holds the locked stock items of a transaction
type LockSet struct {
	tx    *LedgerTx
	items map[string]*inventory.StockItem
}

// Item returns a locked item
func (l *LockSet) Item(sku string) (*inventory.StockItem, error) {
	item, ok := l.items[sku]
	if !ok {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidState, "SKU %s was not locked by this transaction", sku)
	}
	return item, nil
}

// Append changes a locked item's on-hand quantity and records the entry
func (l *LockSet) Append(ctx context.Context, cmd AppendCommand) (*inventory.LedgerEntry, error) {
	sku, err := inventory.NormalizeSKU(cmd.SKU)
	if err != nil {
		return nil, err
	}
	item, err := l.Item(sku)
	if err != nil {
		return nil, err
	}
	entry, err := item.Apply(cmd.ChangeType, cmd.Delta, cmd.RelatedID, l.tx.tc.ActorID, cmd.Notes)
	if err != nil {
		return nil, err
	}
	if err := l.write(ctx, item, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Receive moves qty of a locked item from on-order to on-hand for a purchase receipt
func (l *LockSet) Receive(ctx context.Context, sku string, qty int64, unitCost *decimal.Decimal, poID uuid.UUID, notes string) (*inventory.LedgerEntry, error) {
	item, err := l.Item(sku)
	if err != nil {
		return nil, err
	}
	entry, err := item.Receive(qty, unitCost, poID, l.tx.tc.ActorID, notes)
	if err != nil {
		return nil, err
	}
	if err := l.write(ctx, item, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// AdjustOnOrder changes a locked item's on-order quantity
func (l *LockSet) AdjustOnOrder(ctx context.Context, sku string, delta int64) error {
	if delta == 0 {
		return nil
	}
	item, err := l.Item(sku)
	if err != nil {
		return err
	}
	if err := item.AdjustOnOrder(delta); err != nil {
		return err
	}
	return l.tx.StockItemRepo().Save(ctx, item)
}

func (l *LockSet) write(ctx context.Context, item *inventory.StockItem, entry *inventory.LedgerEntry) error {
	if err := l.tx.StockItemRepo().Save(ctx, item); err != nil {
		return err
	}
	if err := l.tx.LedgerRepo().Append(ctx, entry); err != nil {
		return err
	}
	l.tx.entries = append(l.tx.entries, entry)
	return nil
}
