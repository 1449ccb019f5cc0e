package inventory_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	appinv "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/trade"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
	"github.com/stockledger/backend/internal/infrastructure/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db      *persistence.Database
	service *appinv.InventoryService
	tc      *shared.TenantContext
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := persistencetest.NewDatabase(t)
	writer := appinv.NewLedgerWriter(persistence.NewGormTransactionScope(db.DB))
	service := appinv.NewInventoryService(
		writer,
		persistence.NewGormStockItemRepository(db.DB),
		persistence.NewGormLedgerRepository(db.DB),
	)
	return &fixture{db: db, service: service, tc: persistencetest.NewTenant()}
}

func (f *fixture) register(t *testing.T, sku string, qty int64) *appinv.StockItemResponse {
	t.Helper()
	item, err := f.service.RegisterItem(context.Background(), f.tc, appinv.RegisterItemRequest{
		SKU:             sku,
		Name:            sku + " item",
		InitialQuantity: qty,
		Cost:            decimal.NewFromInt(4),
		ReorderPoint:    5,
		ReorderQuantity: 20,
	})
	require.NoError(t, err)
	return item
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code)
}

func TestInventoryService_RegisterItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.register(t, "WIDGET-1", 10)
	assert.Equal(t, "WIDGET-1", item.SKU)
	assert.Equal(t, int64(10), item.QuantityOnHand)
	assert.Equal(t, int64(1), item.LedgerSequence)
	assert.True(t, decimal.NewFromInt(40).Equal(item.StockValue))

	history, total, err := f.service.History(ctx, f.tc, "WIDGET-1", appinv.HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, history, 1)
	assert.Equal(t, "creation", history[0].ChangeType)
	assert.Equal(t, int64(10), history[0].ResultingQuantity)

	t.Run("duplicate SKU", func(t *testing.T) {
		_, err := f.service.RegisterItem(ctx, f.tc, appinv.RegisterItemRequest{SKU: "WIDGET-1"})
		assertCode(t, err, shared.CodeAlreadyExists)
	})

	t.Run("same SKU in another tenant", func(t *testing.T) {
		other := persistencetest.NewTenant()
		_, err := f.service.RegisterItem(ctx, other, appinv.RegisterItemRequest{SKU: "WIDGET-1", InitialQuantity: 1})
		assert.NoError(t, err)
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, err := f.service.RegisterItem(ctx, nil, appinv.RegisterItemRequest{SKU: "X"})
		assertCode(t, err, shared.CodeMissingTenantContext)
	})
}

func TestInventoryService_Append(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A-1", 3)

	t.Run("manual decrease", func(t *testing.T) {
		entry, err := f.service.Append(ctx, f.tc, appinv.AppendRequest{SKU: "A-1", ChangeType: "manual_adjustment", Delta: -2})
		require.NoError(t, err)
		assert.Equal(t, int64(1), entry.ResultingQuantity)
		assert.Equal(t, int64(2), entry.Sequence)
	})

	t.Run("negative stock is rejected and nothing is written", func(t *testing.T) {
		_, err := f.service.Append(ctx, f.tc, appinv.AppendRequest{SKU: "A-1", ChangeType: "sale", Delta: -5})
		assertCode(t, err, shared.CodeNegativeStock)

		item, err := f.service.GetItem(ctx, f.tc, "A-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), item.QuantityOnHand)
		assert.Equal(t, int64(2), item.LedgerSequence)
	})

	t.Run("unknown SKU", func(t *testing.T) {
		_, err := f.service.Append(ctx, f.tc, appinv.AppendRequest{SKU: "NOPE", ChangeType: "manual_adjustment", Delta: 1})
		assertCode(t, err, shared.CodeSkuNotFound)
	})

	t.Run("purchase receipt must go through a purchase order", func(t *testing.T) {
		_, err := f.service.Append(ctx, f.tc, appinv.AppendRequest{SKU: "A-1", ChangeType: "purchase_receipt", Delta: 1})
		assertCode(t, err, shared.CodeInvalidInput)
	})

	t.Run("unknown change type", func(t *testing.T) {
		_, err := f.service.Append(ctx, f.tc, appinv.AppendRequest{SKU: "A-1", ChangeType: "gift", Delta: 1})
		assertCode(t, err, shared.CodeInvalidInput)
	})

	t.Run("SKU of another tenant is invisible", func(t *testing.T) {
		_, err := f.service.Append(ctx, persistencetest.NewTenant(), appinv.AppendRequest{SKU: "A-1", ChangeType: "manual_adjustment", Delta: 1})
		assertCode(t, err, shared.CodeSkuNotFound)
	})
}

func TestInventoryService_SetCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "C-1", 8)

	entry, err := f.service.SetCount(ctx, f.tc, appinv.SetCountRequest{SKU: "C-1", Counted: 5})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(-3), entry.QuantityChange)
	assert.Equal(t, "manual_adjustment", entry.ChangeType)

	entry, err = f.service.SetCount(ctx, f.tc, appinv.SetCountRequest{SKU: "C-1", Counted: 5})
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestInventoryService_RecordReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.register(t, "R-1", 10)

	order, err := trade.NewSalesOrder(f.tc.TenantID, f.tc.ActorID, "SO-TEST-1", nil)
	require.NoError(t, err)
	_, err = order.AddLine(item.ID, "R-1", 4, decimal.NewFromInt(9), decimal.NewFromInt(4))
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormSalesOrderRepository(f.db.DB).Create(ctx, order))

	_, err = f.service.RecordReturn(ctx, f.tc, appinv.RecordReturnRequest{SKU: "R-1", Quantity: 3, SalesOrderID: &order.ID})
	require.NoError(t, err)

	_, err = f.service.RecordReturn(ctx, f.tc, appinv.RecordReturnRequest{SKU: "R-1", Quantity: 2, SalesOrderID: &order.ID})
	assertCode(t, err, shared.CodeInvalidQuantity)

	entry, err := f.service.RecordReturn(ctx, f.tc, appinv.RecordReturnRequest{SKU: "R-1", Quantity: 1, SalesOrderID: &order.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(14), entry.ResultingQuantity)

	t.Run("order of another tenant", func(t *testing.T) {
		other := persistencetest.NewTenant()
		_, err := f.service.RegisterItem(ctx, other, appinv.RegisterItemRequest{SKU: "R-1", InitialQuantity: 1})
		require.NoError(t, err)
		_, err = f.service.RecordReturn(ctx, other, appinv.RecordReturnRequest{SKU: "R-1", Quantity: 1, SalesOrderID: &order.ID})
		assertCode(t, err, shared.CodeTenantMismatch)
	})

	t.Run("unknown order", func(t *testing.T) {
		id := uuid.New()
		_, err := f.service.RecordReturn(ctx, f.tc, appinv.RecordReturnRequest{SKU: "R-1", Quantity: 1, SalesOrderID: &id})
		assertCode(t, err, shared.CodeNotFound)
	})

	t.Run("without an order", func(t *testing.T) {
		_, err := f.service.RecordReturn(ctx, f.tc, appinv.RecordReturnRequest{SKU: "R-1", Quantity: 2})
		assert.NoError(t, err)
	})
}

func TestInventoryService_ApplyBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "B-1", 5)
	f.register(t, "B-2", 5)

	resp, err := f.service.ApplyBatch(ctx, f.tc, appinv.ApplyBatchRequest{Rows: []appinv.BatchRow{
		{SKU: "B-2", Delta: 3},
		{SKU: "B-1", Delta: -1},
		{SKU: "B-2", Delta: -2, ChangeType: "sale"},
	}})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 3)
	assert.Equal(t, int64(8), resp.Entries[0].ResultingQuantity)
	assert.Equal(t, int64(6), resp.Entries[2].ResultingQuantity)

	t.Run("failing row rolls back the batch", func(t *testing.T) {
		_, err := f.service.ApplyBatch(ctx, f.tc, appinv.ApplyBatchRequest{Rows: []appinv.BatchRow{
			{SKU: "B-1", Delta: 10},
			{SKU: "B-2", Delta: -100},
		}})
		assertCode(t, err, shared.CodeNegativeStock)
		assert.Contains(t, err.Error(), "row 2")

		item, err := f.service.GetItem(ctx, f.tc, "B-1")
		require.NoError(t, err)
		assert.Equal(t, int64(4), item.QuantityOnHand)
	})

	t.Run("creation rows are refused", func(t *testing.T) {
		_, err := f.service.ApplyBatch(ctx, f.tc, appinv.ApplyBatchRequest{Rows: []appinv.BatchRow{
			{SKU: "B-1", Delta: 1, ChangeType: "creation"},
		}})
		assertCode(t, err, shared.CodeInvalidInput)
	})

	t.Run("row limit", func(t *testing.T) {
		f.service.SetMaxBatchRows(1)
		defer f.service.SetMaxBatchRows(0)
		_, err := f.service.ApplyBatch(ctx, f.tc, appinv.ApplyBatchRequest{Rows: []appinv.BatchRow{
			{SKU: "B-1", Delta: 1},
			{SKU: "B-2", Delta: 1},
		}})
		assertCode(t, err, shared.CodeInvalidInput)
	})
}

func TestInventoryService_RetireItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "OLD-1", 2)

	retired, err := f.service.RetireItem(ctx, f.tc, "OLD-1")
	require.NoError(t, err)
	assert.NotNil(t, retired.RetiredAt)

	_, err = f.service.Adjust(ctx, f.tc, appinv.AdjustRequest{SKU: "OLD-1", Delta: 1, Notes: "found"})
	assertCode(t, err, shared.CodeItemRetired)

	items, total, err := f.service.ListItems(ctx, f.tc, appinv.StockItemListFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)

	items, _, err = f.service.ListItems(ctx, f.tc, appinv.StockItemListFilter{IncludeRetired: true})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, total, err = f.service.History(ctx, f.tc, "OLD-1", appinv.HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestInventoryService_UpdateReorderParameters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "P-1", 2)

	supplier := uuid.New()
	item, err := f.service.UpdateReorderParameters(ctx, f.tc, "P-1", appinv.UpdateReorderParametersRequest{
		ReorderPoint:    1,
		ReorderQuantity: 12,
		LeadTimeDays:    7,
		SupplierID:      &supplier,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), item.ReorderQuantity)
	assert.False(t, item.BelowReorderPoint)

	items, _, err := f.service.ListItems(ctx, f.tc, appinv.StockItemListFilter{SupplierID: &supplier})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestInventoryService_Reconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Q-1", 6)
	_, err := f.service.Adjust(ctx, f.tc, appinv.AdjustRequest{SKU: "Q-1", Delta: -2, Notes: "damaged"})
	require.NoError(t, err)

	report, err := f.service.Reconcile(ctx, f.tc, "Q-1")
	require.NoError(t, err)
	assert.True(t, report.Balanced())
	assert.Equal(t, int64(4), report.ReplayedQuantity)
	assert.Equal(t, 2, report.EntryCount)

	// Corrupt the projection behind the ledger's back.
	require.NoError(t, f.db.DB.Exec(
		"UPDATE stock_items SET quantity_on_hand = 9 WHERE tenant_id = ? AND sku = ?", f.tc.TenantID, "Q-1").Error)

	report, err = f.service.Reconcile(ctx, f.tc, "Q-1")
	require.NoError(t, err)
	assert.False(t, report.Balanced())
	assert.Equal(t, int64(9), report.ProjectedQuantity)

	summary, err := f.service.ReconcileTenant(ctx, f.tc)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Items)
	assert.Zero(t, summary.Balanced)
	require.Len(t, summary.Unbalanced, 1)
	assert.Equal(t, "Q-1", summary.Unbalanced[0].SKU)
}

func TestLedgerWriter_LockOncePerTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "L-1", 1)
	f.register(t, "L-2", 1)

	writer := appinv.NewLedgerWriter(persistence.NewGormTransactionScope(f.db.DB))
	_, err := writer.Run(ctx, f.tc, "test", func(tx *appinv.LedgerTx) error {
		if _, err := tx.Lock(ctx, "L-2", "L-1"); err != nil {
			return err
		}
		_, err := tx.Lock(ctx, "L-1")
		return err
	})
	assertCode(t, err, shared.CodeInvalidState)

	entries, err := writer.Run(ctx, f.tc, "test", func(tx *appinv.LedgerTx) error {
		locks, err := tx.Lock(ctx, "L-2", "L-1")
		if err != nil {
			return err
		}
		if _, err := locks.Append(ctx, appinv.AppendCommand{SKU: "L-1", ChangeType: inventory.ChangeTypeManualAdjustment, Delta: 1}); err != nil {
			return err
		}
		_, err = locks.Append(ctx, appinv.AppendCommand{SKU: "L-3", ChangeType: inventory.ChangeTypeManualAdjustment, Delta: 1})
		return err
	})
	assertCode(t, err, shared.CodeInvalidState)
	assert.Nil(t, entries)

	item, err := f.service.GetItem(ctx, f.tc, "L-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.QuantityOnHand)
}
