package trade_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/application/idempotency"
	appinv "github.com/stockledger/backend/internal/application/inventory"
	apptrade "github.com/stockledger/backend/internal/application/trade"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/cache"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
	"github.com/stockledger/backend/internal/infrastructure/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db        *persistence.Database
	inventory *appinv.InventoryService
	sales     *apptrade.SaleService
	orders    *apptrade.PurchaseOrderService
	tc        *shared.TenantContext
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := persistencetest.NewDatabase(t)
	c := cache.NewInMemoryIdempotencyCache()
	t.Cleanup(func() { _ = c.Close() })

	writer := appinv.NewLedgerWriter(persistence.NewGormTransactionScope(db.DB))
	guard := idempotency.NewGuard(c, shared.IdempotencyConfig{TTL: time.Hour, Enabled: true})

	return &fixture{
		db: db,
		inventory: appinv.NewInventoryService(
			writer,
			persistence.NewGormStockItemRepository(db.DB),
			persistence.NewGormLedgerRepository(db.DB),
		),
		sales:  apptrade.NewSaleService(writer, guard, persistence.NewGormSalesOrderRepository(db.DB)),
		orders: apptrade.NewPurchaseOrderService(writer, guard, persistence.NewGormPurchaseOrderRepository(db.DB)),
		tc:     persistencetest.NewTenant(),
	}
}

func (f *fixture) register(t *testing.T, sku string, qty int64, cost int64) {
	t.Helper()
	_, err := f.inventory.RegisterItem(context.Background(), f.tc, appinv.RegisterItemRequest{
		SKU:             sku,
		Name:            sku,
		InitialQuantity: qty,
		Cost:            decimal.NewFromInt(cost),
		ReorderPoint:    5,
		ReorderQuantity: 20,
	})
	require.NoError(t, err)
}

func (f *fixture) item(t *testing.T, sku string) *appinv.StockItemResponse {
	t.Helper()
	item, err := f.inventory.GetItem(context.Background(), f.tc, sku)
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
