package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stockledger/backend/internal/application/idempotency"
	appinv "github.com/stockledger/backend/internal/application/inventory"
	appreorder "github.com/stockledger/backend/internal/application/reorder"
	apptrade "github.com/stockledger/backend/internal/application/trade"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/cache"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
	"github.com/stockledger/backend/internal/infrastructure/persistence/persistencetest"
	"github.com/stockledger/backend/internal/infrastructure/storage"
	"github.com/stockledger/backend/internal/interfaces/http/handler"
	"github.com/stockledger/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	engine  *gin.Engine
	tc      *shared.TenantContext
	archive *storage.MemoryArchive
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	} `json:"error"`
	Meta *struct {
		Total    int64 `json:"total"`
		Page     int   `json:"page"`
		PageSize int   `json:"page_size"`
	} `json:"meta"`
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	db := persistencetest.NewDatabase(t)
	c := cache.NewInMemoryIdempotencyCache()
	t.Cleanup(func() { _ = c.Close() })

	writer := appinv.NewLedgerWriter(persistence.NewGormTransactionScope(db.DB))
	guard := idempotency.NewGuard(c, shared.IdempotencyConfig{TTL: time.Hour, Enabled: true})
	items := persistence.NewGormStockItemRepository(db.DB)
	ledger := persistence.NewGormLedgerRepository(db.DB)
	archive := storage.NewMemoryArchive()

	inv := handler.NewInventoryHandler(appinv.NewInventoryService(writer, items, ledger))
	sales := handler.NewSaleHandler(apptrade.NewSaleService(writer, guard, persistence.NewGormSalesOrderRepository(db.DB)))
	orders := handler.NewPurchaseOrderHandler(apptrade.NewPurchaseOrderService(writer, guard, persistence.NewGormPurchaseOrderRepository(db.DB)))
	reorder := handler.NewReorderHandler(appreorder.NewReorderService(items, ledger, persistence.NewGormReorderSettingsRepository(db.DB)))
	archives := handler.NewArchiveHandler(appinv.NewLedgerArchiver(ledger, archive, "exports"), archive, time.Minute)

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.TenantAuth(middleware.TenantAuthConfig{AllowHeaderAuth: true}))
	api := engine.Group("/api/v1")
	api.POST("/items", inv.RegisterItem)
	api.GET("/items", inv.ListItems)
	api.GET("/items/:sku", inv.GetItem)
	api.DELETE("/items/:sku", inv.RetireItem)
	api.GET("/items/:sku/history", inv.History)
	api.POST("/items/:sku/reconcile", inv.ReconcileItem)
	api.POST("/ledger/adjustments", inv.Adjust)
	api.POST("/ledger/counts", inv.SetCount)
	api.POST("/ledger/batches", inv.ApplyBatch)
	api.POST("/ledger/archives", archives.Export)
	api.POST("/sales", sales.ProcessSale)
	api.GET("/sales/:id", sales.GetSale)
	api.POST("/purchase-orders", orders.Create)
	api.POST("/purchase-orders/:id/place", orders.Place)
	api.POST("/purchase-orders/:id/receive", orders.Receive)
	api.POST("/purchase-orders/:id/cancel", orders.Cancel)
	api.GET("/reorder/suggestions", reorder.Suggestions)
	api.PUT("/reorder/settings", reorder.UpdateSettings)

	return &apiFixture{engine: engine, tc: persistencetest.NewTenant(), archive: archive}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeaderKey, f.tc.TenantID.String())
	req.Header.Set(middleware.UserHeaderKey, f.tc.ActorID.String())
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (f *apiFixture) register(t *testing.T, sku string, qty int64) {
	t.Helper()
	w, _ := f.do(t, http.MethodPost, "/api/v1/items", map[string]any{
		"sku": sku, "name": sku, "initial_quantity": qty, "cost": "2.50", "reorder_point": 5, "reorder_quantity": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestInventoryHandler_ItemLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "BOLT-1", 10)

	t.Run("duplicate register", func(t *testing.T) {
		w, env := f.do(t, http.MethodPost, "/api/v1/items", map[string]any{"sku": "BOLT-1"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, shared.CodeAlreadyExists, env.Error.Code)
	})

	t.Run("invalid sku rejected by binding", func(t *testing.T) {
		w, env := f.do(t, http.MethodPost, "/api/v1/items", map[string]any{"sku": "  "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotEmpty(t, env.Error.Details)
		assert.Equal(t, "sku", env.Error.Details[0].Field)
	})

	t.Run("adjust then get", func(t *testing.T) {
		w, _ := f.do(t, http.MethodPost, "/api/v1/ledger/adjustments", map[string]any{"sku": "BOLT-1", "delta": -3, "notes": "damaged"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w, env := f.do(t, http.MethodGet, "/api/v1/items/BOLT-1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		item := decode[appinv.StockItemResponse](t, env)
		assert.Equal(t, int64(7), item.QuantityOnHand)
		assert.Equal(t, int64(2), item.LedgerSequence)
	})

	t.Run("negative stock rejected", func(t *testing.T) {
		w, env := f.do(t, http.MethodPost, "/api/v1/ledger/adjustments", map[string]any{"sku": "BOLT-1", "delta": -100, "notes": "oops"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, shared.CodeNegativeStock, env.Error.Code)
	})

	t.Run("matching count writes nothing", func(t *testing.T) {
		w, env := f.do(t, http.MethodPost, "/api/v1/ledger/counts", map[string]any{"sku": "BOLT-1", "counted": 7})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"sku":"BOLT-1","quantity_on_hand":7,"changed":false}`, string(env.Data))

		w, env = f.do(t, http.MethodGet, "/api/v1/items/bolt-1/history", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(2), env.Meta.Total)
	})

	t.Run("history is paged", func(t *testing.T) {
		w, env := f.do(t, http.MethodGet, "/api/v1/items/BOLT-1/history?page_size=1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, env.Meta)
		assert.Equal(t, int64(2), env.Meta.Total)
		assert.Equal(t, 1, env.Meta.PageSize)
		assert.Len(t, decode[[]appinv.LedgerEntryResponse](t, env), 1)
	})

	t.Run("reconcile", func(t *testing.T) {
		w, env := f.do(t, http.MethodPost, "/api/v1/items/BOLT-1/reconcile", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"replayed_quantity":7`)
		assert.Contains(t, string(env.Data), `"projected_quantity":7`)
		assert.NotContains(t, string(env.Data), "drifts")
	})

	t.Run("unknown sku", func(t *testing.T) {
		w, env := f.do(t, http.MethodGet, "/api/v1/items/NOPE", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, shared.CodeSkuNotFound, env.Error.Code)
	})

	t.Run("retire blocks movement", func(t *testing.T) {
		w, _ := f.do(t, http.MethodDelete, "/api/v1/items/BOLT-1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w, env := f.do(t, http.MethodPost, "/api/v1/ledger/adjustments", map[string]any{"sku": "BOLT-1", "delta": 1, "notes": "found"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, shared.CodeItemRetired, env.Error.Code)
	})
}

func TestInventoryHandler_TenantIsolation(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "SHARED", 4)

	other := *f
	other.tc = persistencetest.NewTenant()
	w, env := other.do(t, http.MethodGet, "/api/v1/items/SHARED", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, shared.CodeSkuNotFound, env.Error.Code)

	w, env = other.do(t, http.MethodGet, "/api/v1/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), env.Meta.Total)
}

func TestInventoryHandler_ApplyBatchIsAtomic(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "A", 5)
	f.register(t, "B", 1)

	w, env := f.do(t, http.MethodPost, "/api/v1/ledger/batches", map[string]any{
		"rows": []map[string]any{{"sku": "A", "delta": 3}, {"sku": "B", "delta": -2}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, shared.CodeNegativeStock, env.Error.Code)

	_, env = f.do(t, http.MethodGet, "/api/v1/items/A", nil)
	assert.Equal(t, int64(5), decode[appinv.StockItemResponse](t, env).QuantityOnHand)
}

func TestSaleHandler(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "CUP", 5)
	body := map[string]any{"lines": []map[string]any{{"sku": "CUP", "quantity": 2, "unit_price": "4.00"}}}

	w, env := f.do(t, http.MethodPost, "/api/v1/sales", body, middleware.IdempotencyKeyHeader, "sale-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[apptrade.SaleResponse](t, env)

	t.Run("replay returns the original sale", func(t *testing.T) {
		w, env := f.do(t, http.MethodPost, "/api/v1/sales", body, middleware.IdempotencyKeyHeader, "sale-1")
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, first.ID, decode[apptrade.SaleResponse](t, env).ID)

		_, env = f.do(t, http.MethodGet, "/api/v1/items/CUP", nil)
		assert.Equal(t, int64(3), decode[appinv.StockItemResponse](t, env).QuantityOnHand)
	})

	t.Run("get sale", func(t *testing.T) {
		w, _ := f.do(t, http.MethodGet, "/api/v1/sales/"+first.ID.String(), nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w, env := f.do(t, http.MethodGet, "/api/v1/sales/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "BAD_REQUEST", env.Error.Code)
	})

	t.Run("oversell", func(t *testing.T) {
		w, env := f.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
			"lines": []map[string]any{{"sku": "CUP", "quantity": 50}},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, shared.CodeNegativeStock, env.Error.Code)
	})

	t.Run("unknown sku", func(t *testing.T) {
		w, env := f.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
			"lines": []map[string]any{{"sku": "GHOST", "quantity": 1}},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, shared.CodeSkuNotFound, env.Error.Code)
	})
}

func TestPurchaseOrderHandler_Lifecycle(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "NUT", 0)

	w, env := f.do(t, http.MethodPost, "/api/v1/purchase-orders", map[string]any{
		"lines": []map[string]any{{"sku": "NUT", "quantity": 10, "unit_cost": "1.25"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[apptrade.PurchaseOrderResponse](t, env)
	base := "/api/v1/purchase-orders/" + order.ID.String()

	w, env = f.do(t, http.MethodPost, base+"/receive", map[string]any{"lines": []map[string]any{{"sku": "NUT", "quantity": 1}}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "draft cannot be received")
	assert.Equal(t, shared.CodeInvalidState, env.Error.Code)

	w, _ = f.do(t, http.MethodPost, base+"/place", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = f.do(t, http.MethodPost, base+"/receive", map[string]any{"lines": []map[string]any{{"sku": "NUT", "quantity": 11}}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, shared.CodeOverReceipt, env.Error.Code)

	w, env = f.do(t, http.MethodPost, base+"/receive", map[string]any{"lines": []map[string]any{{"sku": "NUT", "quantity": 4}}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PARTIAL", decode[apptrade.PurchaseOrderResponse](t, env).Status)

	_, env = f.do(t, http.MethodGet, "/api/v1/items/NUT", nil)
	item := decode[appinv.StockItemResponse](t, env)
	assert.Equal(t, int64(4), item.QuantityOnHand)
	assert.Equal(t, int64(6), item.QuantityOnOrder)

	w, env = f.do(t, http.MethodPost, base+"/cancel", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "partially received orders cannot be cancelled")
	assert.Equal(t, shared.CodeInvalidState, env.Error.Code)

	w, env = f.do(t, http.MethodPost, base+"/receive", map[string]any{"lines": []map[string]any{{"sku": "NUT", "quantity": 6}}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RECEIVED", decode[apptrade.PurchaseOrderResponse](t, env).Status)

	_, env = f.do(t, http.MethodGet, "/api/v1/items/NUT", nil)
	item = decode[appinv.StockItemResponse](t, env)
	assert.Equal(t, int64(10), item.QuantityOnHand)
	assert.Equal(t, int64(0), item.QuantityOnOrder)
}

func TestPurchaseOrderHandler_CancelPlaced(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "WASHER", 1)

	w, env := f.do(t, http.MethodPost, "/api/v1/purchase-orders", map[string]any{
		"lines": []map[string]any{{"sku": "WASHER", "quantity": 8}},
	}, middleware.IdempotencyKeyHeader, "po-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[apptrade.PurchaseOrderResponse](t, env)
	base := "/api/v1/purchase-orders/" + order.ID.String()

	w, _ = f.do(t, http.MethodPost, base+"/place", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, env = f.do(t, http.MethodGet, "/api/v1/items/WASHER", nil)
	assert.Equal(t, int64(8), decode[appinv.StockItemResponse](t, env).QuantityOnOrder)

	w, env = f.do(t, http.MethodPost, base+"/cancel", map[string]any{"reason": "supplier out of stock"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cancelled := decode[apptrade.PurchaseOrderResponse](t, env)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	assert.Equal(t, "supplier out of stock", cancelled.CancelReason)

	_, env = f.do(t, http.MethodGet, "/api/v1/items/WASHER", nil)
	item := decode[appinv.StockItemResponse](t, env)
	assert.Equal(t, int64(1), item.QuantityOnHand)
	assert.Equal(t, int64(0), item.QuantityOnOrder)
}

func TestReorderHandler(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "LOW", 2)
	f.register(t, "FULL", 50)

	w, env := f.do(t, http.MethodGet, "/api/v1/reorder/suggestions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"LOW"`)
	assert.NotContains(t, string(env.Data), `"FULL"`)

	w, _ = f.do(t, http.MethodPut, "/api/v1/reorder/settings", map[string]any{"velocity_window_days": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArchiveHandler_Export(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "ARC", 3)
	now := time.Now().UTC()

	w, env := f.do(t, http.MethodPost, "/api/v1/ledger/archives", map[string]any{
		"from": now.Add(-time.Hour), "to": now.Add(time.Hour), "format": "xlsx",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[handler.ExportLedgerResponse](t, env)
	assert.Equal(t, "xlsx", resp.Format)
	assert.Contains(t, resp.Key, "exports/"+f.tc.TenantID.String()+"/")
	assert.Equal(t, "memory://archive/"+resp.Key, resp.DownloadURL)
	assert.Contains(t, f.archive.Keys(), resp.Key)

	w, env = f.do(t, http.MethodPost, "/api/v1/ledger/archives", map[string]any{
		"from": now, "to": now.Add(-time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, shared.CodeInvalidInput, env.Error.Code)
}

func TestHandlers_MissingTenant(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), shared.CodeMissingTenantContext)
}
