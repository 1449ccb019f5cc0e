package trade

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPurchaseOrderRepository is a mock implementation of PurchaseOrderRepository
type MockPurchaseOrderRepository struct {
	mock.Mock
}

func (m *MockPurchaseOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*trade.PurchaseOrder, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*trade.PurchaseOrder, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*trade.PurchaseOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) ([]trade.PurchaseOrder, error) {
	args := m.Called(ctx, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]trade.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]trade.PurchaseOrder, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]trade.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPurchaseOrderRepository) Create(ctx context.Context, order *trade.PurchaseOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockPurchaseOrderRepository) Save(ctx context.Context, order *trade.PurchaseOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func newTestPurchaseOrder(t *testing.T, tenantID uuid.UUID) *trade.PurchaseOrder {
	t.Helper()
	order, err := trade.NewPurchaseOrder(tenantID, uuid.New(), "PO-TEST-0001", nil)
	require.NoError(t, err)
	_, err = order.AddLine(uuid.New(), "SKU-1", 4, decimal.NewFromFloat(2.5))
	require.NoError(t, err)
	return order
}

func TestPurchaseOrderService_GetByID(t *testing.T) {
	ctx := context.Background()
	tc := shared.MustTenantContext(uuid.New(), uuid.New())

	t.Run("found", func(t *testing.T) {
		repo := new(MockPurchaseOrderRepository)
		service := NewPurchaseOrderService(nil, nil, repo)
		order := newTestPurchaseOrder(t, tc.TenantID)
		repo.On("FindByIDForTenant", ctx, tc.TenantID, order.ID).Return(order, nil)

		resp, err := service.GetByID(ctx, tc, order.ID)
		require.NoError(t, err)
		assert.Equal(t, "PO-TEST-0001", resp.PONumber)
		assert.Equal(t, int64(4), resp.Lines[0].Remaining)
		assert.True(t, decimal.NewFromInt(10).Equal(resp.TotalAmount))
		repo.AssertNotCalled(t, "FindByIDAnyTenant", mock.Anything, mock.Anything)
	})

	t.Run("owned by another tenant", func(t *testing.T) {
		repo := new(MockPurchaseOrderRepository)
		service := NewPurchaseOrderService(nil, nil, repo)
		order := newTestPurchaseOrder(t, uuid.New())
		repo.On("FindByIDForTenant", ctx, tc.TenantID, order.ID).Return(nil, shared.ErrNotFound)
		repo.On("FindByIDAnyTenant", ctx, order.ID).Return(order, nil)

		_, err := service.GetByID(ctx, tc, order.ID)
		assert.ErrorIs(t, err, shared.ErrTenantMismatch)
	})

	t.Run("missing", func(t *testing.T) {
		repo := new(MockPurchaseOrderRepository)
		service := NewPurchaseOrderService(nil, nil, repo)
		id := uuid.New()
		repo.On("FindByIDForTenant", ctx, tc.TenantID, id).Return(nil, shared.ErrNotFound)
		repo.On("FindByIDAnyTenant", ctx, id).Return(nil, shared.ErrNotFound)

		_, err := service.GetByID(ctx, tc, id)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := new(MockPurchaseOrderRepository)
		service := NewPurchaseOrderService(nil, nil, repo)
		id := uuid.New()
		repo.On("FindByIDForTenant", ctx, tc.TenantID, id).Return(nil, errors.New("connection reset"))

		_, err := service.GetByID(ctx, tc, id)
		assert.EqualError(t, err, "connection reset")
	})
}

func TestPurchaseOrderService_List(t *testing.T) {
	ctx := context.Background()
	tc := shared.MustTenantContext(uuid.New(), uuid.New())
	supplierID := uuid.New()

	repo := new(MockPurchaseOrderRepository)
	service := NewPurchaseOrderService(nil, nil, repo)
	order := newTestPurchaseOrder(t, tc.TenantID)

	expected := shared.Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
		Filters: map[string]any{
			"status":      "ORDERED",
			"supplier_id": supplierID,
		},
	}
	repo.On("FindAllForTenant", ctx, tc.TenantID, expected).Return([]trade.PurchaseOrder{*order}, nil)
	repo.On("CountForTenant", ctx, tc.TenantID, expected).Return(int64(1), nil)

	orders, total, err := service.List(ctx, tc, PurchaseOrderListFilter{Status: "ORDERED", SupplierID: &supplierID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
	repo.AssertExpectations(t)

	_, _, err = service.List(ctx, nil, PurchaseOrderListFilter{})
	assert.ErrorIs(t, err, shared.ErrMissingTenantContext)
}
