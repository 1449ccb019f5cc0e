package inventory

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestItem(t *testing.T, qty int64) *StockItem {
	t.Helper()
	item, entry, err := NewStockItem(uuid.New(), uuid.New(), NewStockItemParams{
		SKU:             "X1",
		Name:            "Widget",
		InitialQuantity: qty,
		Cost:            decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	return item
}

func TestNewStockItem(t *testing.T) {
	t.Run("writes creation entry with initial count", func(t *testing.T) {
		tenantID, actorID := uuid.New(), uuid.New()
		item, entry, err := NewStockItem(tenantID, actorID, NewStockItemParams{SKU: "  A-1 ", InitialQuantity: 20})
		require.NoError(t, err)

		assert.Equal(t, "A-1", item.SKU)
		assert.Equal(t, int64(20), item.QuantityOnHand())
		assert.Equal(t, int64(0), item.QuantityOnOrder())
		assert.Equal(t, int64(1), item.LedgerSequence())
		assert.Equal(t, ChangeTypeCreation, entry.ChangeType)
		assert.Equal(t, int64(20), entry.QuantityChange)
		assert.Equal(t, int64(20), entry.ResultingQuantity)
		assert.Equal(t, int64(1), entry.Sequence)
		assert.Equal(t, tenantID, entry.TenantID)
		assert.Equal(t, actorID, entry.ActorID)
		assert.Equal(t, item.ID, entry.StockItemID)
	})

	t.Run("zero initial count is allowed", func(t *testing.T) {
		item, entry, err := NewStockItem(uuid.New(), uuid.New(), NewStockItemParams{SKU: "B"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), item.QuantityOnHand())
		assert.Equal(t, int64(0), entry.QuantityChange)
	})

	t.Run("rejects negative initial count", func(t *testing.T) {
		_, _, err := NewStockItem(uuid.New(), uuid.New(), NewStockItemParams{SKU: "B", InitialQuantity: -1})
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
	})

	t.Run("rejects empty SKU", func(t *testing.T) {
		_, _, err := NewStockItem(uuid.New(), uuid.New(), NewStockItemParams{SKU: "   "})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects negative reorder point", func(t *testing.T) {
		_, _, err := NewStockItem(uuid.New(), uuid.New(), NewStockItemParams{SKU: "C", ReorderPoint: -5})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestNormalizeSKU(t *testing.T) {
	for in, want := range map[string]string{
		"A-1":        "A-1",
		"a-1":        "A-1",
		"  bolt-9 ": "BOLT-9",
	} {
		got, err := NormalizeSKU(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, err := NormalizeSKU(" \t")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = NormalizeSKU(strings.Repeat("x", MaxSKULength+1))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	item, _, err := NewStockItem(uuid.New(), uuid.New(), NewStockItemParams{SKU: "widget-7"})
	require.NoError(t, err)
	assert.Equal(t, "WIDGET-7", item.SKU)
}

func TestStockItem_ApplyRejectsOversizedDelta(t *testing.T) {
	item := newTestItem(t, 5)
	for _, delta := range []int64{math.MinInt64, -MaxQuantityChange - 1, MaxQuantityChange + 1, math.MaxInt64} {
		_, err := item.Apply(ChangeTypeManualAdjustment, delta, nil, uuid.New(), "")
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity, "delta %d", delta)
	}
	assert.Equal(t, int64(5), item.QuantityOnHand())
	assert.Equal(t, int64(1), item.LedgerSequence())

	_, err := item.Apply(ChangeTypeManualAdjustment, MaxQuantityChange, nil, uuid.New(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(MaxQuantityChange+5), item.QuantityOnHand())

	_, _, err = NewStockItem(uuid.New(), uuid.New(), NewStockItemParams{SKU: "BIG", InitialQuantity: MaxQuantityChange + 1})
	assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
}

func TestStockItem_Apply(t *testing.T) {
	t.Run("sale decreases on hand and stamps last sold", func(t *testing.T) {
		item := newTestItem(t, 20)
		orderID := uuid.New()

		entry, err := item.Apply(ChangeTypeSale, -3, &orderID, uuid.New(), "")
		require.NoError(t, err)

		assert.Equal(t, int64(17), item.QuantityOnHand())
		assert.Equal(t, int64(-3), entry.QuantityChange)
		assert.Equal(t, int64(17), entry.ResultingQuantity)
		assert.Equal(t, int64(20), entry.QuantityBefore())
		assert.Equal(t, int64(2), entry.Sequence)
		assert.Equal(t, &orderID, entry.RelatedID)
		assert.NotNil(t, item.LastSoldAt)
	})

	t.Run("negative stock leaves item unchanged", func(t *testing.T) {
		item := newTestItem(t, 5)

		entry, err := item.Apply(ChangeTypeSale, -6, nil, uuid.New(), "")
		assert.Nil(t, entry)
		assert.ErrorIs(t, err, shared.ErrNegativeStock)
		assert.Equal(t, int64(5), item.QuantityOnHand())
		assert.Equal(t, int64(1), item.LedgerSequence())
		assert.Nil(t, item.LastSoldAt)
	})

	t.Run("selling exactly the on-hand quantity reaches zero", func(t *testing.T) {
		item := newTestItem(t, 5)
		_, err := item.Apply(ChangeTypeSale, -5, nil, uuid.New(), "")
		require.NoError(t, err)
		assert.Equal(t, int64(0), item.QuantityOnHand())
	})

	t.Run("zero delta is invalid", func(t *testing.T) {
		item := newTestItem(t, 5)
		_, err := item.Apply(ChangeTypeManualAdjustment, 0, nil, uuid.New(), "")
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
	})

	t.Run("direction must match change type", func(t *testing.T) {
		item := newTestItem(t, 5)
		_, err := item.Apply(ChangeTypeSale, 2, nil, uuid.New(), "")
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
		_, err = item.Apply(ChangeTypeReturn, -2, nil, uuid.New(), "")
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
		_, err = item.Apply(ChangeTypePurchaseReceipt, -2, nil, uuid.New(), "")
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
	})

	t.Run("creation cannot be appended", func(t *testing.T) {
		item := newTestItem(t, 5)
		_, err := item.Apply(ChangeTypeCreation, 2, nil, uuid.New(), "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("manual adjustment works both ways", func(t *testing.T) {
		item := newTestItem(t, 5)
		_, err := item.Apply(ChangeTypeManualAdjustment, -2, nil, uuid.New(), "damaged")
		require.NoError(t, err)
		_, err = item.Apply(ChangeTypeManualAdjustment, 4, nil, uuid.New(), "found")
		require.NoError(t, err)
		assert.Equal(t, int64(7), item.QuantityOnHand())
	})

	t.Run("retired item rejects changes", func(t *testing.T) {
		item := newTestItem(t, 5)
		require.NoError(t, item.Retire())
		_, err := item.Apply(ChangeTypeReturn, 1, nil, uuid.New(), "")
		assert.ErrorIs(t, err, shared.ErrItemRetired)
	})
}

func TestStockItem_Receive(t *testing.T) {
	t.Run("moves on-order to on-hand and averages cost", func(t *testing.T) {
		item := newTestItem(t, 10)
		require.NoError(t, item.AdjustOnOrder(50))

		unitCost := decimal.NewFromInt(20)
		entry, err := item.Receive(10, &unitCost, uuid.New(), uuid.New(), "")
		require.NoError(t, err)

		assert.Equal(t, ChangeTypePurchaseReceipt, entry.ChangeType)
		assert.Equal(t, int64(20), item.QuantityOnHand())
		assert.Equal(t, int64(40), item.QuantityOnOrder())
		assert.True(t, decimal.NewFromInt(15).Equal(item.Cost), "cost = %s", item.Cost)
	})

	t.Run("cannot receive more than on order", func(t *testing.T) {
		item := newTestItem(t, 0)
		require.NoError(t, item.AdjustOnOrder(3))
		_, err := item.Receive(4, nil, uuid.New(), uuid.New(), "")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Equal(t, int64(0), item.QuantityOnHand())
		assert.Equal(t, int64(3), item.QuantityOnOrder())
	})
}

func TestStockItem_AdjustOnOrder(t *testing.T) {
	item := newTestItem(t, 0)
	require.NoError(t, item.AdjustOnOrder(10))
	require.NoError(t, item.AdjustOnOrder(-4))
	assert.Equal(t, int64(6), item.QuantityOnOrder())

	err := item.AdjustOnOrder(-7)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	assert.Equal(t, int64(6), item.QuantityOnOrder())
}

func TestStockItem_Retire(t *testing.T) {
	item := newTestItem(t, 1)
	require.NoError(t, item.Retire())
	assert.True(t, item.IsRetired())
	assert.ErrorIs(t, item.Retire(), shared.ErrInvalidState)
}

func TestWeightedAverageCost(t *testing.T) {
	tests := []struct {
		name     string
		onHand   int64
		cost     string
		qty      int64
		unitCost string
		expected string
	}{
		{"empty stock takes receipt cost", 0, "10", 5, "12", "12"},
		{"equal quantities average", 10, "10", 10, "20", "15"},
		{"weighted toward larger lot", 30, "10", 10, "20", "12.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedAverageCost(tt.onHand, decimal.RequireFromString(tt.cost), tt.qty, decimal.RequireFromString(tt.unitCost))
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got), "got %s", got)
		})
	}
}

func TestRestoreStockItem(t *testing.T) {
	item := newTestItem(t, 7)
	require.NoError(t, item.AdjustOnOrder(3))

	restored := RestoreStockItem(StockItem{TenantAggregateRoot: item.TenantAggregateRoot, SKU: item.SKU}, item.State())
	assert.Equal(t, int64(7), restored.QuantityOnHand())
	assert.Equal(t, int64(3), restored.QuantityOnOrder())
	assert.Equal(t, int64(1), restored.LedgerSequence())
}
