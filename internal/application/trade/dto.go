package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/trade"
)

// ==================== Sale DTOs ====================

// ProcessSaleRequest represents a sale of one or more SKUs
type ProcessSaleRequest struct {
	CustomerID     *uuid.UUID      `json:"customer_id"`
	Lines          []SaleLineInput `json:"lines" binding:"required,min=1,max=500,dive"`
	Notes          string          `json:"notes" binding:"max=500"`
	IdempotencyKey string          `json:"-"`
}

// SaleLineInput represents one sold SKU
type SaleLineInput struct {
	SKU       string          `json:"sku" binding:"required,sku"`
	Quantity  int64           `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SaleResponse represents a completed sale
type SaleResponse struct {
	ID          uuid.UUID          `json:"id"`
	TenantID    uuid.UUID          `json:"tenant_id"`
	OrderNumber string             `json:"order_number"`
	CustomerID  *uuid.UUID         `json:"customer_id,omitempty"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	TotalCost   decimal.Decimal    `json:"total_cost"`
	Notes       string             `json:"notes,omitempty"`
	Lines       []SaleLineResponse `json:"lines"`
	CreatedBy   *uuid.UUID         `json:"created_by,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// SaleLineResponse represents a sold line with its cost snapshot
type SaleLineResponse struct {
	ID          uuid.UUID       `json:"id"`
	StockItemID uuid.UUID       `json:"stock_item_id"`
	SKU         string          `json:"sku"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CostAtTime  decimal.Decimal `json:"cost_at_time"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Margin      decimal.Decimal `json:"margin"`
}

// SaleListFilter represents filter options for the sales list
type SaleListFilter struct {
	Search     string     `form:"search"`
	CustomerID *uuid.UUID `form:"customer_id"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToSaleResponse converts a domain SalesOrder to its response DTO
func ToSaleResponse(o *trade.SalesOrder) SaleResponse {
	lines := make([]SaleLineResponse, len(o.Lines))
	for i := range o.Lines {
		l := &o.Lines[i]
		lines[i] = SaleLineResponse{
			ID:          l.ID,
			StockItemID: l.StockItemID,
			SKU:         l.SKU,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			CostAtTime:  l.CostAtTime,
			LineTotal:   l.LineTotal,
			Margin:      l.Margin(),
		}
	}
	return SaleResponse{
		ID:          o.ID,
		TenantID:    o.TenantID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		TotalAmount: o.TotalAmount,
		TotalCost:   o.TotalCost(),
		Notes:       o.Notes,
		Lines:       lines,
		CreatedBy:   o.CreatedBy,
		CreatedAt:   o.CreatedAt,
	}
}

// ToSaleResponses converts a slice of domain SalesOrders
func ToSaleResponses(orders []trade.SalesOrder) []SaleResponse {
	responses := make([]SaleResponse, len(orders))
	for i := range orders {
		responses[i] = ToSaleResponse(&orders[i])
	}
	return responses
}

// ==================== Purchase Order DTOs ====================

// CreatePurchaseOrderRequest represents a request to create a draft purchase order
type CreatePurchaseOrderRequest struct {
	SupplierID          *uuid.UUID               `json:"supplier_id"`
	ExpectedArrivalDate *time.Time               `json:"expected_arrival_date"`
	Notes               string                   `json:"notes" binding:"max=500"`
	Lines               []PurchaseOrderLineInput `json:"lines" binding:"max=500,dive"`
	IdempotencyKey      string                   `json:"-"`
}

// PurchaseOrderLineInput represents a line in a create or add-line request.
// A nil unit cost takes the stock item's current cost.
type PurchaseOrderLineInput struct {
	SKU      string           `json:"sku" binding:"required,sku"`
	Quantity int64            `json:"quantity" binding:"required,gt=0"`
	UnitCost *decimal.Decimal `json:"unit_cost"`
}

// UpdateLineQuantityRequest resizes a purchase order line
type UpdateLineQuantityRequest struct {
	Quantity int64 `json:"quantity" binding:"required,gt=0"`
}

// ReceiveRequest records goods received against a purchase order
type ReceiveRequest struct {
	Lines []ReceiveLineInput `json:"lines" binding:"required,min=1,max=500,dive"`
	Notes string             `json:"notes" binding:"max=500"`
}

// ReceiveLineInput represents one received SKU. A nil unit cost uses the
// purchase order line's cost.
type ReceiveLineInput struct {
	SKU      string           `json:"sku" binding:"required,sku"`
	Quantity int64            `json:"quantity" binding:"required"`
	UnitCost *decimal.Decimal `json:"unit_cost"`
}

// CancelPurchaseOrderRequest represents a cancellation
type CancelPurchaseOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// SuggestionLineInput represents one accepted reorder suggestion. A nil
// supplier falls back to the stock item's preferred supplier.
type SuggestionLineInput struct {
	SKU        string           `json:"sku" binding:"required,sku"`
	Quantity   int64            `json:"quantity" binding:"required,gt=0"`
	UnitCost   *decimal.Decimal `json:"unit_cost"`
	SupplierID *uuid.UUID       `json:"supplier_id"`
}

// CreateFromSuggestionsRequest turns accepted suggestions into draft purchase orders
type CreateFromSuggestionsRequest struct {
	Lines          []SuggestionLineInput `json:"lines" binding:"required,min=1,max=1000,dive"`
	IdempotencyKey string                `json:"-"`
}

// CreateFromSuggestionsResponse lists the purchase orders created, one per supplier
type CreateFromSuggestionsResponse struct {
	Orders   []PurchaseOrderResponse `json:"orders"`
	Replayed bool                    `json:"replayed"`
}

// PurchaseOrderResponse represents a purchase order in API responses
type PurchaseOrderResponse struct {
	ID                  uuid.UUID                   `json:"id"`
	TenantID            uuid.UUID                   `json:"tenant_id"`
	PONumber            string                      `json:"po_number"`
	SupplierID          *uuid.UUID                  `json:"supplier_id,omitempty"`
	Status              string                      `json:"status"`
	IdempotencyKey      *string                     `json:"idempotency_key,omitempty"`
	ExpectedArrivalDate *time.Time                  `json:"expected_arrival_date,omitempty"`
	Notes               string                      `json:"notes,omitempty"`
	Lines               []PurchaseOrderLineResponse `json:"lines"`
	TotalOrdered        int64                       `json:"total_ordered"`
	TotalReceived       int64                       `json:"total_received"`
	TotalAmount         decimal.Decimal             `json:"total_amount"`
	OrderedAt           *time.Time                  `json:"ordered_at,omitempty"`
	ReceivedAt          *time.Time                  `json:"received_at,omitempty"`
	CancelledAt         *time.Time                  `json:"cancelled_at,omitempty"`
	CancelReason        string                      `json:"cancel_reason,omitempty"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
	Version             int                         `json:"version"`
}

// PurchaseOrderLineResponse represents a purchase order line
type PurchaseOrderLineResponse struct {
	ID               uuid.UUID       `json:"id"`
	StockItemID      uuid.UUID       `json:"stock_item_id"`
	SKU              string          `json:"sku"`
	QuantityOrdered  int64           `json:"quantity_ordered"`
	QuantityReceived int64           `json:"quantity_received"`
	Remaining        int64           `json:"remaining"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	Amount           decimal.Decimal `json:"amount"`
}

// PurchaseOrderListFilter represents filter options for the purchase order list
type PurchaseOrderListFilter struct {
	Search     string     `form:"search"`
	Status     string     `form:"status" binding:"omitempty,oneof=DRAFT ORDERED PARTIAL RECEIVED CANCELLED"`
	SupplierID *uuid.UUID `form:"supplier_id"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToPurchaseOrderResponse converts a domain PurchaseOrder to its response DTO
func ToPurchaseOrderResponse(o *trade.PurchaseOrder) PurchaseOrderResponse {
	lines := make([]PurchaseOrderLineResponse, len(o.Lines))
	for i := range o.Lines {
		l := &o.Lines[i]
		lines[i] = PurchaseOrderLineResponse{
			ID:               l.ID,
			StockItemID:      l.StockItemID,
			SKU:              l.SKU,
			QuantityOrdered:  l.QuantityOrdered,
			QuantityReceived: l.QuantityReceived,
			Remaining:        l.Remaining(),
			UnitCost:         l.UnitCost,
			Amount:           l.Amount(),
		}
	}
	return PurchaseOrderResponse{
		ID:                  o.ID,
		TenantID:            o.TenantID,
		PONumber:            o.PONumber,
		SupplierID:          o.SupplierID,
		Status:              o.Status.String(),
		IdempotencyKey:      o.IdempotencyKey,
		ExpectedArrivalDate: o.ExpectedArrivalDate,
		Notes:               o.Notes,
		Lines:               lines,
		TotalOrdered:        o.TotalOrdered(),
		TotalReceived:       o.TotalReceived(),
		TotalAmount:         o.TotalAmount(),
		OrderedAt:           o.OrderedAt,
		ReceivedAt:          o.ReceivedAt,
		CancelledAt:         o.CancelledAt,
		CancelReason:        o.CancelReason,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
		Version:             o.Version,
	}
}

// ToPurchaseOrderResponses converts a slice of domain PurchaseOrders
func ToPurchaseOrderResponses(orders []trade.PurchaseOrder) []PurchaseOrderResponse {
	responses := make([]PurchaseOrderResponse, len(orders))
	for i := range orders {
		responses[i] = ToPurchaseOrderResponse(&orders[i])
	}
	return responses
}
