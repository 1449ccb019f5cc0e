package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/inventory"
)

// StockItemResponse represents a stock item in API responses
type StockItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	QuantityOnHand    int64           `json:"quantity_on_hand"`
	QuantityOnOrder   int64           `json:"quantity_on_order"`
	InventoryPosition int64           `json:"inventory_position"`
	ReorderPoint      int64           `json:"reorder_point"`
	ReorderQuantity   int64           `json:"reorder_quantity"`
	LeadTimeDays      int             `json:"lead_time_days"`
	SupplierID        *uuid.UUID      `json:"supplier_id,omitempty"`
	Cost              decimal.Decimal `json:"cost"`
	LandedCost        decimal.Decimal `json:"landed_cost"`
	StockValue        decimal.Decimal `json:"stock_value"`
	BelowReorderPoint bool            `json:"below_reorder_point"`
	LastSoldAt        *time.Time      `json:"last_sold_at,omitempty"`
	RetiredAt         *time.Time      `json:"retired_at,omitempty"`
	LedgerSequence    int64           `json:"ledger_sequence"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// LedgerEntryResponse represents a ledger entry in API responses
type LedgerEntryResponse struct {
	ID                uuid.UUID  `json:"id"`
	StockItemID       uuid.UUID  `json:"stock_item_id"`
	SKU               string     `json:"sku"`
	Sequence          int64      `json:"sequence"`
	ChangeType        string     `json:"change_type"`
	QuantityChange    int64      `json:"quantity_change"`
	ResultingQuantity int64      `json:"resulting_quantity"`
	RelatedID         *uuid.UUID `json:"related_id,omitempty"`
	ActorID           uuid.UUID  `json:"actor_id"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// RegisterItemRequest registers a new SKU with its initial count
type RegisterItemRequest struct {
	SKU             string          `json:"sku" binding:"required,sku"`
	Name            string          `json:"name" binding:"max=255"`
	InitialQuantity int64           `json:"initial_quantity" binding:"min=0"`
	Cost            decimal.Decimal `json:"cost"`
	LandedCost      decimal.Decimal `json:"landed_cost"`
	ReorderPoint    int64           `json:"reorder_point" binding:"min=0"`
	ReorderQuantity int64           `json:"reorder_quantity" binding:"min=0"`
	LeadTimeDays    int             `json:"lead_time_days" binding:"min=0"`
	SupplierID      *uuid.UUID      `json:"supplier_id"`
	Notes           string          `json:"notes" binding:"max=500"`
}

// AppendRequest is the generic ledger append command
type AppendRequest struct {
	SKU        string     `json:"sku" binding:"required,sku"`
	ChangeType string     `json:"change_type" binding:"required"`
	Delta      int64      `json:"delta" binding:"required"`
	RelatedID  *uuid.UUID `json:"related_id"`
	Notes      string     `json:"notes" binding:"max=500"`
}

// AdjustRequest corrects on-hand by a signed delta
type AdjustRequest struct {
	SKU   string `json:"sku" binding:"required,sku"`
	Delta int64  `json:"delta" binding:"required"`
	Notes string `json:"notes" binding:"required,min=1,max=500"`
}

// SetCountRequest records a physical count; the ledger receives the difference
type SetCountRequest struct {
	SKU     string `json:"sku" binding:"required,sku"`
	Counted int64  `json:"counted" binding:"min=0"`
	Notes   string `json:"notes" binding:"max=500"`
}

// UnchangedCountResponse answers a count that already matches on-hand
type UnchangedCountResponse struct {
	SKU            string `json:"sku"`
	QuantityOnHand int64  `json:"quantity_on_hand"`
	Changed        bool   `json:"changed"`
}

// NewUnchangedCountResponse reports that req wrote no ledger entry
func NewUnchangedCountResponse(req SetCountRequest) UnchangedCountResponse {
	return UnchangedCountResponse{SKU: mustSKU(req.SKU), QuantityOnHand: req.Counted}
}

// RecordReturnRequest puts returned units back on hand
type RecordReturnRequest struct {
	SKU          string     `json:"sku" binding:"required,sku"`
	Quantity     int64      `json:"quantity" binding:"required,gt=0"`
	SalesOrderID *uuid.UUID `json:"sales_order_id"`
	Notes        string     `json:"notes" binding:"max=500"`
}

// BatchRow is one row of a bulk stock import
type BatchRow struct {
	SKU        string `json:"sku" binding:"required,sku"`
	Delta      int64  `json:"delta" binding:"required"`
	ChangeType string `json:"change_type"`
	Notes      string `json:"notes" binding:"max=500"`
}

// ApplyBatchRequest applies many rows in one transaction
type ApplyBatchRequest struct {
	Rows []BatchRow `json:"rows" binding:"required,min=1,max=1000,dive"`
}

// ApplyBatchResponse lists the entries a batch produced, in row order
type ApplyBatchResponse struct {
	Entries []LedgerEntryResponse `json:"entries"`
}

// UpdateReorderParametersRequest changes an item's replenishment settings
type UpdateReorderParametersRequest struct {
	ReorderPoint    int64      `json:"reorder_point" binding:"min=0"`
	ReorderQuantity int64      `json:"reorder_quantity" binding:"min=0"`
	LeadTimeDays    int        `json:"lead_time_days" binding:"min=0"`
	SupplierID      *uuid.UUID `json:"supplier_id"`
}

// StockItemListFilter represents filter options for the stock item list
type StockItemListFilter struct {
	Search            string     `form:"search"`
	SupplierID        *uuid.UUID `form:"supplier_id"`
	BelowReorderPoint bool       `form:"below_reorder_point"`
	IncludeRetired    bool       `form:"include_retired"`
	Page              int        `form:"page" binding:"omitempty,min=1"`
	PageSize          int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy           string     `form:"order_by"`
	OrderDir          string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// HistoryFilter represents filter options for an item's ledger history
type HistoryFilter struct {
	ChangeType string     `form:"change_type"`
	From       *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// TenantReconciliation summarises a full-tenant replay check
type TenantReconciliation struct {
	TenantID   uuid.UUID                        `json:"tenant_id"`
	Items      int                              `json:"items"`
	Balanced   int                              `json:"balanced"`
	Unbalanced []inventory.ReconciliationReport `json:"unbalanced"`
	CheckedAt  time.Time                        `json:"checked_at"`
}

// ToStockItemResponse converts a domain StockItem to its response DTO
func ToStockItemResponse(item *inventory.StockItem) StockItemResponse {
	return StockItemResponse{
		ID:                item.ID,
		TenantID:          item.TenantID,
		SKU:               item.SKU,
		Name:              item.Name,
		QuantityOnHand:    item.QuantityOnHand(),
		QuantityOnOrder:   item.QuantityOnOrder(),
		InventoryPosition: item.InventoryPosition(),
		ReorderPoint:      item.ReorderPoint,
		ReorderQuantity:   item.ReorderQuantity,
		LeadTimeDays:      item.LeadTimeDays,
		SupplierID:        item.SupplierID,
		Cost:              item.Cost,
		LandedCost:        item.LandedCost,
		StockValue:        item.Cost.Mul(decimal.NewFromInt(item.QuantityOnHand())),
		BelowReorderPoint: item.InventoryPosition() <= item.ReorderPoint,
		LastSoldAt:        item.LastSoldAt,
		RetiredAt:         item.DeletedAt,
		LedgerSequence:    item.LedgerSequence(),
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
		Version:           item.Version,
	}
}

// ToStockItemResponses converts a slice of domain StockItems
func ToStockItemResponses(items []inventory.StockItem) []StockItemResponse {
	responses := make([]StockItemResponse, len(items))
	for i := range items {
		responses[i] = ToStockItemResponse(&items[i])
	}
	return responses
}

// ToLedgerEntryResponse converts a domain LedgerEntry to its response DTO
func ToLedgerEntryResponse(e *inventory.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:                e.ID,
		StockItemID:       e.StockItemID,
		SKU:               e.SKU,
		Sequence:          e.Sequence,
		ChangeType:        e.ChangeType.String(),
		QuantityChange:    e.QuantityChange,
		ResultingQuantity: e.ResultingQuantity,
		RelatedID:         e.RelatedID,
		ActorID:           e.ActorID,
		Notes:             e.Notes,
		CreatedAt:         e.CreatedAt,
	}
}

// ToLedgerEntryResponses converts a slice of domain LedgerEntries
func ToLedgerEntryResponses(entries []inventory.LedgerEntry) []LedgerEntryResponse {
	responses := make([]LedgerEntryResponse, len(entries))
	for i := range entries {
		responses[i] = ToLedgerEntryResponse(&entries[i])
	}
	return responses
}
