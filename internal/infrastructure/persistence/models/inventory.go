package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/inventory"
)

// StockItemModel is the persistence model for the StockItem aggregate root.
// The (tenant_id, sku) pair is unique and quantity_on_hand carries a
// non-negative check as a last line of defence.
type StockItemModel struct {
	AggregateModel
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_items_tenant_sku,priority:1"`
	CreatedBy       *uuid.UUID      `gorm:"type:uuid"`
	SKU             string          `gorm:"column:sku;type:varchar(64);not null;uniqueIndex:idx_stock_items_tenant_sku,priority:2"`
	Name            string          `gorm:"type:varchar(200);not null;default:''"`
	QuantityOnHand  int64           `gorm:"not null;default:0;check:chk_stock_items_on_hand,quantity_on_hand >= 0"`
	QuantityOnOrder int64           `gorm:"not null;default:0;check:chk_stock_items_on_order,quantity_on_order >= 0"`
	LedgerSequence  int64           `gorm:"not null;default:0"`
	ReorderPoint    int64           `gorm:"not null;default:0"`
	ReorderQuantity int64           `gorm:"not null;default:0"`
	LeadTimeDays    int             `gorm:"not null;default:0"`
	SupplierID      *uuid.UUID      `gorm:"type:uuid;index"`
	Cost            decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LandedCost      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastSoldAt      *time.Time      `gorm:"column:last_sold_at"`
	DeletedAt       *time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (StockItemModel) TableName() string {
	return "stock_items"
}

// ToDomain converts the persistence model to a domain StockItem
func (m *StockItemModel) ToDomain() *inventory.StockItem {
	return inventory.RestoreStockItem(inventory.StockItem{
		TenantAggregateRoot: tenantAggregateRoot(m.AggregateModel, m.TenantID, m.CreatedBy),
		SKU:                 m.SKU,
		Name:                m.Name,
		ReorderPoint:        m.ReorderPoint,
		ReorderQuantity:     m.ReorderQuantity,
		LeadTimeDays:        m.LeadTimeDays,
		SupplierID:          m.SupplierID,
		Cost:                m.Cost,
		LandedCost:          m.LandedCost,
		LastSoldAt:          m.LastSoldAt,
		DeletedAt:           m.DeletedAt,
	}, inventory.StockItemState{
		QuantityOnHand:  m.QuantityOnHand,
		QuantityOnOrder: m.QuantityOnOrder,
		LedgerSequence:  m.LedgerSequence,
	})
}

// FromDomain populates the persistence model from a domain StockItem
func (m *StockItemModel) FromDomain(s *inventory.StockItem) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	state := s.State()
	m.TenantID = s.TenantID
	m.CreatedBy = s.CreatedBy
	m.SKU = s.SKU
	m.Name = s.Name
	m.QuantityOnHand = state.QuantityOnHand
	m.QuantityOnOrder = state.QuantityOnOrder
	m.LedgerSequence = state.LedgerSequence
	m.ReorderPoint = s.ReorderPoint
	m.ReorderQuantity = s.ReorderQuantity
	m.LeadTimeDays = s.LeadTimeDays
	m.SupplierID = s.SupplierID
	m.Cost = s.Cost
	m.LandedCost = s.LandedCost
	m.LastSoldAt = s.LastSoldAt
	m.DeletedAt = s.DeletedAt
}

// StockItemModelFromDomain creates a persistence model from a domain StockItem
func StockItemModelFromDomain(s *inventory.StockItem) *StockItemModel {
	m := &StockItemModel{}
	m.FromDomain(s)
	return m
}

// LedgerEntryModel is the persistence model for the append-only ledger.
// (stock_item_id, sequence) is unique so replay order is total per item.
type LedgerEntryModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID  `gorm:"type:uuid;not null;index:idx_ledger_entries_tenant_created,priority:1"`
	StockItemID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_entries_item_seq,priority:1"`
	Sequence          int64      `gorm:"not null;uniqueIndex:idx_ledger_entries_item_seq,priority:2"`
	SKU               string     `gorm:"column:sku;type:varchar(64);not null"`
	ChangeType        string     `gorm:"type:varchar(32);not null;index"`
	QuantityChange    int64      `gorm:"not null"`
	ResultingQuantity int64      `gorm:"not null;check:chk_ledger_entries_resulting,resulting_quantity >= 0"`
	RelatedID         *uuid.UUID `gorm:"type:uuid;index"`
	ActorID           uuid.UUID  `gorm:"type:uuid;not null"`
	Notes             string     `gorm:"type:varchar(500);not null;default:''"`
	CreatedAt         time.Time  `gorm:"not null;index:idx_ledger_entries_tenant_created,priority:2"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry
func (m *LedgerEntryModel) ToDomain() *inventory.LedgerEntry {
	return &inventory.LedgerEntry{
		ID:                m.ID,
		TenantID:          m.TenantID,
		StockItemID:       m.StockItemID,
		SKU:               m.SKU,
		Sequence:          m.Sequence,
		ChangeType:        inventory.ChangeType(m.ChangeType),
		QuantityChange:    m.QuantityChange,
		ResultingQuantity: m.ResultingQuantity,
		RelatedID:         m.RelatedID,
		ActorID:           m.ActorID,
		Notes:             m.Notes,
		CreatedAt:         m.CreatedAt,
	}
}

// LedgerEntryModelFromDomain creates a persistence model from a domain LedgerEntry
func LedgerEntryModelFromDomain(e *inventory.LedgerEntry) *LedgerEntryModel {
	return &LedgerEntryModel{
		ID:                e.ID,
		TenantID:          e.TenantID,
		StockItemID:       e.StockItemID,
		Sequence:          e.Sequence,
		SKU:               e.SKU,
		ChangeType:        e.ChangeType.String(),
		QuantityChange:    e.QuantityChange,
		ResultingQuantity: e.ResultingQuantity,
		RelatedID:         e.RelatedID,
		ActorID:           e.ActorID,
		Notes:             e.Notes,
		CreatedAt:         e.CreatedAt,
	}
}
