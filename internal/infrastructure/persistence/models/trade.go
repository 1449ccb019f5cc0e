package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/trade"
)

// SalesOrderModel is the persistence model for the SalesOrder aggregate root
type SalesOrderModel struct {
	AggregateModel
	TenantID    uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_sales_orders_tenant_number,priority:1"`
	CreatedBy   *uuid.UUID            `gorm:"type:uuid"`
	OrderNumber string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_sales_orders_tenant_number,priority:2"`
	CustomerID  *uuid.UUID            `gorm:"type:uuid;index"`
	TotalAmount decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	Notes       string                `gorm:"type:varchar(500);not null;default:''"`
	Lines       []SalesOrderLineModel `gorm:"foreignKey:SalesOrderID;references:ID"`
}

// TableName returns the table name for GORM
func (SalesOrderModel) TableName() string {
	return "sales_orders"
}

// ToDomain converts the persistence model to a domain SalesOrder
func (m *SalesOrderModel) ToDomain() *trade.SalesOrder {
	order := &trade.SalesOrder{
		TenantAggregateRoot: tenantAggregateRoot(m.AggregateModel, m.TenantID, m.CreatedBy),
		OrderNumber:         m.OrderNumber,
		CustomerID:          m.CustomerID,
		TotalAmount:         m.TotalAmount,
		Notes:               m.Notes,
		Lines:               make([]trade.SalesOrderLine, len(m.Lines)),
	}
	for i := range m.Lines {
		order.Lines[i] = m.Lines[i].ToDomain()
	}
	return order
}

// SalesOrderModelFromDomain creates a persistence model from a domain SalesOrder
func SalesOrderModelFromDomain(o *trade.SalesOrder) *SalesOrderModel {
	m := &SalesOrderModel{
		TenantID:    o.TenantID,
		CreatedBy:   o.CreatedBy,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		TotalAmount: o.TotalAmount,
		Notes:       o.Notes,
		Lines:       make([]SalesOrderLineModel, len(o.Lines)),
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	for i := range o.Lines {
		m.Lines[i] = SalesOrderLineModelFromDomain(&o.Lines[i])
	}
	return m
}

// SalesOrderLineModel is the persistence model for a sold line
type SalesOrderLineModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	SalesOrderID uuid.UUID       `gorm:"type:uuid;not null;index"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	StockItemID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	SKU          string          `gorm:"column:sku;type:varchar(64);not null"`
	Quantity     int64           `gorm:"not null;check:chk_sales_order_lines_qty,quantity > 0"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CostAtTime   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SalesOrderLineModel) TableName() string {
	return "sales_order_lines"
}

// ToDomain converts the persistence model to a domain SalesOrderLine
func (m *SalesOrderLineModel) ToDomain() trade.SalesOrderLine {
	return trade.SalesOrderLine{
		ID:           m.ID,
		SalesOrderID: m.SalesOrderID,
		TenantID:     m.TenantID,
		StockItemID:  m.StockItemID,
		SKU:          m.SKU,
		Quantity:     m.Quantity,
		UnitPrice:    m.UnitPrice,
		CostAtTime:   m.CostAtTime,
		LineTotal:    m.LineTotal,
		CreatedAt:    m.CreatedAt,
	}
}

// SalesOrderLineModelFromDomain creates a persistence model from a domain SalesOrderLine
func SalesOrderLineModelFromDomain(l *trade.SalesOrderLine) SalesOrderLineModel {
	return SalesOrderLineModel{
		ID:           l.ID,
		SalesOrderID: l.SalesOrderID,
		TenantID:     l.TenantID,
		StockItemID:  l.StockItemID,
		SKU:          l.SKU,
		Quantity:     l.Quantity,
		UnitPrice:    l.UnitPrice,
		CostAtTime:   l.CostAtTime,
		LineTotal:    l.LineTotal,
		CreatedAt:    l.CreatedAt,
	}
}

// PurchaseOrderModel is the persistence model for the PurchaseOrder aggregate root
type PurchaseOrderModel struct {
	AggregateModel
	TenantID            uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_purchase_orders_tenant_number,priority:1;index:idx_purchase_orders_tenant_key,priority:1"`
	CreatedBy           *uuid.UUID               `gorm:"type:uuid"`
	PONumber            string                   `gorm:"column:po_number;type:varchar(50);not null;uniqueIndex:idx_purchase_orders_tenant_number,priority:2"`
	SupplierID          *uuid.UUID               `gorm:"type:uuid;index"`
	Status              string                   `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	IdempotencyKey      *string                  `gorm:"type:varchar(255);index:idx_purchase_orders_tenant_key,priority:2"`
	ExpectedArrivalDate *time.Time               `gorm:"type:date"`
	Notes               string                   `gorm:"type:varchar(500);not null;default:''"`
	OrderedAt           *time.Time               `gorm:"column:ordered_at"`
	ReceivedAt          *time.Time               `gorm:"column:received_at"`
	CancelledAt         *time.Time               `gorm:"column:cancelled_at"`
	CancelReason        string                   `gorm:"type:varchar(500);not null;default:''"`
	Lines               []PurchaseOrderLineModel `gorm:"foreignKey:PurchaseOrderID;references:ID"`
}

// TableName returns the table name for GORM
func (PurchaseOrderModel) TableName() string {
	return "purchase_orders"
}

// ToDomain converts the persistence model to a domain PurchaseOrder
func (m *PurchaseOrderModel) ToDomain() *trade.PurchaseOrder {
	order := &trade.PurchaseOrder{
		TenantAggregateRoot: tenantAggregateRoot(m.AggregateModel, m.TenantID, m.CreatedBy),
		PONumber:            m.PONumber,
		SupplierID:          m.SupplierID,
		Status:              trade.PurchaseOrderStatus(m.Status),
		IdempotencyKey:      m.IdempotencyKey,
		ExpectedArrivalDate: m.ExpectedArrivalDate,
		Notes:               m.Notes,
		Lines:               make([]trade.PurchaseOrderLine, len(m.Lines)),
		OrderedAt:           m.OrderedAt,
		ReceivedAt:          m.ReceivedAt,
		CancelledAt:         m.CancelledAt,
		CancelReason:        m.CancelReason,
	}
	for i := range m.Lines {
		order.Lines[i] = m.Lines[i].ToDomain()
	}
	return order
}

// PurchaseOrderModelFromDomain creates a persistence model from a domain PurchaseOrder
func PurchaseOrderModelFromDomain(o *trade.PurchaseOrder) *PurchaseOrderModel {
	m := &PurchaseOrderModel{
		TenantID:            o.TenantID,
		CreatedBy:           o.CreatedBy,
		PONumber:            o.PONumber,
		SupplierID:          o.SupplierID,
		Status:              o.Status.String(),
		IdempotencyKey:      o.IdempotencyKey,
		ExpectedArrivalDate: o.ExpectedArrivalDate,
		Notes:               o.Notes,
		OrderedAt:           o.OrderedAt,
		ReceivedAt:          o.ReceivedAt,
		CancelledAt:         o.CancelledAt,
		CancelReason:        o.CancelReason,
		Lines:               make([]PurchaseOrderLineModel, len(o.Lines)),
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	for i := range o.Lines {
		m.Lines[i] = PurchaseOrderLineModelFromDomain(&o.Lines[i])
	}
	return m
}

// PurchaseOrderLineModel is the persistence model for a purchase order line.
// A check keeps quantity_received within quantity_ordered.
type PurchaseOrderLineModel struct {
	BaseModel
	PurchaseOrderID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_purchase_order_lines_po_sku,priority:1"`
	TenantID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	StockItemID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	SKU              string          `gorm:"column:sku;type:varchar(64);not null;uniqueIndex:idx_purchase_order_lines_po_sku,priority:2"`
	QuantityOrdered  int64           `gorm:"not null;check:chk_po_lines_ordered,quantity_ordered > 0"`
	QuantityReceived int64           `gorm:"not null;default:0;check:chk_po_lines_received,quantity_received >= 0 AND quantity_received <= quantity_ordered"`
	UnitCost         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (PurchaseOrderLineModel) TableName() string {
	return "purchase_order_lines"
}

// ToDomain converts the persistence model to a domain PurchaseOrderLine
func (m *PurchaseOrderLineModel) ToDomain() trade.PurchaseOrderLine {
	return trade.PurchaseOrderLine{
		ID:               m.ID,
		PurchaseOrderID:  m.PurchaseOrderID,
		TenantID:         m.TenantID,
		StockItemID:      m.StockItemID,
		SKU:              m.SKU,
		QuantityOrdered:  m.QuantityOrdered,
		QuantityReceived: m.QuantityReceived,
		UnitCost:         m.UnitCost,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// PurchaseOrderLineModelFromDomain creates a persistence model from a domain PurchaseOrderLine
func PurchaseOrderLineModelFromDomain(l *trade.PurchaseOrderLine) PurchaseOrderLineModel {
	return PurchaseOrderLineModel{
		BaseModel: BaseModel{
			ID:        l.ID,
			CreatedAt: l.CreatedAt,
			UpdatedAt: l.UpdatedAt,
		},
		PurchaseOrderID:  l.PurchaseOrderID,
		TenantID:         l.TenantID,
		StockItemID:      l.StockItemID,
		SKU:              l.SKU,
		QuantityOrdered:  l.QuantityOrdered,
		QuantityReceived: l.QuantityReceived,
		UnitCost:         l.UnitCost,
	}
}
