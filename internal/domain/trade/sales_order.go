package trade

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// SalesOrder is a completed sale: a header plus immutable lines
type SalesOrder struct {
	shared.TenantAggregateRoot
	OrderNumber string
	CustomerID  *uuid.UUID
	TotalAmount decimal.Decimal
	Notes       string
	Lines       []SalesOrderLine
}

// SalesOrderLine records what was sold. CostAtTime is a snapshot of the
// stock item's cost when the sale locked it and is never recomputed.
type SalesOrderLine struct {
	ID           uuid.UUID
	SalesOrderID uuid.UUID
	TenantID     uuid.UUID
	StockItemID  uuid.UUID
	SKU          string
	Quantity     int64
	UnitPrice    decimal.Decimal
	CostAtTime   decimal.Decimal
	LineTotal    decimal.Decimal
	CreatedAt    time.Time
}

// Margin returns line revenue minus cost at the time of sale
func (l *SalesOrderLine) Margin() decimal.Decimal {
	return l.LineTotal.Sub(l.CostAtTime.Mul(decimal.NewFromInt(l.Quantity)))
}

// NewSalesOrder creates an empty sales order
func NewSalesOrder(tenantID, actorID uuid.UUID, orderNumber string, customerID *uuid.UUID) (*SalesOrder, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Order number cannot be empty")
	}
	return &SalesOrder{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, actorID),
		OrderNumber:         orderNumber,
		CustomerID:          customerID,
		TotalAmount:         decimal.Zero,
		Lines:               make([]SalesOrderLine, 0),
	}, nil
}

// GenerateOrderNumber builds an order number such as SO-20261018-3F2A9C
func GenerateOrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("SO-%s-%s", at.UTC().Format("20060102"), suffix)
}

// AddLine appends a line and updates the order total
func (o *SalesOrder) AddLine(stockItemID uuid.UUID, sku string, qty int64, unitPrice, costAtTime decimal.Decimal) (*SalesOrderLine, error) {
	if qty <= 0 {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidQuantity, "Quantity for %s must be positive", sku)
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "Unit price for %s cannot be negative", sku)
	}
	total := unitPrice.Mul(decimal.NewFromInt(qty))
	o.Lines = append(o.Lines, SalesOrderLine{
		ID:           uuid.New(),
		SalesOrderID: o.ID,
		TenantID:     o.TenantID,
		StockItemID:  stockItemID,
		SKU:          sku,
		Quantity:     qty,
		UnitPrice:    unitPrice,
		CostAtTime:   costAtTime,
		LineTotal:    total,
		CreatedAt:    o.CreatedAt,
	})
	o.TotalAmount = o.TotalAmount.Add(total)
	return &o.Lines[len(o.Lines)-1], nil
}

// QuantityOf returns the total quantity sold of sku
func (o *SalesOrder) QuantityOf(sku string) int64 {
	var qty int64
	for _, l := range o.Lines {
		if l.SKU == sku {
			qty += l.Quantity
		}
	}
	return qty
}

// TotalCost sums cost at time of sale across lines
func (o *SalesOrder) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.CostAtTime.Mul(decimal.NewFromInt(l.Quantity)))
	}
	return total
}
