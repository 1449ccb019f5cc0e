package trade

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// PurchaseOrderStatus represents the status of a purchase order
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft     PurchaseOrderStatus = "DRAFT"
	PurchaseOrderStatusOrdered   PurchaseOrderStatus = "ORDERED"
	PurchaseOrderStatusPartial   PurchaseOrderStatus = "PARTIAL"
	PurchaseOrderStatusReceived  PurchaseOrderStatus = "RECEIVED"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "CANCELLED"
)

// IsValid checks if the status is a valid PurchaseOrderStatus
func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case PurchaseOrderStatusDraft, PurchaseOrderStatusOrdered, PurchaseOrderStatusPartial,
		PurchaseOrderStatusReceived, PurchaseOrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of PurchaseOrderStatus
func (s PurchaseOrderStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s PurchaseOrderStatus) CanTransitionTo(target PurchaseOrderStatus) bool {
	switch s {
	case PurchaseOrderStatusDraft:
		return target == PurchaseOrderStatusOrdered || target == PurchaseOrderStatusCancelled
	case PurchaseOrderStatusOrdered:
		return target == PurchaseOrderStatusPartial || target == PurchaseOrderStatusReceived || target == PurchaseOrderStatusCancelled
	case PurchaseOrderStatusPartial:
		return target == PurchaseOrderStatusReceived
	case PurchaseOrderStatusReceived, PurchaseOrderStatusCancelled:
		return false
	}
	return false
}

// CanReceive returns true if receiving goods is allowed in this status
func (s PurchaseOrderStatus) CanReceive() bool {
	return s == PurchaseOrderStatusOrdered || s == PurchaseOrderStatusPartial
}

// IsOpen returns true if lines may still be added, resized or removed
func (s PurchaseOrderStatus) IsOpen() bool {
	return s == PurchaseOrderStatusDraft || s == PurchaseOrderStatusOrdered || s == PurchaseOrderStatusPartial
}

// CanCancel returns true if the order may be cancelled
func (s PurchaseOrderStatus) CanCancel() bool {
	return s == PurchaseOrderStatusDraft || s == PurchaseOrderStatusOrdered
}

// PurchaseOrderLine is one SKU on a purchase order. QuantityReceived only
// ever grows and never exceeds QuantityOrdered.
type PurchaseOrderLine struct {
	ID               uuid.UUID
	PurchaseOrderID  uuid.UUID
	TenantID         uuid.UUID
	StockItemID      uuid.UUID
	SKU              string
	QuantityOrdered  int64
	QuantityReceived int64
	UnitCost         decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Remaining returns the quantity still expected from the supplier
func (l *PurchaseOrderLine) Remaining() int64 {
	return l.QuantityOrdered - l.QuantityReceived
}

// Amount returns ordered quantity times unit cost
func (l *PurchaseOrderLine) Amount() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(l.QuantityOrdered))
}

// receive records qty more units against the line
func (l *PurchaseOrderLine) receive(qty int64) error {
	if qty <= 0 {
		return shared.ErrInvalidQuantity
	}
	if qty > l.Remaining() {
		return shared.NewDomainErrorf(shared.CodeOverReceipt,
			"Cannot receive %d of %s: ordered %d, received %d, remaining %d",
			qty, l.SKU, l.QuantityOrdered, l.QuantityReceived, l.Remaining())
	}
	l.QuantityReceived += qty
	l.UpdatedAt = shared.Now()
	return nil
}

// LineRemainder pairs a line's stock item with its unreceived quantity
type LineRemainder struct {
	StockItemID uuid.UUID
	SKU         string
	Quantity    int64
}

// PurchaseOrder is the aggregate root for replenishment orders
type PurchaseOrder struct {
	shared.TenantAggregateRoot
	PONumber            string
	SupplierID          *uuid.UUID
	Status              PurchaseOrderStatus
	IdempotencyKey      *string
	ExpectedArrivalDate *time.Time
	Notes               string
	Lines               []PurchaseOrderLine
	OrderedAt           *time.Time
	ReceivedAt          *time.Time
	CancelledAt         *time.Time
	CancelReason        string
}

// NewPurchaseOrder creates a draft purchase order
func NewPurchaseOrder(tenantID, actorID uuid.UUID, poNumber string, supplierID *uuid.UUID) (*PurchaseOrder, error) {
	poNumber = strings.TrimSpace(poNumber)
	if poNumber == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "PO number cannot be empty")
	}
	return &PurchaseOrder{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, actorID),
		PONumber:            poNumber,
		SupplierID:          supplierID,
		Status:              PurchaseOrderStatusDraft,
		Lines:               make([]PurchaseOrderLine, 0),
	}, nil
}

// GeneratePONumber builds a human-readable PO number such as PO-20261018-3F2A9C
func GeneratePONumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("PO-%s-%s", at.UTC().Format("20060102"), suffix)
}

// SetIdempotencyKey records the caller key that created the order
func (o *PurchaseOrder) SetIdempotencyKey(key string) {
	if key == "" {
		o.IdempotencyKey = nil
		return
	}
	o.IdempotencyKey = &key
}

// AddLine adds a SKU to an open order. The caller must raise the stock
// item's on-order quantity by the returned line's QuantityOrdered.
func (o *PurchaseOrder) AddLine(stockItemID uuid.UUID, sku string, qty int64, unitCost decimal.Decimal) (*PurchaseOrderLine, error) {
	if !o.Status.IsOpen() {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidState, "Cannot add lines to a purchase order in %s status", o.Status)
	}
	if qty <= 0 {
		return nil, shared.ErrInvalidQuantity
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unit cost cannot be negative")
	}
	if o.LineBySKU(sku) != nil {
		return nil, shared.NewDomainErrorf(shared.CodeAlreadyExists, "SKU %s is already on this purchase order", sku)
	}

	now := shared.Now()
	o.Lines = append(o.Lines, PurchaseOrderLine{
		ID:              uuid.New(),
		PurchaseOrderID: o.ID,
		TenantID:        o.TenantID,
		StockItemID:     stockItemID,
		SKU:             sku,
		QuantityOrdered: qty,
		UnitCost:        unitCost,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	o.Touch()
	return &o.Lines[len(o.Lines)-1], nil
}

// UpdateLineQuantity resizes a line and returns the change in ordered
// quantity, which the caller applies to the stock item's on-order quantity.
func (o *PurchaseOrder) UpdateLineQuantity(lineID uuid.UUID, qty int64) (*PurchaseOrderLine, int64, error) {
	if !o.Status.IsOpen() {
		return nil, 0, shared.NewDomainErrorf(shared.CodeInvalidState, "Cannot edit a purchase order in %s status", o.Status)
	}
	line := o.Line(lineID)
	if line == nil {
		return nil, 0, shared.NewDomainError(shared.CodeNotFound, "Purchase order line not found")
	}
	if qty <= 0 {
		return nil, 0, shared.ErrInvalidQuantity
	}
	if qty < line.QuantityReceived {
		return nil, 0, shared.NewDomainErrorf(shared.CodeInvalidQuantity,
			"Cannot reduce %s below the %d units already received", line.SKU, line.QuantityReceived)
	}

	delta := qty - line.QuantityOrdered
	line.QuantityOrdered = qty
	line.UpdatedAt = shared.Now()
	o.RecomputeStatus()
	o.Touch()
	return line, delta, nil
}

// RemoveLine drops a line and returns it; the caller subtracts its
// remaining quantity from the stock item's on-order quantity.
func (o *PurchaseOrder) RemoveLine(lineID uuid.UUID) (PurchaseOrderLine, error) {
	if !o.Status.IsOpen() {
		return PurchaseOrderLine{}, shared.NewDomainErrorf(shared.CodeInvalidState, "Cannot edit a purchase order in %s status", o.Status)
	}
	for i := range o.Lines {
		if o.Lines[i].ID != lineID {
			continue
		}
		if o.Status != PurchaseOrderStatusDraft && len(o.Lines) == 1 {
			return PurchaseOrderLine{}, shared.NewDomainError(shared.CodeInvalidState, "Cannot remove the last line of a placed purchase order; cancel it instead")
		}
		removed := o.Lines[i]
		o.Lines = append(o.Lines[:i], o.Lines[i+1:]...)
		o.RecomputeStatus()
		o.Touch()
		return removed, nil
	}
	return PurchaseOrderLine{}, shared.NewDomainError(shared.CodeNotFound, "Purchase order line not found")
}

// Place sends a draft order to the supplier
func (o *PurchaseOrder) Place() error {
	if !o.Status.CanTransitionTo(PurchaseOrderStatusOrdered) {
		return shared.NewDomainErrorf(shared.CodeInvalidState, "Cannot place a purchase order in %s status", o.Status)
	}
	if len(o.Lines) == 0 {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot place a purchase order without lines")
	}
	now := shared.Now()
	o.Status = PurchaseOrderStatusOrdered
	o.OrderedAt = &now
	o.Touch()
	return nil
}

// Receive records qty against the line for sku. Status is not recomputed
// here; call RecomputeStatus once every line of a receipt is processed.
func (o *PurchaseOrder) Receive(sku string, qty int64) (*PurchaseOrderLine, error) {
	if !o.Status.CanReceive() {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidState, "Cannot receive goods for a purchase order in %s status", o.Status)
	}
	line := o.LineBySKU(sku)
	if line == nil {
		return nil, shared.NewDomainErrorf(shared.CodeSkuNotFound, "SKU %s is not on purchase order %s", sku, o.PONumber)
	}
	if err := line.receive(qty); err != nil {
		return nil, err
	}
	o.Touch()
	return line, nil
}

// RecomputeStatus derives Received or Partial from the line totals.
// Draft, Cancelled and orders with nothing received are left unchanged.
func (o *PurchaseOrder) RecomputeStatus() {
	if o.Status != PurchaseOrderStatusOrdered && o.Status != PurchaseOrderStatusPartial {
		return
	}
	ordered, received := o.TotalOrdered(), o.TotalReceived()
	switch {
	case ordered > 0 && received >= ordered:
		now := shared.Now()
		o.Status = PurchaseOrderStatusReceived
		o.ReceivedAt = &now
	case received > 0:
		o.Status = PurchaseOrderStatusPartial
	}
}

// Cancel cancels a draft or ordered purchase order and returns the
// unreceived remainder of every line for on-order release.
func (o *PurchaseOrder) Cancel(reason string) ([]LineRemainder, error) {
	if !o.Status.CanCancel() {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidState, "Cannot cancel a purchase order in %s status", o.Status)
	}
	remainders := make([]LineRemainder, 0, len(o.Lines))
	for _, l := range o.Lines {
		if l.Remaining() > 0 {
			remainders = append(remainders, LineRemainder{StockItemID: l.StockItemID, SKU: l.SKU, Quantity: l.Remaining()})
		}
	}
	now := shared.Now()
	o.Status = PurchaseOrderStatusCancelled
	o.CancelledAt = &now
	o.CancelReason = strings.TrimSpace(reason)
	o.Touch()
	return remainders, nil
}

// Line returns the line with the given ID, or nil
func (o *PurchaseOrder) Line(id uuid.UUID) *PurchaseOrderLine {
	for i := range o.Lines {
		if o.Lines[i].ID == id {
			return &o.Lines[i]
		}
	}
	return nil
}

// LineBySKU returns the line for sku, or nil
func (o *PurchaseOrder) LineBySKU(sku string) *PurchaseOrderLine {
	for i := range o.Lines {
		if o.Lines[i].SKU == sku {
			return &o.Lines[i]
		}
	}
	return nil
}

// TotalOrdered sums ordered quantity across lines
func (o *PurchaseOrder) TotalOrdered() int64 {
	var total int64
	for _, l := range o.Lines {
		total += l.QuantityOrdered
	}
	return total
}

// TotalReceived sums received quantity across lines
func (o *PurchaseOrder) TotalReceived() int64 {
	var total int64
	for _, l := range o.Lines {
		total += l.QuantityReceived
	}
	return total
}

// TotalAmount sums line amounts
func (o *PurchaseOrder) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Amount())
	}
	return total
}
