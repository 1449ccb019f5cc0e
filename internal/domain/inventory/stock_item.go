package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// MaxSKULength is the longest SKU accepted
const MaxSKULength = 64

// MaxQuantityChange bounds a single ledger delta and an initial count, so
// on-hand arithmetic cannot overflow.
const MaxQuantityChange = 1_000_000_000

// StockItem is the current-quantity projection of one SKU within a tenant and
// the aggregate root for every quantity change. On-hand and on-order counters
// are private: Apply is the only way to change on-hand, and it always yields
// the LedgerEntry describing the change.
type StockItem struct {
	shared.TenantAggregateRoot
	SKU             string
	Name            string
	ReorderPoint    int64
	ReorderQuantity int64
	LeadTimeDays    int
	SupplierID      *uuid.UUID
	Cost            decimal.Decimal
	LandedCost      decimal.Decimal
	LastSoldAt      *time.Time
	DeletedAt       *time.Time

	onHand    int64
	onOrder   int64
	ledgerSeq int64
}

// NewStockItemParams carries the attributes of a new stock item
type NewStockItemParams struct {
	SKU             string
	Name            string
	InitialQuantity int64
	Cost            decimal.Decimal
	LandedCost      decimal.Decimal
	ReorderPoint    int64
	ReorderQuantity int64
	LeadTimeDays    int
	SupplierID      *uuid.UUID
	Notes           string
}

// NewStockItem registers a stock item and returns it together with the
// creation ledger entry carrying the initial count.
func NewStockItem(tenantID, actorID uuid.UUID, p NewStockItemParams) (*StockItem, *LedgerEntry, error) {
	sku, err := NormalizeSKU(p.SKU)
	if err != nil {
		return nil, nil, err
	}
	if p.InitialQuantity < 0 {
		return nil, nil, shared.NewDomainError(shared.CodeInvalidQuantity, "Initial quantity cannot be negative")
	}
	if p.InitialQuantity > MaxQuantityChange {
		return nil, nil, shared.NewDomainErrorf(shared.CodeInvalidQuantity, "Initial quantity cannot exceed %d units", int64(MaxQuantityChange))
	}
	if p.Cost.IsNegative() || p.LandedCost.IsNegative() {
		return nil, nil, shared.NewDomainError(shared.CodeInvalidInput, "Cost cannot be negative")
	}
	if err := validateReorderParameters(p.ReorderPoint, p.ReorderQuantity, p.LeadTimeDays); err != nil {
		return nil, nil, err
	}

	item := &StockItem{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, actorID),
		SKU:                 sku,
		Name:                strings.TrimSpace(p.Name),
		ReorderPoint:        p.ReorderPoint,
		ReorderQuantity:     p.ReorderQuantity,
		LeadTimeDays:        p.LeadTimeDays,
		SupplierID:          p.SupplierID,
		Cost:                p.Cost,
		LandedCost:          p.LandedCost,
		onHand:              p.InitialQuantity,
		ledgerSeq:           1,
	}
	entry := newLedgerEntry(item, ChangeTypeCreation, p.InitialQuantity, nil, actorID, p.Notes)
	return item, entry, nil
}

// NormalizeSKU trims, upper-cases and validates a SKU. SKUs compare case
// insensitively, so every lookup and lock goes through this form.
func NormalizeSKU(sku string) (string, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return "", shared.NewDomainError(shared.CodeInvalidInput, "SKU cannot be empty")
	}
	if len(sku) > MaxSKULength {
		return "", shared.NewDomainErrorf(shared.CodeInvalidInput, "SKU cannot exceed %d characters", MaxSKULength)
	}
	return sku, nil
}

// QuantityOnHand returns the current on-hand quantity
func (s *StockItem) QuantityOnHand() int64 {
	return s.onHand
}

// QuantityOnOrder returns the quantity ordered from suppliers but not yet received
func (s *StockItem) QuantityOnOrder() int64 {
	return s.onOrder
}

// InventoryPosition is on-hand plus on-order
func (s *StockItem) InventoryPosition() int64 {
	return s.onHand + s.onOrder
}

// LedgerSequence returns the sequence number of the latest ledger entry
func (s *StockItem) LedgerSequence() int64 {
	return s.ledgerSeq
}

// IsRetired reports whether the item was soft-deleted
func (s *StockItem) IsRetired() bool {
	return s.DeletedAt != nil
}

// Apply changes on-hand by delta and returns the resulting ledger entry.
// It fails with NEGATIVE_STOCK when the change would take on-hand below zero,
// leaving the item untouched.
func (s *StockItem) Apply(change ChangeType, delta int64, relatedID *uuid.UUID, actorID uuid.UUID, notes string) (*LedgerEntry, error) {
	if s.IsRetired() {
		return nil, shared.NewDomainErrorf(shared.CodeItemRetired, "Stock item %s has been retired", s.SKU)
	}
	if err := change.ValidateDelta(delta); err != nil {
		return nil, err
	}

	newQty := s.onHand + delta
	if newQty < 0 {
		return nil, shared.NewDomainErrorf(shared.CodeNegativeStock,
			"Insufficient stock for %s: on hand %d, requested %d", s.SKU, s.onHand, -delta)
	}

	s.onHand = newQty
	s.ledgerSeq++
	if change == ChangeTypeSale {
		now := shared.Now()
		s.LastSoldAt = &now
	}
	s.Touch()
	return newLedgerEntry(s, change, delta, relatedID, actorID, notes), nil
}

// Receive moves qty from on-order to on-hand for a purchase receipt. When a
// unit cost is given the item cost becomes the moving weighted average.
func (s *StockItem) Receive(qty int64, unitCost *decimal.Decimal, poID uuid.UUID, actorID uuid.UUID, notes string) (*LedgerEntry, error) {
	if qty <= 0 {
		return nil, shared.ErrInvalidQuantity
	}
	if unitCost != nil && unitCost.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unit cost cannot be negative")
	}
	if qty > s.onOrder {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidState,
			"Receipt of %d exceeds on-order quantity %d for %s", qty, s.onOrder, s.SKU)
	}
	prevOnHand := s.onHand
	entry, err := s.Apply(ChangeTypePurchaseReceipt, qty, &poID, actorID, notes)
	if err != nil {
		return nil, err
	}
	s.onOrder -= qty
	if unitCost != nil {
		s.Cost = WeightedAverageCost(prevOnHand, s.Cost, qty, *unitCost)
	}
	return entry, nil
}

// AdjustOnOrder changes the on-order counter by delta
func (s *StockItem) AdjustOnOrder(delta int64) error {
	if delta == 0 {
		return nil
	}
	if s.IsRetired() && delta > 0 {
		return shared.NewDomainErrorf(shared.CodeItemRetired, "Stock item %s has been retired", s.SKU)
	}
	next := s.onOrder + delta
	if next < 0 {
		return shared.NewDomainErrorf(shared.CodeInvalidState,
			"On-order quantity for %s cannot go below zero (on order %d, change %d)", s.SKU, s.onOrder, delta)
	}
	s.onOrder = next
	s.Touch()
	return nil
}

// UpdateReorderParameters changes the replenishment settings of the item
func (s *StockItem) UpdateReorderParameters(point, quantity int64, leadTimeDays int, supplierID *uuid.UUID) error {
	if err := validateReorderParameters(point, quantity, leadTimeDays); err != nil {
		return err
	}
	s.ReorderPoint = point
	s.ReorderQuantity = quantity
	s.LeadTimeDays = leadTimeDays
	s.SupplierID = supplierID
	s.Touch()
	return nil
}

// UpdateCost sets the unit and landed cost
func (s *StockItem) UpdateCost(cost, landed decimal.Decimal) error {
	if cost.IsNegative() || landed.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Cost cannot be negative")
	}
	s.Cost = cost
	s.LandedCost = landed
	s.Touch()
	return nil
}

// Retire soft-deletes the item; history stays readable
func (s *StockItem) Retire() error {
	if s.IsRetired() {
		return shared.NewDomainErrorf(shared.CodeInvalidState, "Stock item %s is already retired", s.SKU)
	}
	now := shared.Now()
	s.DeletedAt = &now
	s.Touch()
	return nil
}

// WeightedAverageCost blends the existing cost with a receipt:
// (onHand*cost + qty*unitCost) / (onHand+qty)
func WeightedAverageCost(onHand int64, cost decimal.Decimal, qty int64, unitCost decimal.Decimal) decimal.Decimal {
	total := onHand + qty
	if total <= 0 {
		return unitCost
	}
	if onHand <= 0 {
		return unitCost
	}
	value := cost.Mul(decimal.NewFromInt(onHand)).Add(unitCost.Mul(decimal.NewFromInt(qty)))
	return value.Div(decimal.NewFromInt(total)).Round(4)
}

func validateReorderParameters(point, quantity int64, leadTimeDays int) error {
	if point < 0 || quantity < 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Reorder point and quantity cannot be negative")
	}
	if leadTimeDays < 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Lead time cannot be negative")
	}
	return nil
}

// StockItemState is the persisted form of a StockItem's private counters
type StockItemState struct {
	QuantityOnHand  int64
	QuantityOnOrder int64
	LedgerSequence  int64
}

// State exposes the private counters for persistence mapping
func (s *StockItem) State() StockItemState {
	return StockItemState{
		QuantityOnHand:  s.onHand,
		QuantityOnOrder: s.onOrder,
		LedgerSequence:  s.ledgerSeq,
	}
}

// RestoreStockItem rebuilds a StockItem loaded from storage
func RestoreStockItem(item StockItem, state StockItemState) *StockItem {
	item.onHand = state.QuantityOnHand
	item.onOrder = state.QuantityOnOrder
	item.ledgerSeq = state.LedgerSequence
	return &item
}
