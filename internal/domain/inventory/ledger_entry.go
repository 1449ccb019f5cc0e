package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
)

// ChangeType classifies a ledger entry
type ChangeType string

const (
	// ChangeTypeSale removes stock sold to a customer
	ChangeTypeSale ChangeType = "sale"
	// ChangeTypePurchaseReceipt adds stock received against a purchase order
	ChangeTypePurchaseReceipt ChangeType = "purchase_receipt"
	// ChangeTypeReturn adds stock returned by a customer
	ChangeTypeReturn ChangeType = "return"
	// ChangeTypeManualAdjustment corrects stock in either direction
	ChangeTypeManualAdjustment ChangeType = "manual_adjustment"
	// ChangeTypeCreation records the initial count of a newly registered item
	ChangeTypeCreation ChangeType = "creation"
)

// String returns the string representation of ChangeType
func (c ChangeType) String() string {
	return string(c)
}

// IsValid returns true if the change type is known
func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeTypeSale,
		ChangeTypePurchaseReceipt,
		ChangeTypeReturn,
		ChangeTypeManualAdjustment,
		ChangeTypeCreation:
		return true
	}
	return false
}

// ValidateDelta checks the sign of delta against the change type.
// Creation entries are written only by NewStockItem and are rejected here.
func (c ChangeType) ValidateDelta(delta int64) error {
	if delta == 0 {
		return shared.NewDomainError(shared.CodeInvalidQuantity, "Quantity change cannot be zero")
	}
	if delta > MaxQuantityChange || delta < -MaxQuantityChange {
		return shared.NewDomainErrorf(shared.CodeInvalidQuantity, "Quantity change cannot exceed %d units", int64(MaxQuantityChange))
	}
	switch c {
	case ChangeTypeSale:
		if delta > 0 {
			return shared.NewDomainError(shared.CodeInvalidQuantity, "A sale must decrease stock")
		}
	case ChangeTypePurchaseReceipt, ChangeTypeReturn:
		if delta < 0 {
			return shared.NewDomainErrorf(shared.CodeInvalidQuantity, "A %s must increase stock", c)
		}
	case ChangeTypeManualAdjustment:
	case ChangeTypeCreation:
		return shared.NewDomainError(shared.CodeInvalidInput, "Creation entries are written only when an item is registered")
	default:
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "Unknown change type %q", string(c))
	}
	return nil
}

// LedgerEntry is an immutable record of one signed change to a stock item's
// on-hand quantity. Corrections are new entries, never edits.
type LedgerEntry struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	StockItemID       uuid.UUID
	SKU               string
	Sequence          int64
	ChangeType        ChangeType
	QuantityChange    int64
	ResultingQuantity int64
	RelatedID         *uuid.UUID
	ActorID           uuid.UUID
	Notes             string
	CreatedAt         time.Time
}

// QuantityBefore returns the on-hand quantity immediately before the entry
func (e *LedgerEntry) QuantityBefore() int64 {
	return e.ResultingQuantity - e.QuantityChange
}

// IsIncrease reports whether the entry added stock
func (e *LedgerEntry) IsIncrease() bool {
	return e.QuantityChange > 0
}

func newLedgerEntry(item *StockItem, change ChangeType, delta int64, relatedID *uuid.UUID, actorID uuid.UUID, notes string) *LedgerEntry {
	return &LedgerEntry{
		ID:                uuid.New(),
		TenantID:          item.TenantID,
		StockItemID:       item.ID,
		SKU:               item.SKU,
		Sequence:          item.ledgerSeq,
		ChangeType:        change,
		QuantityChange:    delta,
		ResultingQuantity: item.onHand,
		RelatedID:         relatedID,
		ActorID:           actorID,
		Notes:             notes,
		CreatedAt:         shared.Now(),
	}
}
