package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
)

// StockItemRepository persists the stock projection.
// Every method is scoped by tenant; rows of other tenants are invisible.
type StockItemRepository interface {
	// FindBySKU finds an item by SKU, including retired items
	FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*StockItem, error)

	// FindByID finds an item by ID
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*StockItem, error)

	// FindByIDs returns the items with the given IDs that belong to the tenant
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]StockItem, error)

	// LockBySKUs takes row locks on the items in ascending SKU order and
	// returns them keyed by SKU. Missing SKUs are simply absent from the map.
	// Must run inside a transaction.
	LockBySKUs(ctx context.Context, tenantID uuid.UUID, skus []string) (map[string]*StockItem, error)

	// LockByIDs locks items by ID, still in ascending SKU order
	LockByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*StockItem, error)

	// List returns active items matching the filter
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]StockItem, error)

	// Count counts active items matching the filter
	Count(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// ListActive returns every non-retired item of the tenant
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]StockItem, error)

	// ListAtOrBelowReorderPoint returns active items whose on-hand plus
	// on-order is at or below their reorder point
	ListAtOrBelowReorderPoint(ctx context.Context, tenantID uuid.UUID) ([]StockItem, error)

	// ExistsBySKU checks whether a SKU is registered, retired or not
	ExistsBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (bool, error)

	// Create inserts a new item
	Create(ctx context.Context, item *StockItem) error

	// Save writes the item back with an optimistic version check
	Save(ctx context.Context, item *StockItem) error

	// TenantIDs lists every tenant that owns at least one item
	TenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// LedgerRepository persists ledger entries. It exposes no update or delete.
type LedgerRepository interface {
	// Append inserts entries
	Append(ctx context.Context, entries ...*LedgerEntry) error

	// ListByItem returns a page of an item's entries, newest sequence first
	ListByItem(ctx context.Context, tenantID, stockItemID uuid.UUID, filter shared.Filter) ([]LedgerEntry, error)

	// CountByItem counts an item's entries
	CountByItem(ctx context.Context, tenantID, stockItemID uuid.UUID) (int64, error)

	// AllByItem returns every entry of an item in sequence order
	AllByItem(ctx context.Context, tenantID, stockItemID uuid.UUID) ([]LedgerEntry, error)

	// ListByRelated returns entries caused by one order or purchase order
	ListByRelated(ctx context.Context, tenantID, relatedID uuid.UUID) ([]LedgerEntry, error)

	// ListRange returns entries created in [from, to) ordered by time
	ListRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]LedgerEntry, error)

	// SoldSince sums sold units per stock item for sale entries created at or after since
	SoldSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (map[uuid.UUID]int64, error)
}
