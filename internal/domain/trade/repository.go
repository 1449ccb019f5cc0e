package trade

import (
	"context"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
)

// SalesOrderRepository persists completed sales
type SalesOrderRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*SalesOrder, error)
	// FindByIDAnyTenant looks an order up without a tenant filter. It exists
	// only so callers can tell a foreign reference apart from a missing one.
	FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*SalesOrder, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]SalesOrder, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	Create(ctx context.Context, order *SalesOrder) error
}

// PurchaseOrderRepository persists purchase orders and their lines
type PurchaseOrderRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PurchaseOrder, error)
	// FindByIDForUpdate loads the order with a row lock on its header
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*PurchaseOrder, error)
	FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) ([]PurchaseOrder, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]PurchaseOrder, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	Create(ctx context.Context, order *PurchaseOrder) error
	// Save writes header and lines with an optimistic version check,
	// deleting lines no longer on the order
	Save(ctx context.Context, order *PurchaseOrder) error
}
