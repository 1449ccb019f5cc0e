package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/trade"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
	"github.com/stockledger/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPurchaseOrderRepository implements trade.PurchaseOrderRepository using GORM
type GormPurchaseOrderRepository struct {
	db *gorm.DB
}

// NewGormPurchaseOrderRepository creates a new GormPurchaseOrderRepository
func NewGormPurchaseOrderRepository(db *gorm.DB) *GormPurchaseOrderRepository {
	return &GormPurchaseOrderRepository{db: db}
}

func preloadPurchaseLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("sku ASC")
	})
}

// FindByIDForTenant finds a purchase order with its lines
func (r *GormPurchaseOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*trade.PurchaseOrder, error) {
	var m models.PurchaseOrderModel
	if err := preloadPurchaseLines(r.db.WithContext(ctx)).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// FindByIDForUpdate locks the header row and loads the lines. Lines are only
// written by whoever holds the header lock.
func (r *GormPurchaseOrderRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*trade.PurchaseOrder, error) {
	var m models.PurchaseOrderModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	if err := r.db.WithContext(ctx).
		Where("purchase_order_id = ?", m.ID).
		Order("sku ASC").
		Find(&m.Lines).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// FindByIDAnyTenant finds a purchase order regardless of owner
func (r *GormPurchaseOrderRepository) FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*trade.PurchaseOrder, error) {
	var m models.PurchaseOrderModel
	if err := tenant.System(r.db.WithContext(ctx)).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// FindByIdempotencyKey returns the orders created under key
func (r *GormPurchaseOrderRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) ([]trade.PurchaseOrder, error) {
	var ms []models.PurchaseOrderModel
	if err := preloadPurchaseLines(r.db.WithContext(ctx)).
		Scopes(tenant.Scope(tenantID)).
		Where("idempotency_key = ?", key).
		Order("po_number ASC").
		Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	return toPurchaseOrders(ms), nil
}

// FindAllForTenant lists purchase orders, newest first by default
func (r *GormPurchaseOrderRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]trade.PurchaseOrder, error) {
	query := r.applyConditions(r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}).Scopes(tenant.Scope(tenantID)), filter)
	query = query.Order(ValidateSortField(filter.OrderBy, PurchaseOrderSortFields, "created_at") + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var ms []models.PurchaseOrderModel
	if err := preloadPurchaseLines(query).Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	return toPurchaseOrders(ms), nil
}

// CountForTenant counts purchase orders matching the filter
func (r *GormPurchaseOrderRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyConditions(r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}).Scopes(tenant.Scope(tenantID)), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

// Create inserts the order header together with its lines
func (r *GormPurchaseOrderRepository) Create(ctx context.Context, order *trade.PurchaseOrder) error {
	if err := r.db.WithContext(ctx).Create(models.PurchaseOrderModelFromDomain(order)).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// Save writes the header with an optimistic version check, deletes lines
// that are no longer on the order and upserts the rest
func (r *GormPurchaseOrderRepository) Save(ctx context.Context, order *trade.PurchaseOrder) error {
	db := r.db.WithContext(ctx)
	m := models.PurchaseOrderModelFromDomain(order)

	result := db.Model(&models.PurchaseOrderModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", order.ID, order.TenantID, order.Version).
		Updates(map[string]any{
			"supplier_id":           m.SupplierID,
			"status":                m.Status,
			"expected_arrival_date": m.ExpectedArrivalDate,
			"notes":                 m.Notes,
			"ordered_at":            m.OrderedAt,
			"received_at":           m.ReceivedAt,
			"cancelled_at":          m.CancelledAt,
			"cancel_reason":         m.CancelReason,
			"version":               order.Version + 1,
			"updated_at":            order.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainErrorf(shared.CodeConcurrencyConflict, "Purchase order %s was modified by another transaction", order.PONumber)
	}

	keep := make([]uuid.UUID, len(m.Lines))
	for i := range m.Lines {
		keep[i] = m.Lines[i].ID
	}
	del := db.Where("purchase_order_id = ? AND tenant_id = ?", order.ID, order.TenantID)
	if len(keep) > 0 {
		del = del.Where("id NOT IN ?", keep)
	}
	if err := del.Delete(&models.PurchaseOrderLineModel{}).Error; err != nil {
		return translateError(err)
	}

	if len(m.Lines) > 0 {
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity_ordered", "quantity_received", "unit_cost", "updated_at"}),
		}).Create(&m.Lines).Error; err != nil {
			return translateError(err)
		}
	}

	order.IncrementVersion()
	return nil
}

func (r *GormPurchaseOrderRepository) applyConditions(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("po_number LIKE ?", "%"+filter.Search+"%")
	}
	if status, ok := filter.Filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if supplierID, ok := filter.Filters["supplier_id"].(uuid.UUID); ok {
		query = query.Where("supplier_id = ?", supplierID)
	}
	return query
}

func toPurchaseOrders(ms []models.PurchaseOrderModel) []trade.PurchaseOrder {
	orders := make([]trade.PurchaseOrder, len(ms))
	for i := range ms {
		orders[i] = *ms[i].ToDomain()
	}
	return orders
}

// Ensure GormPurchaseOrderRepository implements PurchaseOrderRepository
var _ trade.PurchaseOrderRepository = (*GormPurchaseOrderRepository)(nil)
