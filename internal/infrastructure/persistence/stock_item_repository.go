package persistence

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
	"github.com/stockledger/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockItemRepository implements inventory.StockItemRepository using GORM
type GormStockItemRepository struct {
	db *gorm.DB
}

// NewGormStockItemRepository creates a new GormStockItemRepository
func NewGormStockItemRepository(db *gorm.DB) *GormStockItemRepository {
	return &GormStockItemRepository{db: db}
}

func (r *GormStockItemRepository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.StockItemModel{}).Scopes(tenant.Scope(tenantID))
}

// FindBySKU finds an item by SKU, including retired items
func (r *GormStockItemRepository) FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*inventory.StockItem, error) {
	var m models.StockItemModel
	if err := r.scoped(ctx, tenantID).Where("sku = ?", sku).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainErrorf(shared.CodeSkuNotFound, "SKU %s not found", sku)
		}
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// FindByID finds an item by ID
func (r *GormStockItemRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.StockItem, error) {
	var m models.StockItemModel
	if err := r.scoped(ctx, tenantID).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// FindByIDs returns the items with the given IDs that belong to the tenant
func (r *GormStockItemRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]inventory.StockItem, error) {
	if len(ids) == 0 {
		return []inventory.StockItem{}, nil
	}
	var ms []models.StockItemModel
	if err := r.scoped(ctx, tenantID).Where("id IN ?", ids).Order("sku ASC").Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	return toStockItems(ms), nil
}

// LockBySKUs takes FOR UPDATE row locks ordered by SKU. Every locking
// statement in the service orders by sku, so concurrent transactions always
// acquire overlapping rows in the same order.
func (r *GormStockItemRepository) LockBySKUs(ctx context.Context, tenantID uuid.UUID, skus []string) (map[string]*inventory.StockItem, error) {
	result := make(map[string]*inventory.StockItem, len(skus))
	sorted := SortedUniqueSKUs(skus)
	if len(sorted) == 0 {
		return result, nil
	}

	var ms []models.StockItemModel
	if err := r.scoped(ctx, tenantID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sku IN ?", sorted).
		Order("sku ASC").
		Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	for i := range ms {
		result[ms[i].SKU] = ms[i].ToDomain()
	}
	return result, nil
}

// LockByIDs locks items by ID, still in ascending SKU order
func (r *GormStockItemRepository) LockByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*inventory.StockItem, error) {
	result := make(map[uuid.UUID]*inventory.StockItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var ms []models.StockItemModel
	if err := r.scoped(ctx, tenantID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("sku ASC").
		Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	for i := range ms {
		result[ms[i].ID] = ms[i].ToDomain()
	}
	return result, nil
}

// List returns active items matching the filter
func (r *GormStockItemRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]inventory.StockItem, error) {
	var ms []models.StockItemModel
	if err := r.applyFilter(r.scoped(ctx, tenantID), filter).Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	return toStockItems(ms), nil
}

// Count counts active items matching the filter
func (r *GormStockItemRepository) Count(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	if err := r.applyConditions(r.scoped(ctx, tenantID), filter).Count(&count).Error; err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

// ListActive returns every non-retired item of the tenant
func (r *GormStockItemRepository) ListActive(ctx context.Context, tenantID uuid.UUID) ([]inventory.StockItem, error) {
	var ms []models.StockItemModel
	if err := r.scoped(ctx, tenantID).Where("deleted_at IS NULL").Order("sku ASC").Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	return toStockItems(ms), nil
}

// ListAtOrBelowReorderPoint returns active items whose inventory position is
// at or below their reorder point
func (r *GormStockItemRepository) ListAtOrBelowReorderPoint(ctx context.Context, tenantID uuid.UUID) ([]inventory.StockItem, error) {
	var ms []models.StockItemModel
	if err := r.scoped(ctx, tenantID).
		Where("deleted_at IS NULL AND quantity_on_hand + quantity_on_order <= reorder_point").
		Order("sku ASC").
		Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	return toStockItems(ms), nil
}

// ExistsBySKU checks whether a SKU is registered, retired or not
func (r *GormStockItemRepository) ExistsBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (bool, error) {
	var count int64
	if err := r.scoped(ctx, tenantID).Where("sku = ?", sku).Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

// Create inserts a new item
func (r *GormStockItemRepository) Create(ctx context.Context, item *inventory.StockItem) error {
	if err := r.db.WithContext(ctx).Create(models.StockItemModelFromDomain(item)).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// Save writes the item back if nobody else changed it since it was read,
// then advances the in-memory version
func (r *GormStockItemRepository) Save(ctx context.Context, item *inventory.StockItem) error {
	state := item.State()
	result := r.db.WithContext(ctx).
		Model(&models.StockItemModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", item.ID, item.TenantID, item.Version).
		Updates(map[string]any{
			"name":              item.Name,
			"quantity_on_hand":  state.QuantityOnHand,
			"quantity_on_order": state.QuantityOnOrder,
			"ledger_sequence":   state.LedgerSequence,
			"reorder_point":     item.ReorderPoint,
			"reorder_quantity":  item.ReorderQuantity,
			"lead_time_days":    item.LeadTimeDays,
			"supplier_id":       item.SupplierID,
			"cost":              item.Cost,
			"landed_cost":       item.LandedCost,
			"last_sold_at":      item.LastSoldAt,
			"deleted_at":        item.DeletedAt,
			"version":           item.Version + 1,
			"updated_at":        item.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainErrorf(shared.CodeConcurrencyConflict, "Stock item %s was modified by another transaction", item.SKU)
	}
	item.IncrementVersion()
	return nil
}

// TenantIDs lists every tenant that owns at least one item
func (r *GormStockItemRepository) TenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := tenant.System(r.db.WithContext(ctx)).
		Model(&models.StockItemModel{}).
		Distinct("tenant_id").
		Order("tenant_id").
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, translateError(err)
	}
	return ids, nil
}

// applyConditions adds the filter's WHERE conditions
func (r *GormStockItemRepository) applyConditions(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if retired, ok := filter.Filters["include_retired"].(bool); !ok || !retired {
		query = query.Where("deleted_at IS NULL")
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("(sku LIKE ? OR name LIKE ?)", pattern, pattern)
	}
	if supplierID, ok := filter.Filters["supplier_id"].(uuid.UUID); ok {
		query = query.Where("supplier_id = ?", supplierID)
	}
	if below, ok := filter.Filters["below_reorder_point"].(bool); ok && below {
		query = query.Where("quantity_on_hand + quantity_on_order <= reorder_point")
	}
	return query
}

// applyFilter applies conditions, ordering and pagination
func (r *GormStockItemRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyConditions(query, filter)

	sortField := ValidateSortField(filter.OrderBy, StockItemSortFields, "sku")
	sortOrder := "ASC"
	if filter.OrderDir != "" {
		sortOrder = ValidateSortOrder(filter.OrderDir)
	}
	query = query.Order(sortField + " " + sortOrder)

	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}

// SortedUniqueSKUs returns skus without duplicates in ascending byte order
func SortedUniqueSKUs(skus []string) []string {
	seen := make(map[string]struct{}, len(skus))
	out := make([]string, 0, len(skus))
	for _, s := range skus {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func toStockItems(ms []models.StockItemModel) []inventory.StockItem {
	items := make([]inventory.StockItem, len(ms))
	for i := range ms {
		items[i] = *ms[i].ToDomain()
	}
	return items
}

// Ensure GormStockItemRepository implements StockItemRepository
var _ inventory.StockItemRepository = (*GormStockItemRepository)(nil)
