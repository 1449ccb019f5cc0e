package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
	"github.com/stockledger/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormLedgerRepository implements inventory.LedgerRepository using GORM.
// It only ever inserts and reads.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

func (r *GormLedgerRepository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).Scopes(tenant.Scope(tenantID))
}

// Append inserts entries
func (r *GormLedgerRepository) Append(ctx context.Context, entries ...*inventory.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ms := make([]*models.LedgerEntryModel, len(entries))
	for i, e := range entries {
		ms[i] = models.LedgerEntryModelFromDomain(e)
	}
	if err := r.db.WithContext(ctx).Create(&ms).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// ListByItem returns a page of an item's entries
func (r *GormLedgerRepository) ListByItem(ctx context.Context, tenantID, stockItemID uuid.UUID, filter shared.Filter) ([]inventory.LedgerEntry, error) {
	query := r.scoped(ctx, tenantID).Where("stock_item_id = ?", stockItemID)
	if ct, ok := filter.Filters["change_type"].(string); ok && ct != "" {
		query = query.Where("change_type = ?", ct)
	}
	if from, ok := filter.Filters["from"].(time.Time); ok {
		query = query.Where("created_at >= ?", from)
	}
	if to, ok := filter.Filters["to"].(time.Time); ok {
		query = query.Where("created_at < ?", to)
	}

	sortField := ValidateSortField(filter.OrderBy, LedgerEntrySortFields, "sequence")
	query = query.Order(sortField + " " + ValidateSortOrder(filter.OrderDir))
	if sortField != "sequence" {
		query = query.Order("sequence DESC")
	}
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var ms []models.LedgerEntryModel
	if err := query.Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	return toLedgerEntries(ms), nil
}

// CountByItem counts an item's entries
func (r *GormLedgerRepository) CountByItem(ctx context.Context, tenantID, stockItemID uuid.UUID) (int64, error) {
	var count int64
	if err := r.scoped(ctx, tenantID).Where("stock_item_id = ?", stockItemID).Count(&count).Error; err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

// AllByItem returns every entry of an item in sequence order
func (r *GormLedgerRepository) AllByItem(ctx context.Context, tenantID, stockItemID uuid.UUID) ([]inventory.LedgerEntry, error) {
	var ms []models.LedgerEntryModel
	if err := r.scoped(ctx, tenantID).
		Where("stock_item_id = ?", stockItemID).
		Order("sequence ASC").
		Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	return toLedgerEntries(ms), nil
}

// ListByRelated returns entries caused by one order or purchase order
func (r *GormLedgerRepository) ListByRelated(ctx context.Context, tenantID, relatedID uuid.UUID) ([]inventory.LedgerEntry, error) {
	var ms []models.LedgerEntryModel
	if err := r.scoped(ctx, tenantID).
		Where("related_id = ?", relatedID).
		Order("created_at ASC").
		Order("sku ASC").
		Order("sequence ASC").
		Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	return toLedgerEntries(ms), nil
}

// ListRange returns entries created in [from, to) ordered by time
func (r *GormLedgerRepository) ListRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]inventory.LedgerEntry, error) {
	var ms []models.LedgerEntryModel
	if err := r.scoped(ctx, tenantID).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Order("sku ASC").
		Order("sequence ASC").
		Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	return toLedgerEntries(ms), nil
}

type soldRow struct {
	StockItemID uuid.UUID
	Sold        int64
}

// SoldSince sums sold units per stock item for sale entries created at or after since
func (r *GormLedgerRepository) SoldSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (map[uuid.UUID]int64, error) {
	var rows []soldRow
	if err := r.scoped(ctx, tenantID).
		Select("stock_item_id, SUM(-quantity_change) AS sold").
		Where("change_type = ? AND created_at >= ?", inventory.ChangeTypeSale.String(), since).
		Group("stock_item_id").
		Scan(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	sold := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		sold[row.StockItemID] = row.Sold
	}
	return sold, nil
}

func toLedgerEntries(ms []models.LedgerEntryModel) []inventory.LedgerEntry {
	entries := make([]inventory.LedgerEntry, len(ms))
	for i := range ms {
		entries[i] = *ms[i].ToDomain()
	}
	return entries
}

// Ensure GormLedgerRepository implements LedgerRepository
var _ inventory.LedgerRepository = (*GormLedgerRepository)(nil)
