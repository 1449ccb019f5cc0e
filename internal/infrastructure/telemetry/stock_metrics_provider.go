package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStockMetricsProvider implements StockMetricsProvider with aggregate
// queries over the stock_items table.
type GormStockMetricsProvider struct {
	db *gorm.DB
}

// NewGormStockMetricsProvider creates a new GormStockMetricsProvider.
func NewGormStockMetricsProvider(db *gorm.DB) *GormStockMetricsProvider {
	return &GormStockMetricsProvider{db: db}
}

// BelowReorderPointCount counts active items whose position is at or below their reorder point
func (p *GormStockMetricsProvider) BelowReorderPointCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("stock_items").
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID).
		Where("quantity_on_hand + quantity_on_order <= reorder_point").
		Count(&count).Error
	return count, err
}

// OnHandUnits sums on-hand quantity across active items
func (p *GormStockMetricsProvider) OnHandUnits(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var total int64
	err := p.db.WithContext(ctx).
		Table("stock_items").
		Select("COALESCE(SUM(quantity_on_hand), 0)").
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID).
		Row().Scan(&total)
	return total, err
}
