package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/reorder"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
	"github.com/stockledger/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReorderSettingsRepository implements reorder.SettingsRepository using GORM
type GormReorderSettingsRepository struct {
	db *gorm.DB
}

// NewGormReorderSettingsRepository creates a new GormReorderSettingsRepository
func NewGormReorderSettingsRepository(db *gorm.DB) *GormReorderSettingsRepository {
	return &GormReorderSettingsRepository{db: db}
}

// Find returns the tenant's settings or shared.ErrNotFound
func (r *GormReorderSettingsRepository) Find(ctx context.Context, tenantID uuid.UUID) (*reorder.Settings, error) {
	var m models.ReorderSettingsModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// Save inserts or replaces the tenant's settings
func (r *GormReorderSettingsRepository) Save(ctx context.Context, settings *reorder.Settings) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			UpdateAll: true,
		}).
		Create(models.ReorderSettingsModelFromDomain(settings)).Error
	return translateError(err)
}

// Ensure GormReorderSettingsRepository implements SettingsRepository
var _ reorder.SettingsRepository = (*GormReorderSettingsRepository)(nil)
