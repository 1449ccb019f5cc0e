package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence/models"
	"github.com/stockledger/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormIdempotencyRepository implements shared.IdempotencyRepository using GORM.
// It is meant to run on the transaction of the guarded work.
type GormIdempotencyRepository struct {
	db *gorm.DB
}

// NewGormIdempotencyRepository creates a new GormIdempotencyRepository
func NewGormIdempotencyRepository(db *gorm.DB) *GormIdempotencyRepository {
	return &GormIdempotencyRepository{db: db}
}

// Find returns the record for (tenantID, key). The read is a locking read so
// it sees records committed after the transaction's snapshot was taken.
func (r *GormIdempotencyRepository) Find(ctx context.Context, tenantID uuid.UUID, key string) (*shared.IdempotencyRecord, error) {
	var m models.IdempotencyRecordModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("idempotency_key = ?", key).
		First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// Claim inserts the record unless (tenant, key) already exists. On Postgres
// and MySQL the insert waits on a concurrent uncommitted claim of the same
// key, so at most one transaction proceeds with the work.
func (r *GormIdempotencyRepository) Claim(ctx context.Context, record *shared.IdempotencyRecord) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.IdempotencyRecordModelFromDomain(record))
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Complete stores the response of a claimed record
func (r *GormIdempotencyRepository) Complete(ctx context.Context, tenantID uuid.UUID, key string, response []byte) error {
	result := r.db.WithContext(ctx).
		Model(&models.IdempotencyRecordModel{}).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		Update("response", string(response))
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteExpired removes records of every tenant that expired before now
func (r *GormIdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := tenant.System(r.db.WithContext(ctx)).
		Where("expires_at < ?", now).
		Delete(&models.IdempotencyRecordModel{})
	if result.Error != nil {
		return 0, translateError(result.Error)
	}
	return result.RowsAffected, nil
}

// Ensure GormIdempotencyRepository implements IdempotencyRepository
var _ shared.IdempotencyRepository = (*GormIdempotencyRepository)(nil)
