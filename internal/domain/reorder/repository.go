package reorder

import (
	"context"

	"github.com/google/uuid"
)

// SettingsRepository persists per-tenant reorder policies
type SettingsRepository interface {
	// Find returns the tenant's settings or shared.ErrNotFound
	Find(ctx context.Context, tenantID uuid.UUID) (*Settings, error)

	// Save inserts or replaces the tenant's settings
	Save(ctx context.Context, settings *Settings) error
}
