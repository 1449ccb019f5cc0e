package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// FindOwned loads an entity through own, the tenant-scoped lookup. When that
// finds nothing, anyTenant tells a foreign id apart from a missing one: a row
// owned by another tenant fails with TENANT_MISMATCH and is written to the
// audit log, anything else is NOT_FOUND.
func FindOwned[T any](
	ctx context.Context,
	tc *shared.TenantContext,
	kind string,
	id uuid.UUID,
	own func() (T, error),
	anyTenant func() (T, error),
) (T, error) {
	var zero T
	found, err := own()
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return zero, err
	}

	if _, anyErr := anyTenant(); anyErr == nil {
		return zero, TenantMismatch(ctx, tc, kind, id)
	} else if !errors.Is(anyErr, shared.ErrNotFound) {
		return zero, anyErr
	}
	return zero, shared.NewDomainErrorf(shared.CodeNotFound, "%s %s not found", kind, id)
}

// TenantMismatch audits a reference to another tenant's row and returns the
// error reported to the caller. The message does not reveal the owner.
func TenantMismatch(ctx context.Context, tc *shared.TenantContext, kind string, id uuid.UUID) error {
	fields := []zap.Field{
		zap.String("event", "tenant_mismatch"),
		zap.String("entity", kind),
		zap.String("entity_id", id.String()),
	}
	if tc != nil {
		fields = append(fields,
			zap.String("tenant_id", tc.TenantID.String()),
			zap.String("actor_id", tc.ActorID.String()),
		)
	}
	logger.Audit(ctx).Warn("cross-tenant reference rejected", fields...)
	return shared.NewDomainErrorf(shared.CodeTenantMismatch, "%s %s is not accessible to this tenant", kind, id)
}
