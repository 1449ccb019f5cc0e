package shared

import (
	"github.com/google/uuid"
)

// TenantContext is the pre-validated caller identity handed over by the
// request/auth layer. It is passed explicitly as the first argument of every
// ledger operation and is never derived from ambient state.
type TenantContext struct {
	TenantID uuid.UUID
	ActorID  uuid.UUID
}

// NewTenantContext builds a TenantContext, rejecting a nil tenant id
func NewTenantContext(tenantID, actorID uuid.UUID) (*TenantContext, error) {
	tc := &TenantContext{TenantID: tenantID, ActorID: actorID}
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return tc, nil
}

// MustTenantContext is NewTenantContext for fixtures and wiring code
func MustTenantContext(tenantID, actorID uuid.UUID) *TenantContext {
	tc, err := NewTenantContext(tenantID, actorID)
	if err != nil {
		panic(err)
	}
	return tc
}

// Validate checks that the context identifies a tenant
func (tc *TenantContext) Validate() error {
	if tc == nil || tc.TenantID == uuid.Nil {
		return ErrMissingTenantContext
	}
	return nil
}

// RequireTenant validates tc; it is the first statement of every public operation
func RequireTenant(tc *TenantContext) error {
	return tc.Validate()
}

// Owns reports whether the tenant in tc owns a row tagged with tenantID
func (tc *TenantContext) Owns(tenantID uuid.UUID) bool {
	return tc != nil && tc.TenantID == tenantID
}
