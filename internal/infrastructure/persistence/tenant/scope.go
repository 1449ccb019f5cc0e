// Package tenant scopes GORM statements to a single tenant.
//
// The tenant id is always passed in explicitly by the repository that builds
// the statement; nothing is read from the request context. The guard
// registered by RegisterGuard rejects statements on tenant-owned tables that
// forgot the condition.
//
// Usage:
//
//	db.Scopes(tenant.Scope(tenantID)).Find(&items) // WHERE "stock_items"."tenant_id" = ?
//	tenant.System(db).Distinct("tenant_id").Find(&ids) // cross-tenant, explicit
package tenant

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Column is the tenant id column present on every tenant-owned table
const Column = "tenant_id"

const systemKey = "tenant:system"

// ErrTenantIDRequired is returned when a scope is built from the nil tenant
var ErrTenantIDRequired = errors.New("tenant_id is required")

// ErrUnscopedStatement is returned by the guard for statements on tenant
// tables that carry no tenant_id condition
var ErrUnscopedStatement = errors.New("statement on a tenant table has no tenant_id condition")

// Scope applies tenant filtering to GORM queries
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: Column},
			Value:  tenantID,
		})
	}
}

// System marks a statement as deliberately cross-tenant, such as the
// reconciliation job enumerating tenants. The guard lets it through.
func System(db *gorm.DB) *gorm.DB {
	return db.Set(systemKey, true)
}

func isSystem(db *gorm.DB) bool {
	v, ok := db.Get(systemKey)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
