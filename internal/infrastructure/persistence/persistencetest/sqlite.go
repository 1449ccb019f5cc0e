// Package persistencetest opens throwaway SQLite ledgers for tests of the
// application and HTTP layers.
package persistencetest

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

// NewDatabase opens a migrated SQLite database in a temp dir with the tenant
// guard installed. A single connection serialises writers the way row locks
// do on Postgres.
func NewDatabase(t testing.TB) *persistence.Database {
	t.Helper()

	db, err := persistence.NewDatabaseWithLogger(&config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, gormlogger.Default.LogMode(gormlogger.Silent))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewTenant returns a tenant context with fresh tenant and actor ids
func NewTenant() *shared.TenantContext {
	return shared.MustTenantContext(uuid.New(), uuid.New())
}
