package persistence_test

import (
	"path/filepath"
	"testing"

	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestDialector(t *testing.T) {
	tests := []struct {
		driver string
		name   string
	}{
		{config.DriverPostgres, "postgres"},
		{"", "postgres"},
		{config.DriverMySQL, "mysql"},
		{config.DriverSQLite, "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.driver, func(t *testing.T) {
			d, err := persistence.Dialector(&config.DatabaseConfig{
				Driver: tt.driver,
				Host:   "localhost",
				Port:   5432,
				User:   "ledger",
				DBName: "ledger",
				Path:   ":memory:",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.name, d.Name())
		})
	}

	t.Run("unsupported driver", func(t *testing.T) {
		_, err := persistence.Dialector(&config.DatabaseConfig{Driver: "oracle"})
		assert.ErrorContains(t, err, "unsupported database driver")
	})
}

func TestNewDatabase_SQLite(t *testing.T) {
	db, err := persistence.NewDatabaseWithLogger(&config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 25,
		MaxIdleConns: 5,
	}, gormlogger.Default.LogMode(gormlogger.Silent))
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, config.DriverSQLite, db.Driver)
	require.NoError(t, db.AutoMigrate())
	require.NoError(t, db.Ping())

	for _, table := range persistence.TenantTables {
		assert.True(t, db.DB.Migrator().HasTable(table), table)
	}
	assert.True(t, db.DB.Migrator().HasTable("purchase_order_lines"))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections, "sqlite writers share one connection")
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestNewDatabase_SQLiteFailsOnBadPath(t *testing.T) {
	_, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "missing", "dir", "ledger.db"),
		MaxOpenConns: 1,
	})
	assert.Error(t, err)
}
