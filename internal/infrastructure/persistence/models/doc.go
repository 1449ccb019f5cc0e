// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities carry no GORM tags
// 2. Persistence models hold all table, index and check constraint mappings
// 3. ToDomain / *ModelFromDomain convert in both directions
// 4. Repositories only ever read and write persistence models
//
// Structure:
// - base.go: shared columns (BaseModel, AggregateModel, TenantAggregateModel)
// - inventory.go: stock items and the ledger
// - trade.go: sales orders and purchase orders with their lines
// - idempotency.go: idempotency records
// - reorder.go: per-tenant reorder settings
package models

// All returns every persistence model in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&StockItemModel{},
		&LedgerEntryModel{},
		&SalesOrderModel{},
		&SalesOrderLineModel{},
		&PurchaseOrderModel{},
		&PurchaseOrderLineModel{},
		&IdempotencyRecordModel{},
		&ReorderSettingsModel{},
	}
}
