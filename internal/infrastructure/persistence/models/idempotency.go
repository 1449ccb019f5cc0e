package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
)

// IdempotencyRecordModel stores the outcome of a keyed command.
// A NULL response marks a claim whose work has not committed yet.
type IdempotencyRecordModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_idempotency_records_tenant_key,priority:1"`
	IdempotencyKey string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_idempotency_records_tenant_key,priority:2"`
	Operation      string    `gorm:"type:varchar(100);not null"`
	Response       *string   `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
	ExpiresAt      time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (IdempotencyRecordModel) TableName() string {
	return "idempotency_records"
}

// ToDomain converts the persistence model to a domain IdempotencyRecord
func (m *IdempotencyRecordModel) ToDomain() *shared.IdempotencyRecord {
	r := &shared.IdempotencyRecord{
		TenantID:  m.TenantID,
		Key:       m.IdempotencyKey,
		Operation: m.Operation,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
	if m.Response != nil {
		r.Response = []byte(*m.Response)
	}
	return r
}

// IdempotencyRecordModelFromDomain creates a persistence model from a domain IdempotencyRecord
func IdempotencyRecordModelFromDomain(r *shared.IdempotencyRecord) *IdempotencyRecordModel {
	m := &IdempotencyRecordModel{
		ID:             uuid.New(),
		TenantID:       r.TenantID,
		IdempotencyKey: r.Key,
		Operation:      r.Operation,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
	}
	if r.Response != nil {
		s := string(r.Response)
		m.Response = &s
	}
	return m
}
