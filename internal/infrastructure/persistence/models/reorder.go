package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/reorder"
)

// ReorderSettingsModel holds one tenant's replenishment policy
type ReorderSettingsModel struct {
	TenantID           uuid.UUID  `gorm:"type:uuid;primary_key"`
	LeadTimeDays       int        `gorm:"not null"`
	SafetyStockDays    int        `gorm:"not null"`
	VelocityWindowDays int        `gorm:"not null"`
	ReviewPeriodDays   int        `gorm:"not null"`
	DeadStockDays      int        `gorm:"not null"`
	UpdatedBy          *uuid.UUID `gorm:"type:uuid"`
	UpdatedAt          time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReorderSettingsModel) TableName() string {
	return "reorder_settings"
}

// ToDomain converts the persistence model to domain Settings
func (m *ReorderSettingsModel) ToDomain() *reorder.Settings {
	return &reorder.Settings{
		TenantID: m.TenantID,
		Policy: reorder.Policy{
			LeadTimeDays:       m.LeadTimeDays,
			SafetyStockDays:    m.SafetyStockDays,
			VelocityWindowDays: m.VelocityWindowDays,
			ReviewPeriodDays:   m.ReviewPeriodDays,
			DeadStockDays:      m.DeadStockDays,
		},
		UpdatedBy: m.UpdatedBy,
		UpdatedAt: m.UpdatedAt,
	}
}

// ReorderSettingsModelFromDomain creates a persistence model from domain Settings
func ReorderSettingsModelFromDomain(s *reorder.Settings) *ReorderSettingsModel {
	return &ReorderSettingsModel{
		TenantID:           s.TenantID,
		LeadTimeDays:       s.Policy.LeadTimeDays,
		SafetyStockDays:    s.Policy.SafetyStockDays,
		VelocityWindowDays: s.Policy.VelocityWindowDays,
		ReviewPeriodDays:   s.Policy.ReviewPeriodDays,
		DeadStockDays:      s.Policy.DeadStockDays,
		UpdatedBy:          s.UpdatedBy,
		UpdatedAt:          s.UpdatedAt,
	}
}
