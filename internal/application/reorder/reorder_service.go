// Package reorder proposes replenishment quantities from the stock projection
// and recent sales. It only reads: suggestions become stock movement once a
// purchase order is created from them.
package reorder

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/reorder"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ReorderService provides reorder suggestions, dead stock and tenant settings
type ReorderService struct {
	stockItemRepo inventory.StockItemRepository
	ledgerRepo    inventory.LedgerRepository
	settingsRepo  reorder.SettingsRepository
	defaults      reorder.Policy
}

// NewReorderService creates a new ReorderService
func NewReorderService(
	stockItemRepo inventory.StockItemRepository,
	ledgerRepo inventory.LedgerRepository,
	settingsRepo reorder.SettingsRepository,
) *ReorderService {
	return &ReorderService{
		stockItemRepo: stockItemRepo,
		ledgerRepo:    ledgerRepo,
		settingsRepo:  settingsRepo,
		defaults:      reorder.DefaultPolicy(),
	}
}

// SetDefaultPolicy replaces the policy of tenants that saved none
func (s *ReorderService) SetDefaultPolicy(p reorder.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.defaults = p
	return nil
}

// ===================== Suggestions =====================

// SuggestionsResponse lists the reorder suggestions of a tenant
type SuggestionsResponse struct {
	GeneratedAt        time.Time            `json:"generated_at"`
	Policy             reorder.Policy       `json:"policy"`
	Suggestions        []reorder.Suggestion `json:"suggestions"`
	TotalEstimatedCost decimal.Decimal      `json:"total_estimated_cost"`
}

var urgencyRank = map[reorder.Urgency]int{
	reorder.UrgencyCritical: 0,
	reorder.UrgencyHigh:     1,
	reorder.UrgencyNormal:   2,
}

// Suggestions proposes a reorder quantity for every active item whose
// inventory position is at or below its reorder point, most urgent first
func (s *ReorderService) Suggestions(ctx context.Context, tc *shared.TenantContext) (*SuggestionsResponse, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}
	policy, err := s.policy(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}

	items, err := s.stockItemRepo.ListAtOrBelowReorderPoint(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}

	now := shared.Now()
	sold, err := s.ledgerRepo.SoldSince(ctx, tc.TenantID, now.AddDate(0, 0, -policy.VelocityWindowDays))
	if err != nil {
		return nil, err
	}

	resp := &SuggestionsResponse{
		GeneratedAt:        now,
		Policy:             policy,
		Suggestions:        make([]reorder.Suggestion, 0, len(items)),
		TotalEstimatedCost: decimal.Zero,
	}
	for i := range items {
		item := &items[i]
		velocity := reorder.Velocity(sold[item.ID], policy.VelocityWindowDays)
		suggestion, ok := policy.Suggest(snapshot(item), velocity)
		if !ok {
			continue
		}
		resp.Suggestions = append(resp.Suggestions, suggestion)
		resp.TotalEstimatedCost = resp.TotalEstimatedCost.Add(suggestion.EstimatedCost)
	}

	sort.SliceStable(resp.Suggestions, func(i, j int) bool {
		a, b := resp.Suggestions[i], resp.Suggestions[j]
		if urgencyRank[a.Urgency] != urgencyRank[b.Urgency] {
			return urgencyRank[a.Urgency] < urgencyRank[b.Urgency]
		}
		return a.SKU < b.SKU
	})

	logger.L(ctx).Debug("reorder suggestions computed",
		zap.Int("candidates", len(items)),
		zap.Int("suggestions", len(resp.Suggestions)),
	)
	return resp, nil
}

// ===================== Dead Stock =====================

// DeadStockItem is a stocked item without a recent sale
type DeadStockItem struct {
	StockItemID   uuid.UUID       `json:"stock_item_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	OnHand        int64           `json:"on_hand"`
	StockValue    decimal.Decimal `json:"stock_value"`
	LastSoldAt    *time.Time      `json:"last_sold_at,omitempty"`
	DaysSinceSale int             `json:"days_since_sale"`
}

// DeadStock lists items with stock on hand and no sale within the tenant's
// dead stock threshold, oldest first
func (s *ReorderService) DeadStock(ctx context.Context, tc *shared.TenantContext) ([]DeadStockItem, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}
	policy, err := s.policy(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}
	items, err := s.stockItemRepo.ListActive(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}

	now := shared.Now()
	out := make([]DeadStockItem, 0)
	for i := range items {
		item := &items[i]
		snap := snapshot(item)
		if !policy.IsDeadStock(snap, now) {
			continue
		}
		since := item.CreatedAt
		if item.LastSoldAt != nil {
			since = *item.LastSoldAt
		}
		out = append(out, DeadStockItem{
			StockItemID:   item.ID,
			SKU:           item.SKU,
			Name:          item.Name,
			OnHand:        item.QuantityOnHand(),
			StockValue:    item.Cost.Mul(decimal.NewFromInt(item.QuantityOnHand())),
			LastSoldAt:    item.LastSoldAt,
			DaysSinceSale: reorder.DaysSince(since, now),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysSinceSale != out[j].DaysSinceSale {
			return out[i].DaysSinceSale > out[j].DaysSinceSale
		}
		return out[i].SKU < out[j].SKU
	})
	return out, nil
}

// ===================== Settings =====================

// SettingsResponse is a tenant's reorder policy
type SettingsResponse struct {
	reorder.Policy
	IsDefault bool       `json:"is_default"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// UpdateSettingsRequest replaces a tenant's reorder policy
type UpdateSettingsRequest struct {
	LeadTimeDays       int `json:"lead_time_days" binding:"min=0,max=365"`
	SafetyStockDays    int `json:"safety_stock_days" binding:"min=0,max=365"`
	VelocityWindowDays int `json:"velocity_window_days" binding:"required,min=1,max=365"`
	ReviewPeriodDays   int `json:"review_period_days" binding:"min=0,max=365"`
	DeadStockDays      int `json:"dead_stock_days" binding:"required,min=1,max=3650"`
}

// GetSettings returns the tenant's policy, or the defaults when none is saved
func (s *ReorderService) GetSettings(ctx context.Context, tc *shared.TenantContext) (*SettingsResponse, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}
	settings, err := s.settingsRepo.Find(ctx, tc.TenantID)
	if errors.Is(err, shared.ErrNotFound) {
		return &SettingsResponse{Policy: s.defaults, IsDefault: true}, nil
	}
	if err != nil {
		return nil, err
	}
	updatedAt := settings.UpdatedAt
	return &SettingsResponse{Policy: settings.Policy, UpdatedBy: settings.UpdatedBy, UpdatedAt: &updatedAt}, nil
}

// UpdateSettings validates and saves the tenant's policy
func (s *ReorderService) UpdateSettings(ctx context.Context, tc *shared.TenantContext, req UpdateSettingsRequest) (*SettingsResponse, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}
	policy := reorder.Policy{
		LeadTimeDays:       req.LeadTimeDays,
		SafetyStockDays:    req.SafetyStockDays,
		VelocityWindowDays: req.VelocityWindowDays,
		ReviewPeriodDays:   req.ReviewPeriodDays,
		DeadStockDays:      req.DeadStockDays,
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	actor := tc.ActorID
	settings := &reorder.Settings{
		TenantID:  tc.TenantID,
		Policy:    policy,
		UpdatedBy: &actor,
		UpdatedAt: shared.Now(),
	}
	if err := s.settingsRepo.Save(ctx, settings); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("reorder settings updated",
		zap.Int("lead_time_days", policy.LeadTimeDays),
		zap.Int("velocity_window_days", policy.VelocityWindowDays),
	)
	return &SettingsResponse{Policy: policy, UpdatedBy: settings.UpdatedBy, UpdatedAt: &settings.UpdatedAt}, nil
}

func (s *ReorderService) policy(ctx context.Context, tenantID uuid.UUID) (reorder.Policy, error) {
	settings, err := s.settingsRepo.Find(ctx, tenantID)
	if errors.Is(err, shared.ErrNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return reorder.Policy{}, err
	}
	return settings.Policy, nil
}

func snapshot(item *inventory.StockItem) reorder.ItemSnapshot {
	return reorder.ItemSnapshot{
		StockItemID:     item.ID,
		SKU:             item.SKU,
		Name:            item.Name,
		OnHand:          item.QuantityOnHand(),
		OnOrder:         item.QuantityOnOrder(),
		ReorderPoint:    item.ReorderPoint,
		ReorderQuantity: item.ReorderQuantity,
		LeadTimeDays:    item.LeadTimeDays,
		SupplierID:      item.SupplierID,
		Cost:            item.Cost,
		LastSoldAt:      item.LastSoldAt,
		CreatedAt:       item.CreatedAt,
	}
}
