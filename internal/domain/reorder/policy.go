// Package reorder holds the replenishment rules used to propose purchase
// quantities. Nothing here mutates stock.
package reorder

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// Policy is the tenant-level replenishment rule set
type Policy struct {
	// LeadTimeDays applies to items without their own lead time
	LeadTimeDays int `json:"lead_time_days"`
	// SafetyStockDays of average demand kept as buffer
	SafetyStockDays int `json:"safety_stock_days"`
	// VelocityWindowDays is how far back sales are averaged
	VelocityWindowDays int `json:"velocity_window_days"`
	// ReviewPeriodDays is the expected time until the next replenishment review
	ReviewPeriodDays int `json:"review_period_days"`
	// DeadStockDays without a sale marks stocked items as dead
	DeadStockDays int `json:"dead_stock_days"`
}

// DefaultPolicy returns the defaults used until a tenant saves its own
func DefaultPolicy() Policy {
	return Policy{
		LeadTimeDays:       14,
		SafetyStockDays:    7,
		VelocityWindowDays: 30,
		ReviewPeriodDays:   7,
		DeadStockDays:      90,
	}
}

// Upper bounds of the policy day counts
const (
	MaxPlanningDays  = 365
	MaxDeadStockDays = 3650
)

// Validate checks the policy bounds
func (p Policy) Validate() error {
	if p.LeadTimeDays < 0 || p.SafetyStockDays < 0 || p.ReviewPeriodDays < 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Lead time, safety stock and review period cannot be negative")
	}
	if p.LeadTimeDays > MaxPlanningDays || p.SafetyStockDays > MaxPlanningDays || p.ReviewPeriodDays > MaxPlanningDays {
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "Lead time, safety stock and review period cannot exceed %d days", MaxPlanningDays)
	}
	if p.VelocityWindowDays < 1 || p.VelocityWindowDays > 365 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Velocity window must be between 1 and 365 days")
	}
	if p.DeadStockDays < 1 || p.DeadStockDays > MaxDeadStockDays {
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "Dead stock threshold must be between 1 and %d days", MaxDeadStockDays)
	}
	return nil
}

// Settings is a tenant's persisted policy
type Settings struct {
	TenantID  uuid.UUID
	Policy    Policy
	UpdatedBy *uuid.UUID
	UpdatedAt time.Time
}

// Urgency ranks suggestions
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyNormal   Urgency = "normal"
)

// ItemSnapshot is the read-only view of a stock item the engine works from
type ItemSnapshot struct {
	StockItemID     uuid.UUID
	SKU             string
	Name            string
	OnHand          int64
	OnOrder         int64
	ReorderPoint    int64
	ReorderQuantity int64
	LeadTimeDays    int
	SupplierID      *uuid.UUID
	Cost            decimal.Decimal
	LastSoldAt      *time.Time
	CreatedAt       time.Time
}

// Suggestion is an advisory replenishment quantity for one item
type Suggestion struct {
	StockItemID       uuid.UUID        `json:"stock_item_id"`
	SKU               string           `json:"sku"`
	Name              string           `json:"name"`
	SupplierID        *uuid.UUID       `json:"supplier_id,omitempty"`
	OnHand            int64            `json:"on_hand"`
	OnOrder           int64            `json:"on_order"`
	ReorderPoint      int64            `json:"reorder_point"`
	VelocityPerDay    decimal.Decimal  `json:"velocity_per_day"`
	LeadTimeDays      int              `json:"lead_time_days"`
	SafetyStock       int64            `json:"safety_stock"`
	TargetLevel       int64            `json:"target_level"`
	SuggestedQuantity int64            `json:"suggested_quantity"`
	DaysOfCover       *decimal.Decimal `json:"days_of_cover,omitempty"`
	Urgency           Urgency          `json:"urgency"`
	EstimatedCost     decimal.Decimal  `json:"estimated_cost"`
}

// Velocity is average units sold per day over windowDays
func Velocity(unitsSold int64, windowDays int) decimal.Decimal {
	if windowDays <= 0 || unitsSold <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(unitsSold).Div(decimal.NewFromInt(int64(windowDays))).Round(4)
}

// Suggest proposes a reorder quantity for item when its inventory position
// (on hand plus on order) is at or below its reorder point.
//
// The target level covers demand over the lead time and review period plus
// safety stock. The suggestion tops the position up to that target and is
// never below the item's reorder quantity, or twice its reorder point when
// no reorder quantity is set.
func (p Policy) Suggest(item ItemSnapshot, velocity decimal.Decimal) (Suggestion, bool) {
	position := item.OnHand + item.OnOrder
	if position > item.ReorderPoint {
		return Suggestion{}, false
	}

	leadTime := item.LeadTimeDays
	if leadTime <= 0 {
		leadTime = p.LeadTimeDays
	}

	safety := ceilInt(velocity.Mul(decimal.NewFromInt(int64(p.SafetyStockDays))))
	target := ceilInt(velocity.Mul(decimal.NewFromInt(int64(leadTime+p.ReviewPeriodDays)))) + safety

	qty := target - position
	floor := item.ReorderQuantity
	if floor <= 0 {
		floor = item.ReorderPoint * 2
	}
	if qty < floor {
		qty = floor
	}
	if qty <= 0 {
		return Suggestion{}, false
	}

	s := Suggestion{
		StockItemID:       item.StockItemID,
		SKU:               item.SKU,
		Name:              item.Name,
		SupplierID:        item.SupplierID,
		OnHand:            item.OnHand,
		OnOrder:           item.OnOrder,
		ReorderPoint:      item.ReorderPoint,
		VelocityPerDay:    velocity,
		LeadTimeDays:      leadTime,
		SafetyStock:       safety,
		TargetLevel:       target,
		SuggestedQuantity: qty,
		Urgency:           UrgencyNormal,
		EstimatedCost:     item.Cost.Mul(decimal.NewFromInt(qty)),
	}

	if velocity.IsPositive() {
		cover := decimal.NewFromInt(item.OnHand).Div(velocity).Round(1)
		s.DaysOfCover = &cover
		if cover.LessThan(decimal.NewFromInt(int64(leadTime))) {
			s.Urgency = UrgencyHigh
		}
	}
	if item.OnHand == 0 {
		s.Urgency = UrgencyCritical
	}
	return s, true
}

// IsDeadStock reports whether a stocked item has gone DeadStockDays without a
// sale. Items that never sold age from their creation.
func (p Policy) IsDeadStock(item ItemSnapshot, now time.Time) bool {
	if item.OnHand <= 0 {
		return false
	}
	last := item.CreatedAt
	if item.LastSoldAt != nil {
		last = *item.LastSoldAt
	}
	return now.Sub(last) >= time.Duration(p.DeadStockDays)*24*time.Hour
}

// DaysSince returns whole days between t and now
func DaysSince(t, now time.Time) int {
	if now.Before(t) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}

func ceilInt(d decimal.Decimal) int64 {
	return d.Ceil().IntPart()
}
