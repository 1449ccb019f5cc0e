package trade

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/application/idempotency"
	appinv "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/trade"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Operation names used in idempotency records and metrics
const (
	OperationCreatePurchaseOrder   = "create_purchase_order"
	OperationCreateFromSuggestions = "create_from_suggestions"
)

// PurchaseOrderService manages the purchase order lifecycle. Every change to
// ordered or received quantities moves the stock items' on-order and on-hand
// counters in the same transaction.
//
// Lock order: the purchase order header first, then stock items in
// ascending SKU order.
type PurchaseOrderService struct {
	writer    *appinv.LedgerWriter
	guard     *idempotency.Guard
	orderRepo trade.PurchaseOrderRepository
}

// NewPurchaseOrderService creates a new PurchaseOrderService
func NewPurchaseOrderService(writer *appinv.LedgerWriter, guard *idempotency.Guard, orderRepo trade.PurchaseOrderRepository) *PurchaseOrderService {
	return &PurchaseOrderService{
		writer:    writer,
		guard:     guard,
		orderRepo: orderRepo,
	}
}

// Create creates a draft purchase order and raises on-order for its lines
func (s *PurchaseOrderService) Create(ctx context.Context, tc *shared.TenantContext, req CreatePurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}
	lines, err := normalizeLines(req.Lines)
	if err != nil {
		return nil, err
	}

	var (
		response PurchaseOrderResponse
		replayed bool
	)
	_, err = s.writer.Run(ctx, tc, OperationCreatePurchaseOrder, func(tx *appinv.LedgerTx) error {
		var err error
		response, replayed, err = idempotency.Execute(ctx, s.guard, tx.IdempotencyRepo(), tc, OperationCreatePurchaseOrder, req.IdempotencyKey,
			func() (PurchaseOrderResponse, error) {
				locks, err := tx.Lock(ctx, skusOf(lines)...)
				if err != nil {
					return PurchaseOrderResponse{}, err
				}
				order, err := s.newDraft(ctx, tx, locks, req.SupplierID, lines, req.IdempotencyKey)
				if err != nil {
					return PurchaseOrderResponse{}, err
				}
				order.ExpectedArrivalDate = req.ExpectedArrivalDate
				order.Notes = req.Notes
				if err := tx.PurchaseOrderRepo().Create(ctx, order); err != nil {
					return PurchaseOrderResponse{}, err
				}
				return ToPurchaseOrderResponse(order), nil
			})
		return err
	})
	if err != nil {
		return nil, err
	}

	if !replayed {
		logger.L(ctx).Info("purchase order created",
			zap.String("po_number", response.PONumber),
			zap.Int("lines", len(response.Lines)),
		)
	}
	return &response, nil
}

// newDraft builds a draft order from locked items and raises their on-order
// quantity. The order is not persisted.
func (s *PurchaseOrderService) newDraft(
	ctx context.Context,
	tx *appinv.LedgerTx,
	locks *appinv.LockSet,
	supplierID *uuid.UUID,
	lines []PurchaseOrderLineInput,
	key string,
) (*trade.PurchaseOrder, error) {
	tc := tx.Tenant()
	order, err := trade.NewPurchaseOrder(tc.TenantID, tc.ActorID, trade.GeneratePONumber(shared.Now()), supplierID)
	if err != nil {
		return nil, err
	}
	order.SetIdempotencyKey(key)
	for _, l := range lines {
		if err := addLine(ctx, locks, order, l); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func addLine(ctx context.Context, locks *appinv.LockSet, order *trade.PurchaseOrder, l PurchaseOrderLineInput) error {
	item, err := locks.Item(l.SKU)
	if err != nil {
		return err
	}
	if item.IsRetired() {
		return shared.NewDomainErrorf(shared.CodeItemRetired, "Stock item %s has been retired", item.SKU)
	}
	unitCost := item.Cost
	if l.UnitCost != nil {
		unitCost = *l.UnitCost
	}
	line, err := order.AddLine(item.ID, item.SKU, l.Quantity, unitCost)
	if err != nil {
		return err
	}
	return locks.AdjustOnOrder(ctx, item.SKU, line.QuantityOrdered)
}

// AddLine adds a SKU to an open purchase order
func (s *PurchaseOrderService) AddLine(ctx context.Context, tc *shared.TenantContext, orderID uuid.UUID, req PurchaseOrderLineInput) (*PurchaseOrderResponse, error) {
	lines, err := normalizeLines([]PurchaseOrderLineInput{req})
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, tc, "po_add_line", orderID, func(tx *appinv.LedgerTx, order *trade.PurchaseOrder) error {
		locks, err := tx.Lock(ctx, lines[0].SKU)
		if err != nil {
			return err
		}
		return addLine(ctx, locks, order, lines[0])
	})
}

// UpdateLineQuantity resizes a line; on-order moves by the difference
func (s *PurchaseOrderService) UpdateLineQuantity(ctx context.Context, tc *shared.TenantContext, orderID, lineID uuid.UUID, req UpdateLineQuantityRequest) (*PurchaseOrderResponse, error) {
	return s.mutate(ctx, tc, "po_update_line", orderID, func(tx *appinv.LedgerTx, order *trade.PurchaseOrder) error {
		line := order.Line(lineID)
		if line == nil {
			return shared.NewDomainError(shared.CodeNotFound, "Purchase order line not found")
		}
		locks, err := tx.Lock(ctx, line.SKU)
		if err != nil {
			return err
		}
		updated, delta, err := order.UpdateLineQuantity(lineID, req.Quantity)
		if err != nil {
			return err
		}
		return locks.AdjustOnOrder(ctx, updated.SKU, delta)
	})
}

// RemoveLine drops a line; its unreceived remainder leaves on-order
func (s *PurchaseOrderService) RemoveLine(ctx context.Context, tc *shared.TenantContext, orderID, lineID uuid.UUID) (*PurchaseOrderResponse, error) {
	return s.mutate(ctx, tc, "po_remove_line", orderID, func(tx *appinv.LedgerTx, order *trade.PurchaseOrder) error {
		line := order.Line(lineID)
		if line == nil {
			return shared.NewDomainError(shared.CodeNotFound, "Purchase order line not found")
		}
		locks, err := tx.Lock(ctx, line.SKU)
		if err != nil {
			return err
		}
		removed, err := order.RemoveLine(lineID)
		if err != nil {
			return err
		}
		return locks.AdjustOnOrder(ctx, removed.SKU, -removed.Remaining())
	})
}

// Place moves a draft to Ordered
func (s *PurchaseOrderService) Place(ctx context.Context, tc *shared.TenantContext, orderID uuid.UUID) (*PurchaseOrderResponse, error) {
	return s.mutate(ctx, tc, "po_place", orderID, func(_ *appinv.LedgerTx, order *trade.PurchaseOrder) error {
		return order.Place()
	})
}

// Receive records received goods. Each line moves quantity from on-order to
// on-hand through a purchase_receipt entry; any failing line rolls back the
// whole call but leaves earlier receipts untouched. The order status is
// recomputed once all lines are in.
func (s *PurchaseOrderService) Receive(ctx context.Context, tc *shared.TenantContext, orderID uuid.UUID, req ReceiveRequest) (*PurchaseOrderResponse, error) {
	if len(req.Lines) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "A receipt needs at least one line")
	}
	lines := make([]ReceiveLineInput, len(req.Lines))
	skus := make([]string, len(req.Lines))
	for i, l := range req.Lines {
		sku, err := inventory.NormalizeSKU(l.SKU)
		if err != nil {
			return nil, err
		}
		if l.Quantity <= 0 {
			return nil, shared.NewDomainErrorf(shared.CodeInvalidQuantity, "Received quantity for %s must be positive", sku)
		}
		l.SKU = sku
		lines[i] = l
		skus[i] = sku
	}

	return s.mutate(ctx, tc, "po_receive", orderID, func(tx *appinv.LedgerTx, order *trade.PurchaseOrder) error {
		locks, err := tx.Lock(ctx, skus...)
		if err != nil {
			return err
		}
		for _, l := range lines {
			line, err := order.Receive(l.SKU, l.Quantity)
			if err != nil {
				return err
			}
			unitCost := l.UnitCost
			if unitCost == nil {
				cost := line.UnitCost
				unitCost = &cost
			}
			notes := req.Notes
			if notes == "" {
				notes = order.PONumber
			}
			if _, err := locks.Receive(ctx, l.SKU, l.Quantity, unitCost, order.ID, notes); err != nil {
				return err
			}
		}
		order.RecomputeStatus()
		return nil
	})
}

// Cancel cancels a draft or ordered purchase order and releases the
// unreceived quantity of every line from on-order
func (s *PurchaseOrderService) Cancel(ctx context.Context, tc *shared.TenantContext, orderID uuid.UUID, req CancelPurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	return s.mutate(ctx, tc, "po_cancel", orderID, func(tx *appinv.LedgerTx, order *trade.PurchaseOrder) error {
		remainders, err := order.Cancel(req.Reason)
		if err != nil {
			return err
		}
		if len(remainders) == 0 {
			return nil
		}
		skus := make([]string, len(remainders))
		for i, r := range remainders {
			skus[i] = r.SKU
		}
		locks, err := tx.Lock(ctx, skus...)
		if err != nil {
			return err
		}
		for _, r := range remainders {
			if err := locks.AdjustOnOrder(ctx, r.SKU, -r.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

// mutate locks the order header, applies fn and saves the order in one
// transaction
func (s *PurchaseOrderService) mutate(
	ctx context.Context,
	tc *shared.TenantContext,
	operation string,
	orderID uuid.UUID,
	fn func(tx *appinv.LedgerTx, order *trade.PurchaseOrder) error,
) (*PurchaseOrderResponse, error) {
	var order *trade.PurchaseOrder
	_, err := s.writer.Run(ctx, tc, operation, func(tx *appinv.LedgerTx) error {
		var err error
		order, err = appinv.FindOwned(ctx, tc, "Purchase order", orderID,
			func() (*trade.PurchaseOrder, error) {
				return tx.PurchaseOrderRepo().FindByIDForUpdate(ctx, tc.TenantID, orderID)
			},
			func() (*trade.PurchaseOrder, error) {
				return tx.PurchaseOrderRepo().FindByIDAnyTenant(ctx, orderID)
			},
		)
		if err != nil {
			return err
		}
		if err := fn(tx, order); err != nil {
			return err
		}
		return tx.PurchaseOrderRepo().Save(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("purchase order updated",
		zap.String("operation", operation),
		zap.String("po_number", order.PONumber),
		zap.String("status", order.Status.String()),
	)
	response := ToPurchaseOrderResponse(order)
	return &response, nil
}

// CreateFromSuggestions creates one draft purchase order per supplier from
// accepted reorder suggestions, all in one transaction. With an idempotency
// key a retried call creates nothing and returns the orders made by the
// first call in their current state.
func (s *PurchaseOrderService) CreateFromSuggestions(ctx context.Context, tc *shared.TenantContext, req CreateFromSuggestionsRequest) (*CreateFromSuggestionsResponse, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "No suggestions to convert")
	}
	lines := make([]SuggestionLineInput, len(req.Lines))
	skus := make([]string, len(req.Lines))
	seen := make(map[string]bool, len(req.Lines))
	for i, l := range req.Lines {
		sku, err := inventory.NormalizeSKU(l.SKU)
		if err != nil {
			return nil, err
		}
		if l.Quantity <= 0 {
			return nil, shared.NewDomainErrorf(shared.CodeInvalidQuantity, "Quantity for %s must be positive", sku)
		}
		if seen[sku] {
			return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "SKU %s appears more than once", sku)
		}
		seen[sku] = true
		l.SKU = sku
		lines[i] = l
		skus[i] = sku
	}

	var (
		orders   []PurchaseOrderResponse
		replayed bool
	)
	_, err := s.writer.Run(ctx, tc, OperationCreateFromSuggestions, func(tx *appinv.LedgerTx) error {
		var err error
		orders, replayed, err = idempotency.Execute(ctx, s.guard, tx.IdempotencyRepo(), tc, OperationCreateFromSuggestions, req.IdempotencyKey,
			func() ([]PurchaseOrderResponse, error) {
				return s.createPerSupplier(ctx, tx, lines, skus, req.IdempotencyKey)
			})
		return err
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		current, err := s.orderRepo.FindByIdempotencyKey(ctx, tc.TenantID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if len(current) > 0 {
			orders = ToPurchaseOrderResponses(current)
		}
	} else {
		logger.L(ctx).Info("purchase orders created from suggestions",
			zap.Int("orders", len(orders)),
			zap.Int("lines", len(lines)),
		)
	}
	return &CreateFromSuggestionsResponse{Orders: orders, Replayed: replayed}, nil
}

func (s *PurchaseOrderService) createPerSupplier(ctx context.Context, tx *appinv.LedgerTx, lines []SuggestionLineInput, skus []string, key string) ([]PurchaseOrderResponse, error) {
	locks, err := tx.Lock(ctx, skus...)
	if err != nil {
		return nil, err
	}

	type group struct {
		supplierID *uuid.UUID
		lines      []PurchaseOrderLineInput
	}
	groups := make(map[uuid.UUID]*group)
	for _, l := range lines {
		item, err := locks.Item(l.SKU)
		if err != nil {
			return nil, err
		}
		supplierID := l.SupplierID
		if supplierID == nil {
			supplierID = item.SupplierID
		}
		var groupKey uuid.UUID
		if supplierID != nil {
			groupKey = *supplierID
		}
		g, ok := groups[groupKey]
		if !ok {
			g = &group{supplierID: supplierID}
			groups[groupKey] = g
		}
		g.lines = append(g.lines, PurchaseOrderLineInput{SKU: l.SKU, Quantity: l.Quantity, UnitCost: l.UnitCost})
	}

	// Deterministic order; orders without a supplier (the nil key) sort first.
	keys := make([]uuid.UUID, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	out := make([]PurchaseOrderResponse, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		order, err := s.newDraft(ctx, tx, locks, g.supplierID, g.lines, key)
		if err != nil {
			return nil, err
		}
		order.Notes = "Created from reorder suggestions"
		if err := tx.PurchaseOrderRepo().Create(ctx, order); err != nil {
			return nil, err
		}
		out = append(out, ToPurchaseOrderResponse(order))
	}
	return out, nil
}

// GetByID returns a purchase order of the tenant
func (s *PurchaseOrderService) GetByID(ctx context.Context, tc *shared.TenantContext, orderID uuid.UUID) (*PurchaseOrderResponse, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}
	order, err := appinv.FindOwned(ctx, tc, "Purchase order", orderID,
		func() (*trade.PurchaseOrder, error) { return s.orderRepo.FindByIDForTenant(ctx, tc.TenantID, orderID) },
		func() (*trade.PurchaseOrder, error) { return s.orderRepo.FindByIDAnyTenant(ctx, orderID) },
	)
	if err != nil {
		return nil, err
	}
	response := ToPurchaseOrderResponse(order)
	return &response, nil
}

// List retrieves purchase orders with filtering and pagination
func (s *PurchaseOrderService) List(ctx context.Context, tc *shared.TenantContext, filter PurchaseOrderListFilter) ([]PurchaseOrderResponse, int64, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, 0, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]any),
	}
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}
	if filter.SupplierID != nil {
		domainFilter.Filters["supplier_id"] = *filter.SupplierID
	}

	orders, err := s.orderRepo.FindAllForTenant(ctx, tc.TenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orderRepo.CountForTenant(ctx, tc.TenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToPurchaseOrderResponses(orders), total, nil
}

func normalizeLines(in []PurchaseOrderLineInput) ([]PurchaseOrderLineInput, error) {
	out := make([]PurchaseOrderLineInput, len(in))
	for i, l := range in {
		sku, err := inventory.NormalizeSKU(l.SKU)
		if err != nil {
			return nil, err
		}
		if l.Quantity <= 0 {
			return nil, shared.NewDomainErrorf(shared.CodeInvalidQuantity, "Quantity for %s must be positive", sku)
		}
		if l.UnitCost != nil && l.UnitCost.LessThan(decimal.Zero) {
			return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "Unit cost for %s cannot be negative", sku)
		}
		l.SKU = sku
		out[i] = l
	}
	return out, nil
}

func skusOf(lines []PurchaseOrderLineInput) []string {
	skus := make([]string, len(lines))
	for i, l := range lines {
		skus[i] = l.SKU
	}
	return skus
}
