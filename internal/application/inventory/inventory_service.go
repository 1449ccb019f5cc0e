package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/trade"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// InventoryService handles stock item registration, ledger changes that do
// not belong to a sale or purchase order, and ledger queries.
type InventoryService struct {
	writer        *LedgerWriter
	stockItemRepo inventory.StockItemRepository
	ledgerRepo    inventory.LedgerRepository
	maxBatchRows  int
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(
	writer *LedgerWriter,
	stockItemRepo inventory.StockItemRepository,
	ledgerRepo inventory.LedgerRepository,
) *InventoryService {
	return &InventoryService{
		writer:        writer,
		stockItemRepo: stockItemRepo,
		ledgerRepo:    ledgerRepo,
	}
}

// SetMaxBatchRows caps ApplyBatch; zero leaves only the request binding limit
func (s *InventoryService) SetMaxBatchRows(n int) {
	s.maxBatchRows = n
}

// RegisterItem creates a stock item and its creation ledger entry
func (s *InventoryService) RegisterItem(ctx context.Context, tc *shared.TenantContext, req RegisterItemRequest) (*StockItemResponse, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}

	item, entry, err := inventory.NewStockItem(tc.TenantID, tc.ActorID, inventory.NewStockItemParams{
		SKU:             req.SKU,
		Name:            req.Name,
		InitialQuantity: req.InitialQuantity,
		Cost:            req.Cost,
		LandedCost:      req.LandedCost,
		ReorderPoint:    req.ReorderPoint,
		ReorderQuantity: req.ReorderQuantity,
		LeadTimeDays:    req.LeadTimeDays,
		SupplierID:      req.SupplierID,
		Notes:           req.Notes,
	})
	if err != nil {
		return nil, err
	}

	_, err = s.writer.Run(ctx, tc, "register", func(tx *LedgerTx) error {
		exists, err := tx.StockItemRepo().ExistsBySKU(ctx, tc.TenantID, item.SKU)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewDomainErrorf(shared.CodeAlreadyExists, "SKU %s is already registered", item.SKU)
		}
		return tx.Register(ctx, item, entry)
	})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, shared.NewDomainErrorf(shared.CodeAlreadyExists, "SKU %s is already registered", item.SKU)
		}
		return nil, err
	}

	logger.L(ctx).Info("stock item registered",
		zap.String("sku", item.SKU),
		zap.Int64("initial_quantity", req.InitialQuantity),
	)
	response := ToStockItemResponse(item)
	return &response, nil
}

// Append applies a generic ledger change. Purchase receipts are excluded:
// they also move on-order stock and are recorded through purchase orders.
func (s *InventoryService) Append(ctx context.Context, tc *shared.TenantContext, req AppendRequest) (*LedgerEntryResponse, error) {
	change := inventory.ChangeType(req.ChangeType)
	if !change.IsValid() {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "Unknown change type %q", req.ChangeType)
	}
	if change == inventory.ChangeTypePurchaseReceipt {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Purchase receipts are recorded by receiving a purchase order")
	}

	entry, err := s.writer.Append(ctx, tc, AppendCommand{
		SKU:        req.SKU,
		ChangeType: change,
		Delta:      req.Delta,
		RelatedID:  req.RelatedID,
		Notes:      req.Notes,
	})
	if err != nil {
		return nil, err
	}
	response := ToLedgerEntryResponse(entry)
	return &response, nil
}

// Adjust records a manual correction
func (s *InventoryService) Adjust(ctx context.Context, tc *shared.TenantContext, req AdjustRequest) (*LedgerEntryResponse, error) {
	return s.Append(ctx, tc, AppendRequest{
		SKU:        req.SKU,
		ChangeType: inventory.ChangeTypeManualAdjustment.String(),
		Delta:      req.Delta,
		Notes:      req.Notes,
	})
}

// SetCount brings on-hand to a counted quantity. It returns nil without
// writing anything when the count already matches.
func (s *InventoryService) SetCount(ctx context.Context, tc *shared.TenantContext, req SetCountRequest) (*LedgerEntryResponse, error) {
	if req.Counted < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidQuantity, "Counted quantity cannot be negative")
	}

	var entry *inventory.LedgerEntry
	_, err := s.writer.Run(ctx, tc, "set_count", func(tx *LedgerTx) error {
		locks, err := tx.Lock(ctx, req.SKU)
		if err != nil {
			return err
		}
		item, err := locks.Item(mustSKU(req.SKU))
		if err != nil {
			return err
		}
		delta := req.Counted - item.QuantityOnHand()
		if delta == 0 {
			return nil
		}
		notes := req.Notes
		if notes == "" {
			notes = "cycle count"
		}
		entry, err = locks.Append(ctx, AppendCommand{
			SKU:        item.SKU,
			ChangeType: inventory.ChangeTypeManualAdjustment,
			Delta:      delta,
			Notes:      notes,
		})
		return err
	})
	if err != nil || entry == nil {
		return nil, err
	}
	response := ToLedgerEntryResponse(entry)
	return &response, nil
}

// RecordReturn puts returned units back on hand. With a sales order the
// order must belong to the tenant, contain the SKU, and the total returned
// may not exceed what was sold.
func (s *InventoryService) RecordReturn(ctx context.Context, tc *shared.TenantContext, req RecordReturnRequest) (*LedgerEntryResponse, error) {
	if req.Quantity <= 0 {
		return nil, shared.ErrInvalidQuantity
	}

	var entry *inventory.LedgerEntry
	_, err := s.writer.Run(ctx, tc, "return", func(tx *LedgerTx) error {
		locks, err := tx.Lock(ctx, req.SKU)
		if err != nil {
			return err
		}
		sku := mustSKU(req.SKU)

		if req.SalesOrderID != nil {
			if err := s.checkReturnable(ctx, tx, sku, *req.SalesOrderID, req.Quantity); err != nil {
				return err
			}
		}

		entry, err = locks.Append(ctx, AppendCommand{
			SKU:        sku,
			ChangeType: inventory.ChangeTypeReturn,
			Delta:      req.Quantity,
			RelatedID:  req.SalesOrderID,
			Notes:      req.Notes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	response := ToLedgerEntryResponse(entry)
	return &response, nil
}

// checkReturnable runs after the item row is locked, so concurrent returns
// against the same order and SKU see each other's entries.
func (s *InventoryService) checkReturnable(ctx context.Context, tx *LedgerTx, sku string, orderID uuid.UUID, qty int64) error {
	order, err := FindOwned(ctx, tx.Tenant(), "Sales order", orderID,
		func() (*trade.SalesOrder, error) {
			return tx.SalesOrderRepo().FindByIDForTenant(ctx, tx.Tenant().TenantID, orderID)
		},
		func() (*trade.SalesOrder, error) {
			return tx.SalesOrderRepo().FindByIDAnyTenant(ctx, orderID)
		},
	)
	if err != nil {
		return err
	}

	sold := order.QuantityOf(sku)
	if sold == 0 {
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "SKU %s was not sold on order %s", sku, order.OrderNumber)
	}

	related, err := tx.LedgerRepo().ListByRelated(ctx, tx.Tenant().TenantID, orderID)
	if err != nil {
		return err
	}
	var returned int64
	for _, e := range related {
		if e.SKU == sku && e.ChangeType == inventory.ChangeTypeReturn {
			returned += e.QuantityChange
		}
	}
	if qty > sold-returned {
		return shared.NewDomainErrorf(shared.CodeInvalidQuantity,
			"Cannot return %d of %s: sold %d, already returned %d", qty, sku, sold, returned)
	}
	return nil
}

// ApplyBatch applies import rows in one transaction. All SKUs are locked up
// front in sorted order; a failing row rolls back the whole batch and the
// error names the row.
func (s *InventoryService) ApplyBatch(ctx context.Context, tc *shared.TenantContext, req ApplyBatchRequest) (*ApplyBatchResponse, error) {
	if len(req.Rows) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Batch has no rows")
	}
	if s.maxBatchRows > 0 && len(req.Rows) > s.maxBatchRows {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "Batch has %d rows; the limit is %d", len(req.Rows), s.maxBatchRows)
	}

	cmds := make([]AppendCommand, len(req.Rows))
	skus := make([]string, len(req.Rows))
	for i, row := range req.Rows {
		change := inventory.ChangeTypeManualAdjustment
		if row.ChangeType != "" {
			change = inventory.ChangeType(row.ChangeType)
		}
		if change == inventory.ChangeTypePurchaseReceipt || change == inventory.ChangeTypeCreation || !change.IsValid() {
			return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "row %d: change type %q is not allowed in a batch", i+1, row.ChangeType)
		}
		cmds[i] = AppendCommand{SKU: row.SKU, ChangeType: change, Delta: row.Delta, Notes: row.Notes}
		skus[i] = row.SKU
	}

	entries, err := s.writer.Run(ctx, tc, "batch", func(tx *LedgerTx) error {
		locks, err := tx.Lock(ctx, skus...)
		if err != nil {
			return err
		}
		for i, cmd := range cmds {
			if _, err := locks.Append(ctx, cmd); err != nil {
				return rowError(i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	response := &ApplyBatchResponse{Entries: make([]LedgerEntryResponse, len(entries))}
	for i, e := range entries {
		response.Entries[i] = ToLedgerEntryResponse(e)
	}
	return response, nil
}

func rowError(i int, err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return shared.NewDomainErrorf(de.Code, "row %d: %s", i+1, de.Message)
	}
	return err
}

// RetireItem soft-deletes an item. Its history stays readable; further
// ledger writes fail with ITEM_RETIRED.
func (s *InventoryService) RetireItem(ctx context.Context, tc *shared.TenantContext, sku string) (*StockItemResponse, error) {
	var retired *inventory.StockItem
	_, err := s.writer.Run(ctx, tc, "retire", func(tx *LedgerTx) error {
		locks, err := tx.Lock(ctx, sku)
		if err != nil {
			return err
		}
		item, err := locks.Item(mustSKU(sku))
		if err != nil {
			return err
		}
		if err := item.Retire(); err != nil {
			return err
		}
		retired = item
		return tx.StockItemRepo().Save(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	logger.L(ctx).Info("stock item retired", zap.String("sku", retired.SKU))
	response := ToStockItemResponse(retired)
	return &response, nil
}

// UpdateReorderParameters changes an item's replenishment settings
func (s *InventoryService) UpdateReorderParameters(ctx context.Context, tc *shared.TenantContext, sku string, req UpdateReorderParametersRequest) (*StockItemResponse, error) {
	var updated *inventory.StockItem
	_, err := s.writer.Run(ctx, tc, "update_reorder_parameters", func(tx *LedgerTx) error {
		locks, err := tx.Lock(ctx, sku)
		if err != nil {
			return err
		}
		item, err := locks.Item(mustSKU(sku))
		if err != nil {
			return err
		}
		if err := item.UpdateReorderParameters(req.ReorderPoint, req.ReorderQuantity, req.LeadTimeDays, req.SupplierID); err != nil {
			return err
		}
		updated = item
		return tx.StockItemRepo().Save(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	response := ToStockItemResponse(updated)
	return &response, nil
}

// GetItem returns an item by SKU, retired or not
func (s *InventoryService) GetItem(ctx context.Context, tc *shared.TenantContext, sku string) (*StockItemResponse, error) {
	item, err := s.findItem(ctx, tc, sku)
	if err != nil {
		return nil, err
	}
	response := ToStockItemResponse(item)
	return &response, nil
}

// ListItems lists stock items with pagination
func (s *InventoryService) ListItems(ctx context.Context, tc *shared.TenantContext, filter StockItemListFilter) ([]StockItemResponse, int64, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, 0, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]any),
	}
	if filter.SupplierID != nil {
		domainFilter.Filters["supplier_id"] = *filter.SupplierID
	}
	if filter.BelowReorderPoint {
		domainFilter.Filters["below_reorder_point"] = true
	}
	if filter.IncludeRetired {
		domainFilter.Filters["include_retired"] = true
	}

	items, err := s.stockItemRepo.List(ctx, tc.TenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.stockItemRepo.Count(ctx, tc.TenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToStockItemResponses(items), total, nil
}

// History returns a page of an item's ledger, newest first by default
func (s *InventoryService) History(ctx context.Context, tc *shared.TenantContext, sku string, filter HistoryFilter) ([]LedgerEntryResponse, int64, error) {
	item, err := s.findItem(ctx, tc, sku)
	if err != nil {
		return nil, 0, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Filters:  make(map[string]any),
	}
	if filter.ChangeType != "" {
		domainFilter.Filters["change_type"] = filter.ChangeType
	}
	if filter.From != nil {
		domainFilter.Filters["from"] = *filter.From
	}
	if filter.To != nil {
		domainFilter.Filters["to"] = *filter.To
	}

	entries, err := s.ledgerRepo.ListByItem(ctx, tc.TenantID, item.ID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.ledgerRepo.CountByItem(ctx, tc.TenantID, item.ID)
	if err != nil {
		return nil, 0, err
	}
	return ToLedgerEntryResponses(entries), total, nil
}

// Reconcile replays an item's ledger against its projection. It takes no
// locks: entries newer than the projection snapshot are ignored, and the
// ones it covers were committed together with it.
func (s *InventoryService) Reconcile(ctx context.Context, tc *shared.TenantContext, sku string) (*inventory.ReconciliationReport, error) {
	item, err := s.findItem(ctx, tc, sku)
	if err != nil {
		return nil, err
	}
	report, err := s.reconcileItem(ctx, tc, item)
	if err != nil {
		return nil, err
	}
	if !report.Balanced() {
		logger.L(ctx).Error("ledger drift detected",
			zap.String("sku", item.SKU),
			zap.Int64("replayed", report.ReplayedQuantity),
			zap.Int64("projected", report.ProjectedQuantity),
			zap.Int("drifts", len(report.Drifts)),
			zap.Int64s("sequence_gaps", report.SequenceGaps),
		)
	}
	return &report, nil
}

// ReconcileTenant checks every item of the tenant, retired ones included
func (s *InventoryService) ReconcileTenant(ctx context.Context, tc *shared.TenantContext) (*TenantReconciliation, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}
	items, err := s.stockItemRepo.List(ctx, tc.TenantID, shared.Filter{
		Filters: map[string]any{"include_retired": true},
	})
	if err != nil {
		return nil, err
	}

	result := &TenantReconciliation{
		TenantID:   tc.TenantID,
		Items:      len(items),
		Unbalanced: make([]inventory.ReconciliationReport, 0),
		CheckedAt:  shared.Now(),
	}
	for i := range items {
		report, err := s.reconcileItem(ctx, tc, &items[i])
		if err != nil {
			return nil, err
		}
		if report.Balanced() {
			result.Balanced++
			continue
		}
		result.Unbalanced = append(result.Unbalanced, report)
	}

	if len(result.Unbalanced) > 0 {
		s.writer.metrics.RecordDrift(ctx, tc.TenantID, int64(len(result.Unbalanced)))
		logger.L(ctx).Error("tenant ledger drift detected",
			zap.String("tenant_id", tc.TenantID.String()),
			zap.Int("unbalanced_items", len(result.Unbalanced)),
		)
	}
	return result, nil
}

func (s *InventoryService) reconcileItem(ctx context.Context, tc *shared.TenantContext, item *inventory.StockItem) (inventory.ReconciliationReport, error) {
	entries, err := s.ledgerRepo.AllByItem(ctx, tc.TenantID, item.ID)
	if err != nil {
		return inventory.ReconciliationReport{}, err
	}
	covered := entries[:0]
	for _, e := range entries {
		if e.Sequence <= item.LedgerSequence() {
			covered = append(covered, e)
		}
	}
	return inventory.Reconcile(item, covered), nil
}

func (s *InventoryService) findItem(ctx context.Context, tc *shared.TenantContext, sku string) (*inventory.StockItem, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}
	normalized, err := inventory.NormalizeSKU(sku)
	if err != nil {
		return nil, err
	}
	return s.stockItemRepo.FindBySKU(ctx, tc.TenantID, normalized)
}

// mustSKU normalizes a SKU that LedgerTx.Lock has already validated
func mustSKU(sku string) string {
	normalized, _ := inventory.NormalizeSKU(sku)
	return normalized
}
