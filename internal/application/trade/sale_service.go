package trade

import (
	"context"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/application/idempotency"
	appinv "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/trade"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// OperationSale names sales in idempotency records and metrics
const OperationSale = "sale"

// SaleService processes sales: every line is deducted from stock in one
// transaction or none is.
type SaleService struct {
	writer    *appinv.LedgerWriter
	guard     *idempotency.Guard
	orderRepo trade.SalesOrderRepository
}

// NewSaleService creates a new SaleService
func NewSaleService(writer *appinv.LedgerWriter, guard *idempotency.Guard, orderRepo trade.SalesOrderRepository) *SaleService {
	return &SaleService{
		writer:    writer,
		guard:     guard,
		orderRepo: orderRepo,
	}
}

// ProcessSale locks every sold SKU in ascending order, appends a sale entry
// per line and stores the order with each line's cost snapshot. Any failing
// line aborts the whole sale.
func (s *SaleService) ProcessSale(ctx context.Context, tc *shared.TenantContext, req ProcessSaleRequest) (*SaleResponse, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "A sale needs at least one line")
	}
	lines := make([]SaleLineInput, len(req.Lines))
	skus := make([]string, len(req.Lines))
	for i, l := range req.Lines {
		sku, err := inventory.NormalizeSKU(l.SKU)
		if err != nil {
			return nil, err
		}
		if l.Quantity <= 0 {
			return nil, shared.NewDomainErrorf(shared.CodeInvalidQuantity, "Quantity for %s must be positive", sku)
		}
		l.SKU = sku
		lines[i] = l
		skus[i] = sku
	}

	var (
		response SaleResponse
		replayed bool
	)
	_, err := s.writer.Run(ctx, tc, OperationSale, func(tx *appinv.LedgerTx) error {
		var err error
		response, replayed, err = idempotency.Execute(ctx, s.guard, tx.IdempotencyRepo(), tc, OperationSale, req.IdempotencyKey,
			func() (SaleResponse, error) {
				return s.sell(ctx, tx, req, lines, skus)
			})
		return err
	})
	if err != nil {
		return nil, err
	}

	if !replayed {
		logger.L(ctx).Info("sale processed",
			zap.String("order_number", response.OrderNumber),
			zap.Int("lines", len(response.Lines)),
			zap.String("total_amount", response.TotalAmount.String()),
		)
	}
	return &response, nil
}

func (s *SaleService) sell(ctx context.Context, tx *appinv.LedgerTx, req ProcessSaleRequest, lines []SaleLineInput, skus []string) (SaleResponse, error) {
	tc := tx.Tenant()
	locks, err := tx.Lock(ctx, skus...)
	if err != nil {
		return SaleResponse{}, err
	}

	order, err := trade.NewSalesOrder(tc.TenantID, tc.ActorID, trade.GenerateOrderNumber(shared.Now()), req.CustomerID)
	if err != nil {
		return SaleResponse{}, err
	}
	order.Notes = req.Notes

	for _, l := range lines {
		item, err := locks.Item(l.SKU)
		if err != nil {
			return SaleResponse{}, err
		}
		cost := item.Cost
		if _, err := locks.Append(ctx, appinv.AppendCommand{
			SKU:        l.SKU,
			ChangeType: inventory.ChangeTypeSale,
			Delta:      -l.Quantity,
			RelatedID:  &order.ID,
			Notes:      order.OrderNumber,
		}); err != nil {
			return SaleResponse{}, err
		}
		if _, err := order.AddLine(item.ID, l.SKU, l.Quantity, l.UnitPrice, cost); err != nil {
			return SaleResponse{}, err
		}
	}

	if err := tx.SalesOrderRepo().Create(ctx, order); err != nil {
		return SaleResponse{}, err
	}
	return ToSaleResponse(order), nil
}

// GetSale returns a sale of the tenant. A sale id owned by another tenant
// fails with TENANT_MISMATCH.
func (s *SaleService) GetSale(ctx context.Context, tc *shared.TenantContext, id uuid.UUID) (*SaleResponse, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, err
	}
	order, err := appinv.FindOwned(ctx, tc, "Sales order", id,
		func() (*trade.SalesOrder, error) { return s.orderRepo.FindByIDForTenant(ctx, tc.TenantID, id) },
		func() (*trade.SalesOrder, error) { return s.orderRepo.FindByIDAnyTenant(ctx, id) },
	)
	if err != nil {
		return nil, err
	}
	response := ToSaleResponse(order)
	return &response, nil
}

// ListSales lists sales with pagination, newest first by default
func (s *SaleService) ListSales(ctx context.Context, tc *shared.TenantContext, filter SaleListFilter) ([]SaleResponse, int64, error) {
	if err := shared.RequireTenant(tc); err != nil {
		return nil, 0, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
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
	if filter.CustomerID != nil {
		domainFilter.Filters["customer_id"] = *filter.CustomerID
	}

	orders, err := s.orderRepo.FindAllForTenant(ctx, tc.TenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orderRepo.CountForTenant(ctx, tc.TenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToSaleResponses(orders), total, nil
}
