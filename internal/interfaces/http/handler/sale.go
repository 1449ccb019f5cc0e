package handler

import (
	"github.com/gin-gonic/gin"
	apptrade "github.com/stockledger/backend/internal/application/trade"
)

// SaleHandler serves sale transactions
type SaleHandler struct {
	BaseHandler
	saleService *apptrade.SaleService
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(saleService *apptrade.SaleService) *SaleHandler {
	return &SaleHandler{saleService: saleService}
}

// ProcessSale handles POST /sales. All lines commit or none do; a repeated
// Idempotency-Key returns the original sale.
func (h *SaleHandler) ProcessSale(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	key, ok := h.IdempotencyKey(c)
	if !ok {
		return
	}
	var req apptrade.ProcessSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = key

	sale, err := h.saleService.ProcessSale(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sale)
}

// GetSale handles GET /sales/:id
func (h *SaleHandler) GetSale(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	sale, err := h.saleService.GetSale(c.Request.Context(), tc, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// ListSales handles GET /sales
func (h *SaleHandler) ListSales(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var filter apptrade.SaleListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	sales, total, err := h.saleService.ListSales(c.Request.Context(), tc, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize, 20)
	h.SuccessWithMeta(c, sales, total, page, pageSize)
}
