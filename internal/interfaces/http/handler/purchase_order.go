package handler

import (
	"github.com/gin-gonic/gin"
	apptrade "github.com/stockledger/backend/internal/application/trade"
)

// PurchaseOrderHandler serves the purchase order lifecycle
type PurchaseOrderHandler struct {
	BaseHandler
	orderService *apptrade.PurchaseOrderService
}

// NewPurchaseOrderHandler creates a new PurchaseOrderHandler
func NewPurchaseOrderHandler(orderService *apptrade.PurchaseOrderService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{orderService: orderService}
}

// Create handles POST /purchase-orders
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	key, ok := h.IdempotencyKey(c)
	if !ok {
		return
	}
	var req apptrade.CreatePurchaseOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = key

	order, err := h.orderService.Create(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// CreateFromSuggestions handles POST /purchase-orders/from-suggestions
func (h *PurchaseOrderHandler) CreateFromSuggestions(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	key, ok := h.IdempotencyKey(c)
	if !ok {
		return
	}
	var req apptrade.CreateFromSuggestionsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = key

	result, err := h.orderService.CreateFromSuggestions(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Replayed {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// GetByID handles GET /purchase-orders/:id
func (h *PurchaseOrderHandler) GetByID(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.GetByID(c.Request.Context(), tc, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// List handles GET /purchase-orders
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var filter apptrade.PurchaseOrderListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	orders, total, err := h.orderService.List(c.Request.Context(), tc, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize, 20)
	h.SuccessWithMeta(c, orders, total, page, pageSize)
}

// AddLine handles POST /purchase-orders/:id/lines
func (h *PurchaseOrderHandler) AddLine(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req apptrade.PurchaseOrderLineInput
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.orderService.AddLine(c.Request.Context(), tc, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// UpdateLineQuantity handles PUT /purchase-orders/:id/lines/:line_id
func (h *PurchaseOrderHandler) UpdateLineQuantity(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.UUIDParam(c, "line_id")
	if !ok {
		return
	}
	var req apptrade.UpdateLineQuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.orderService.UpdateLineQuantity(c.Request.Context(), tc, id, lineID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// RemoveLine handles DELETE /purchase-orders/:id/lines/:line_id
func (h *PurchaseOrderHandler) RemoveLine(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.UUIDParam(c, "line_id")
	if !ok {
		return
	}
	order, err := h.orderService.RemoveLine(c.Request.Context(), tc, id, lineID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Place handles POST /purchase-orders/:id/place. Ordered quantities become on-order.
func (h *PurchaseOrderHandler) Place(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.Place(c.Request.Context(), tc, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Receive handles POST /purchase-orders/:id/receive
func (h *PurchaseOrderHandler) Receive(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req apptrade.ReceiveRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.orderService.Receive(c.Request.Context(), tc, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Cancel handles POST /purchase-orders/:id/cancel. An empty body is allowed.
func (h *PurchaseOrderHandler) Cancel(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req apptrade.CancelPurchaseOrderRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	order, err := h.orderService.Cancel(c.Request.Context(), tc, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}
