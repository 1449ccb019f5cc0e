package handler

import (
	"github.com/gin-gonic/gin"
	appinv "github.com/stockledger/backend/internal/application/inventory"
)

// InventoryHandler serves stock items and direct ledger movements
type InventoryHandler struct {
	BaseHandler
	inventoryService *appinv.InventoryService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(inventoryService *appinv.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

// RegisterItem handles POST /items
func (h *InventoryHandler) RegisterItem(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var req appinv.RegisterItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	item, err := h.inventoryService.RegisterItem(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, item)
}

// ListItems handles GET /items
func (h *InventoryHandler) ListItems(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var filter appinv.StockItemListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	items, total, err := h.inventoryService.ListItems(c.Request.Context(), tc, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize, 20)
	h.SuccessWithMeta(c, items, total, page, pageSize)
}

// GetItem handles GET /items/:sku
func (h *InventoryHandler) GetItem(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	item, err := h.inventoryService.GetItem(c.Request.Context(), tc, c.Param("sku"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// RetireItem handles DELETE /items/:sku. The item stays readable with its history.
func (h *InventoryHandler) RetireItem(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	item, err := h.inventoryService.RetireItem(c.Request.Context(), tc, c.Param("sku"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// UpdateReorderParameters handles PUT /items/:sku/reorder-parameters
func (h *InventoryHandler) UpdateReorderParameters(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var req appinv.UpdateReorderParametersRequest
	if !h.BindJSON(c, &req) {
		return
	}
	item, err := h.inventoryService.UpdateReorderParameters(c.Request.Context(), tc, c.Param("sku"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// History handles GET /items/:sku/history
func (h *InventoryHandler) History(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var filter appinv.HistoryFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	entries, total, err := h.inventoryService.History(c.Request.Context(), tc, c.Param("sku"), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize, 50)
	h.SuccessWithMeta(c, entries, total, page, pageSize)
}

// ReconcileItem handles POST /items/:sku/reconcile
func (h *InventoryHandler) ReconcileItem(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	report, err := h.inventoryService.Reconcile(c.Request.Context(), tc, c.Param("sku"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// ReconcileTenant handles POST /reconciliation
func (h *InventoryHandler) ReconcileTenant(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	result, err := h.inventoryService.ReconcileTenant(c.Request.Context(), tc)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Append handles POST /ledger/entries
func (h *InventoryHandler) Append(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var req appinv.AppendRequest
	if !h.BindJSON(c, &req) {
		return
	}
	entry, err := h.inventoryService.Append(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, entry)
}

// Adjust handles POST /ledger/adjustments
func (h *InventoryHandler) Adjust(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var req appinv.AdjustRequest
	if !h.BindJSON(c, &req) {
		return
	}
	entry, err := h.inventoryService.Adjust(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, entry)
}

// SetCount handles POST /ledger/counts. A count equal to on-hand writes
// nothing and answers 200 with the unchanged quantity.
func (h *InventoryHandler) SetCount(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var req appinv.SetCountRequest
	if !h.BindJSON(c, &req) {
		return
	}
	entry, err := h.inventoryService.SetCount(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if entry == nil {
		h.Success(c, appinv.NewUnchangedCountResponse(req))
		return
	}
	h.Created(c, entry)
}

// RecordReturn handles POST /ledger/returns
func (h *InventoryHandler) RecordReturn(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var req appinv.RecordReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	entry, err := h.inventoryService.RecordReturn(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, entry)
}

// ApplyBatch handles POST /ledger/batches. The rows commit together or not at all.
func (h *InventoryHandler) ApplyBatch(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var req appinv.ApplyBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.inventoryService.ApplyBatch(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
