package handler

import (
	"github.com/gin-gonic/gin"
	appreorder "github.com/stockledger/backend/internal/application/reorder"
)

// ReorderHandler serves reorder suggestions and the tenant's reorder policy
type ReorderHandler struct {
	BaseHandler
	reorderService *appreorder.ReorderService
}

// NewReorderHandler creates a new ReorderHandler
func NewReorderHandler(reorderService *appreorder.ReorderService) *ReorderHandler {
	return &ReorderHandler{reorderService: reorderService}
}

// Suggestions handles GET /reorder/suggestions
func (h *ReorderHandler) Suggestions(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	result, err := h.reorderService.Suggestions(c.Request.Context(), tc)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// DeadStock handles GET /reorder/dead-stock
func (h *ReorderHandler) DeadStock(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	items, err := h.reorderService.DeadStock(c.Request.Context(), tc)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// GetSettings handles GET /reorder/settings
func (h *ReorderHandler) GetSettings(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	settings, err := h.reorderService.GetSettings(c.Request.Context(), tc)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}

// UpdateSettings handles PUT /reorder/settings
func (h *ReorderHandler) UpdateSettings(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var req appreorder.UpdateSettingsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	settings, err := h.reorderService.UpdateSettings(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}
