package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	appinv "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// DownloadLinker issues a time-limited URL for an archived object
type DownloadLinker interface {
	DownloadURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
}

// ExportLedgerRequest selects the window and format of a ledger export
type ExportLedgerRequest struct {
	From   time.Time `json:"from" binding:"required"`
	To     time.Time `json:"to" binding:"required"`
	Format string    `json:"format" binding:"omitempty,oneof=csv xlsx CSV XLSX"`
}

// ExportLedgerResponse points at the written archive
type ExportLedgerResponse struct {
	Key         string     `json:"key"`
	Format      string     `json:"format"`
	DownloadURL string     `json:"download_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// ArchiveHandler exports ledger windows to object storage
type ArchiveHandler struct {
	BaseHandler
	archiver *appinv.LedgerArchiver
	linker   DownloadLinker
	linkTTL  time.Duration
}

// NewArchiveHandler creates an ArchiveHandler. linker may be nil, in which
// case responses carry only the object key.
func NewArchiveHandler(archiver *appinv.LedgerArchiver, linker DownloadLinker, linkTTL time.Duration) *ArchiveHandler {
	return &ArchiveHandler{archiver: archiver, linker: linker, linkTTL: linkTTL}
}

// Export handles POST /ledger/archives
func (h *ArchiveHandler) Export(c *gin.Context) {
	tc := h.Tenant(c)
	if tc == nil {
		return
	}
	var req ExportLedgerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	format, err := appinv.ParseArchiveFormat(req.Format)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	ctx := c.Request.Context()
	key, err := h.archiver.Export(ctx, tc, req.From, req.To, format)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := ExportLedgerResponse{Key: key, Format: string(format)}
	if h.linker != nil {
		url, expires, err := h.linker.DownloadURL(ctx, key, h.linkTTL)
		if err != nil {
			// the archive is written; a missing link is not worth failing for
			logger.L(ctx).Warn("presign ledger archive failed", zap.String("key", key), zap.Error(err))
		} else {
			resp.DownloadURL = url
			resp.ExpiresAt = &expires
		}
	}
	h.Created(c, resp)
}
