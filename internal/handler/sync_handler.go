package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/checkin-sync-agent/internal/dto"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
	"github.com/noah-isme/checkin-sync-agent/pkg/response"
)

type syncService interface {
	Sync(ctx context.Context, trigger models.SyncTrigger) (*models.SyncResult, error)
	LastResult() (models.SyncResult, bool)
}

type pendingReader interface {
	Pending() []models.CheckinRecord
}

// SyncHandler exposes the pending queue and manual sync.
type SyncHandler struct {
	service syncService
	pending pendingReader
}

// NewSyncHandler constructs a SyncHandler.
func NewSyncHandler(svc syncService, pending pendingReader) *SyncHandler {
	return &SyncHandler{service: svc, pending: pending}
}

// Pending godoc
// @Summary List queued check-ins
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/pending [get]
func (h *SyncHandler) Pending(c *gin.Context) {
	pending := h.pending.Pending()
	if pending == nil {
		pending = []models.CheckinRecord{}
	}
	response.JSON(c, http.StatusOK, dto.PendingResponse{Count: len(pending), Pending: pending})
}

// Trigger godoc
// @Summary Run a sync pass now
// @Description Replays every pending check-in against the backend. Retry limits are reset for manual passes.
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sync [post]
func (h *SyncHandler) Trigger(c *gin.Context) {
	result, err := h.service.Sync(c.Request.Context(), models.SyncTriggerManual)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Last godoc
// @Summary Result of the most recent sync pass
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sync/last [get]
func (h *SyncHandler) Last(c *gin.Context) {
	result, ok := h.service.LastResult()
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no sync pass has run yet"))
		return
	}
	response.JSON(c, http.StatusOK, result)
}
