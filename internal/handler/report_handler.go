package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/checkin-sync-agent/internal/dto"
	"github.com/noah-isme/checkin-sync-agent/internal/service"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
	"github.com/noah-isme/checkin-sync-agent/pkg/response"
)

type reportService interface {
	Roster(ctx context.Context, eventID int64, format dto.RosterFormat) (*service.ExportResult, error)
}

// ReportHandler exposes roster exports.
type ReportHandler struct {
	service   reportService
	validator *validator.Validate
}

// NewReportHandler constructs handler.
func NewReportHandler(svc reportService, validate *validator.Validate) *ReportHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ReportHandler{service: svc, validator: validate}
}

// Roster godoc
// @Summary Export event roster
// @Description Attendee roster with check-in status as CSV or PDF, built from the local cache
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param id path int true "Event ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/roster [get]
func (h *ReportHandler) Roster(c *gin.Context) {
	eventID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RosterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv or pdf"))
		return
	}

	res, err := h.service.Roster(c.Request.Context(), eventID, req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, res.Filename, res.ContentType, res.Data)
}
