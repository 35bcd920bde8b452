package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/checkin-sync-agent/internal/dto"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
	"github.com/noah-isme/checkin-sync-agent/internal/websocket"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
	"github.com/noah-isme/checkin-sync-agent/pkg/response"
)

type checkinService interface {
	CheckIn(ctx context.Context, eventID, attendeeID int64) (*dto.CheckinResult, error)
	RecordCheckIn(ctx context.Context, eventID, attendeeID int64, isConnected bool) (*dto.CheckinResult, error)
	GetStatus(eventID, attendeeID int64) models.AttendeeStatus
}

type checkinPublisher interface {
	Publish(msgType websocket.MessageType, payload interface{})
}

// CheckinHandler records attendee check-ins.
type CheckinHandler struct {
	service   checkinService
	publisher checkinPublisher
	validator *validator.Validate
}

// NewCheckinHandler constructs a CheckinHandler. publisher may be nil.
func NewCheckinHandler(svc checkinService, publisher checkinPublisher, validate *validator.Validate) *CheckinHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &CheckinHandler{service: svc, publisher: publisher, validator: validate}
}

// Create godoc
// @Summary Check an attendee in
// @Description Submits the check-in when online. Offline or failed submissions are queued and answered with 202.
// @Tags Check-ins
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param payload body dto.CheckinRequest true "Check-in payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events/{id}/checkins [post]
func (h *CheckinHandler) Create(c *gin.Context) {
	eventID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "attendeeId must be a positive integer"))
		return
	}

	var result *dto.CheckinResult
	if req.Connected != nil {
		result, err = h.service.RecordCheckIn(c.Request.Context(), eventID, req.AttendeeID, *req.Connected)
	} else {
		result, err = h.service.CheckIn(c.Request.Context(), eventID, req.AttendeeID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	switch {
	case result.Duplicate:
		response.JSON(c, http.StatusOK, result)
	case result.Queued:
		h.publish(result)
		response.Accepted(c, result)
	default:
		h.publish(result)
		response.Created(c, result)
	}
}

// Status godoc
// @Summary Attendee check-in status
// @Tags Check-ins
// @Produce json
// @Param id path int true "Event ID"
// @Param attendeeId path int true "Attendee ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events/{id}/attendees/{attendeeId}/status [get]
func (h *CheckinHandler) Status(c *gin.Context) {
	eventID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	attendeeID, err := idParam(c, "attendeeId")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.StatusResponse{
		EventID:    eventID,
		AttendeeID: attendeeID,
		Status:     h.service.GetStatus(eventID, attendeeID),
	})
}

func (h *CheckinHandler) publish(result *dto.CheckinResult) {
	if h.publisher != nil {
		h.publisher.Publish(websocket.TypeCheckinRecorded, result)
	}
}
