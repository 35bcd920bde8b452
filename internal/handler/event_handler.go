package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/checkin-sync-agent/internal/dto"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
	"github.com/noah-isme/checkin-sync-agent/pkg/response"
)

type eventService interface {
	ListEvents(ctx context.Context) (*dto.EventListResponse, error)
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	ListAttendees(ctx context.Context, eventID int64, filter dto.AttendeeFilter) (*dto.AttendeeListResponse, error)
}

// EventHandler serves events and attendee rosters.
type EventHandler struct {
	service   eventService
	validator *validator.Validate
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc eventService, validate *validator.Validate) *EventHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &EventHandler{service: svc, validator: validate}
}

// List godoc
// @Summary List events
// @Description Returns events, refreshed from the backend when online and served from cache otherwise
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	res, err := h.service.ListEvents(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res.Events, map[string]interface{}{
		"stale":       res.Stale,
		"lastFetched": res.LastFetched,
	})
}

// Get godoc
// @Summary Get event
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	event, err := h.service.GetEvent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event)
}

// Attendees godoc
// @Summary List attendees of an event
// @Description Attendees with their resolved check-in status. A queued check-in shows as pending.
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Param search query string false "Case-insensitive match on name, email or company"
// @Param status query string false "checked_in, pending or not_checked"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events/{id}/attendees [get]
func (h *EventHandler) Attendees(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var filter dto.AttendeeFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if err := h.validator.Struct(filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status filter"))
		return
	}

	res, err := h.service.ListAttendees(c.Request.Context(), id, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}
