package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/checkin-sync-agent/internal/dto"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
	"github.com/noah-isme/checkin-sync-agent/pkg/response"
)

type connectivityReader interface {
	Connectivity() models.ConnectivityState
}

type connectivitySetter interface {
	Set(isConnected bool)
}

// ConnectivityHandler reports and accepts connectivity notifications from the host.
type ConnectivityHandler struct {
	state     connectivityReader
	source    connectivitySetter
	validator *validator.Validate
}

// NewConnectivityHandler constructs a ConnectivityHandler.
func NewConnectivityHandler(state connectivityReader, source connectivitySetter, validate *validator.Validate) *ConnectivityHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ConnectivityHandler{state: state, source: source, validator: validate}
}

// Get godoc
// @Summary Current connectivity
// @Tags Connectivity
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /connectivity [get]
func (h *ConnectivityHandler) Get(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.state.Connectivity())
}

// Set godoc
// @Summary Push a connectivity change
// @Description An offline to online transition starts a sync pass when check-ins are queued
// @Tags Connectivity
// @Accept json
// @Produce json
// @Param payload body dto.ConnectivityRequest true "Connectivity"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /connectivity [put]
func (h *ConnectivityHandler) Set(c *gin.Context) {
	var req dto.ConnectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid connectivity payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "isConnected is required"))
		return
	}
	h.source.Set(*req.IsConnected)
	response.JSON(c, http.StatusOK, h.state.Connectivity())
}
