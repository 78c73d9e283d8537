package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/pkg/response"
)

type settingsService interface {
	Get(ctx context.Context) (*models.PaymentSettings, error)
	Update(ctx context.Context, actor models.Actor, req dto.PaymentSettingsRequest) (*models.PaymentSettings, error)
}

// SettingsHandler exposes the bank account students pay into.
type SettingsHandler struct {
	settings settingsService
}

// NewSettingsHandler constructs SettingsHandler.
func NewSettingsHandler(settings settingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get godoc
// @Summary Payment destination settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/payment [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Update godoc
// @Summary Replace payment destination settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.PaymentSettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /settings/payment [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.PaymentSettingsRequest
	if !bindJSON(c, &req) {
		return
	}
	settings, err := h.settings.Update(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}
