package handlers

import (
	"context"
	"net/http"

	"quality-hub/internal/models"
	"quality-hub/internal/service"
)

// TenantConfigService reads and updates the inspection policy of a tenant
type TenantConfigService interface {
	Get(ctx context.Context, tenantID string) (*models.TenantInspectionConfig, error)
	Update(ctx context.Context, actor models.Actor, in service.UpdateConfigInput) (*models.TenantInspectionConfig, error)
}

// ConfigHandler handles the quality configuration of a business
type ConfigHandler struct {
	configs TenantConfigService
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(configs TenantConfigService) *ConfigHandler {
	return &ConfigHandler{configs: configs}
}

// GetQualityConfig returns the caller's inspection policy
// @Summary Get quality configuration
// @Description Returns the defaults when the business has not configured a policy yet
// @Tags Business
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SuccessResponse{data=models.TenantInspectionConfig}
// @Failure 404 {object} ErrorResponse
// @Router /business/quality-config [get]
func (h *ConfigHandler) GetQualityConfig(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	cfg, err := h.configs.Get(r.Context(), actor.TenantID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Quality configuration retrieved", cfg)
}

// UpdateQualityConfig replaces the caller's inspection policy
// @Summary Update quality configuration
// @Tags Business
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.UpdateConfigInput true "Policy"
// @Success 200 {object} SuccessResponse{data=models.TenantInspectionConfig}
// @Failure 400 {object} ErrorResponse
// @Router /business/quality-config [put]
func (h *ConfigHandler) UpdateQualityConfig(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	var req service.UpdateConfigInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	cfg, err := h.configs.Update(r.Context(), actor, req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Quality configuration updated", cfg)
}
