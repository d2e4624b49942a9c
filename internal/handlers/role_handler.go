package handlers

import (
	"context"
	"net/http"

	"quality-hub/internal/models"
	"quality-hub/internal/service"
)

// RoleService manages quality roles of staff members
type RoleService interface {
	GetQualityRole(ctx context.Context, tenantID, userID string) (*service.StaffQualityRole, error)
	AssignQualityRole(ctx context.Context, actor models.Actor, userID, role string) (*service.StaffQualityRole, error)
	RemoveQualityRole(ctx context.Context, actor models.Actor, userID string) error
}

// RoleHandler handles quality role requests
type RoleHandler struct {
	roles RoleService
}

// NewRoleHandler creates a new role handler
func NewRoleHandler(roles RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// AssignRoleRequest names the quality role to assign
type AssignRoleRequest struct {
	Role string `json:"role" example:"team_leader"`
}

// GetQualityRole returns the roles of one staff member
// @Summary Get staff quality role
// @Tags Business
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Staff user ID"
// @Success 200 {object} SuccessResponse{data=service.StaffQualityRole}
// @Failure 404 {object} ErrorResponse
// @Router /business/staff/{userId}/quality-role [get]
func (h *RoleHandler) GetQualityRole(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	role, err := h.roles.GetQualityRole(r.Context(), actor.TenantID, r.PathValue("userId"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Quality role retrieved", role)
}

// AssignQualityRole sets the quality role of a staff member
// @Summary Assign quality role
// @Tags Business
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Staff user ID"
// @Param body body AssignRoleRequest true "Role"
// @Success 200 {object} SuccessResponse{data=service.StaffQualityRole}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /business/staff/{userId}/quality-role [put]
func (h *RoleHandler) AssignQualityRole(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	var req AssignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	role, err := h.roles.AssignQualityRole(r.Context(), actor, r.PathValue("userId"), req.Role)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Quality role assigned", role)
}

// RemoveQualityRole clears the quality role of a staff member
// @Summary Remove quality role
// @Tags Business
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Staff user ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /business/staff/{userId}/quality-role [delete]
func (h *RoleHandler) RemoveQualityRole(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if err := h.roles.RemoveQualityRole(r.Context(), actor, r.PathValue("userId")); err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Quality role removed", nil)
}

// MyQualityRole returns the caller's effective role and permissions
// @Summary Get own quality role
// @Tags Staff
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SuccessResponse{data=service.StaffQualityRole}
// @Failure 404 {object} ErrorResponse
// @Router /staff/quality-roles/me [get]
func (h *RoleHandler) MyQualityRole(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	role, err := h.roles.GetQualityRole(r.Context(), actor.TenantID, actor.UserID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Quality role retrieved", role)
}
