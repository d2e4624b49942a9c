package handlers

import (
	"context"
	"net/http"
	"strings"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
)

// AuditLogReader lists audit entries
type AuditLogReader interface {
	List(ctx context.Context, filter models.AuditFilter) (models.Page[models.AuditLog], error)
}

// AuditHandler handles audit log requests
type AuditHandler struct {
	audit AuditLogReader
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit AuditLogReader) *AuditHandler {
	return &AuditHandler{
		audit: audit,
	}
}

// ListAuditLogs lists the audit trail of the caller's business
// @Summary List audit logs
// @Description Get a paginated list of audit logs of the caller's business
// @Tags Business
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param action query string false "Filter by action"
// @Param resource_type query string false "Filter by resource type"
// @Param resource_id query string false "Filter by resource ID"
// @Param actor_id query string false "Filter by actor"
// @Param success query bool false "Filter by outcome"
// @Param severity query string false "LOW, MEDIUM, HIGH or CRITICAL"
// @Success 200 {object} SuccessResponse{data=models.Page[models.AuditLog]}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /business/audit-logs [get]
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	q := r.URL.Query()
	filter := models.AuditFilter{
		TenantID:     actor.TenantID,
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		ActorID:      q.Get("actor_id"),
		Severity:     models.Severity(strings.ToUpper(q.Get("severity"))),
	}
	filter.Page, filter.Limit = parsePaginationParams(r)

	switch filter.Severity {
	case "", models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
	default:
		respondWithError(w, r, apperr.Validation("unknown severity %q", filter.Severity))
		return
	}

	if filter.Success, err = parseBoolParam(r, "success"); err != nil {
		respondWithError(w, r, err)
		return
	}

	page, err := h.audit.List(r.Context(), filter)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Audit logs retrieved", page)
}
