package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
)

// AuditEntry describes one audited action
type AuditEntry struct {
	Action       string
	ResourceType string
	ResourceID   string
	OldValues    any
	NewValues    any
	// Severity applies to successful outcomes; failures are graded by error code
	Severity models.Severity
}

// AuditService handles audit logging
type AuditService struct {
	auditRepo AuditStore
}

// NewAuditService creates a new audit service
func NewAuditService(auditRepo AuditStore) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
	}
}

// Record writes an audit entry for the outcome of an operation. A failure to
// write is logged and never propagated.
func (s *AuditService) Record(ctx context.Context, actor models.Actor, entry AuditEntry, opErr error) {
	log := &models.AuditLog{
		ID:           uuid.NewString(),
		TenantID:     actor.TenantID,
		ActorRole:    actor.Role,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Success:      opErr == nil,
		Severity:     severityFor(entry.Severity, opErr),
		OldValues:    marshalAuditValues(entry.OldValues),
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		RequestID:    actor.RequestID,
	}
	if validUUID(actor.UserID) {
		log.ActorID = stringPtr(actor.UserID)
	}
	if opErr == nil {
		log.NewValues = marshalAuditValues(entry.NewValues)
	} else {
		log.ErrorMessage = opErr.Error()
	}

	if !validUUID(log.TenantID) {
		slog.Warn("Skipping audit entry without tenant", "action", entry.Action)
		return
	}

	if err := s.auditRepo.Create(ctx, log); err != nil {
		slog.Error("Failed to write audit log",
			"error", err,
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
		)
	}
}

// List returns a page of the tenant's audit trail
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) (models.Page[models.AuditLog], error) {
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)

	logs, total, err := s.auditRepo.List(ctx, filter)
	if err != nil {
		return models.Page[models.AuditLog]{}, apperr.Internal(err, "failed to list audit logs")
	}
	return models.NewPage(logs, total, filter.Page, filter.Limit), nil
}

func severityFor(success models.Severity, err error) models.Severity {
	if err == nil {
		if success == "" {
			return models.SeverityLow
		}
		return success
	}
	switch apperr.CodeOf(err) {
	case apperr.CodeNotFound, apperr.CodeInternal:
		return models.SeverityHigh
	case apperr.CodePermissionDenied, apperr.CodeUnauthorized:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func marshalAuditValues(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal audit values", "error", err)
		return nil
	}
	if string(b) == "null" {
		return nil
	}
	return b
}
