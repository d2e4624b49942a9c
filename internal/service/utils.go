package service

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
	"quality-hub/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// normalizePage clamps page/limit to sane bounds
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// storeError translates repository errors into coded application errors
func storeError(err error, resource, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(resource)
	case errors.Is(err, repository.ErrVersionConflict):
		return apperr.Conflict("%s was modified by another request, reload and retry", resource)
	default:
		return apperr.Internal(err, "failed to "+action)
	}
}

// checkVersion fails with Conflict when the caller's If-Match version is stale
func checkVersion(expected *int, i *models.Inspection) error {
	if expected != nil && *expected != i.Version {
		return apperr.Conflict("inspection version %d is stale, current version is %d", *expected, i.Version)
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// cleanStrings trims values and drops blanks
func cleanStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func validUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func stringPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// newEvent builds an outbox event for an inspection
func newEvent(actor models.Actor, eventType models.EventType, i *models.Inspection, roles, userIDs []string, data models.EventData) *models.OutboxEvent {
	if data == nil {
		data = models.EventData{}
	}
	var inspectionID *string
	if i != nil {
		inspectionID = stringPtr(i.ID)
		data["inspection_id"] = i.ID
		data["title"] = i.Title
		data["status"] = string(i.Status)
	}
	return &models.OutboxEvent{
		ID:               uuid.NewString(),
		TenantID:         actor.TenantID,
		EventType:        eventType,
		InspectionID:     inspectionID,
		ActorID:          actor.UserID,
		RecipientRoles:   roles,
		RecipientUserIDs: userIDs,
		Data:             data,
		Status:           models.OutboxPending,
		CreatedAt:        time.Now(),
	}
}

// snapshot is the audited view of an inspection
func snapshot(i *models.Inspection) map[string]any {
	if i == nil {
		return nil
	}
	return map[string]any{
		"status":              i.Status,
		"reviewer_id":         i.ReviewerID,
		"approver_id":         i.ApproverID,
		"revision_count":      i.RevisionCount,
		"has_critical_issues": i.HasCriticalIssues,
		"completed_date":      i.CompletedDate,
		"version":             i.Version,
	}
}
