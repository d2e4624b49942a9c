package service

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
)

const exportPageSize = 500

var exportHeader = []string{
	"id", "type", "status", "title", "location", "project_id", "inspector_id", "reviewer_id", "approver_id",
	"inspection_date", "submitted_date", "reviewed_date", "completed_date",
	"total_items", "passed_items", "failed_items", "overall_rating", "has_critical_issues", "revision_count",
	"final_approval_action",
}

// Stats aggregates the tenant's inspections over an optional date range
func (s *InspectionService) Stats(ctx context.Context, actor models.Actor, from, to *time.Time) (*models.InspectionStats, error) {
	a, err := s.access(ctx, actor)
	if err != nil {
		return nil, err
	}
	if perms := a.role.Permissions(); !perms.CanViewAll && !perms.CanExport {
		return nil, apperr.PermissionDenied("role %q may not view inspection statistics", a.role.Name())
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, apperr.Validation("to must not be before from")
	}

	stats, err := s.inspectionRepo.Stats(ctx, actor.TenantID, from, to)
	if err != nil {
		return nil, apperr.Internal(err, "failed to compute inspection statistics")
	}
	return stats, nil
}

// Export writes the matching inspections as CSV
func (s *InspectionService) Export(ctx context.Context, actor models.Actor, in ListInspectionsInput, w io.Writer) (err error) {
	exported := 0
	defer func() {
		s.audit.Record(ctx, actor, AuditEntry{
			Action:       models.AuditInspectionExport,
			ResourceType: models.ResourceInspection,
			NewValues:    map[string]int{"rows": exported},
			Severity:     models.SeverityMedium,
		}, err)
	}()

	a, err := s.access(ctx, actor)
	if err != nil {
		return err
	}
	if !a.role.Permissions().CanExport {
		return apperr.PermissionDenied("role %q may not export inspections", a.role.Name())
	}

	filter := models.InspectionFilter{
		TenantID:          actor.TenantID,
		Statuses:          in.Statuses,
		Type:              in.Type,
		ProjectID:         in.ProjectID,
		InspectorID:       in.InspectorID,
		ReviewerID:        in.ReviewerID,
		HasCriticalIssues: in.HasCriticalIssues,
		From:              in.From,
		To:                in.To,
		Limit:             exportPageSize,
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return apperr.Internal(err, "failed to write export")
	}

	for page := 1; ; page++ {
		filter.Page = page
		items, total, err := s.inspectionRepo.List(ctx, filter)
		if err != nil {
			return apperr.Internal(err, "failed to list inspections for export")
		}
		for idx := range items {
			if err := cw.Write(exportRow(&items[idx])); err != nil {
				return apperr.Internal(err, "failed to write export")
			}
		}
		exported += len(items)
		if len(items) < exportPageSize || exported >= total {
			break
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperr.Internal(err, "failed to write export")
	}
	return nil
}

// History returns the audit trail of one inspection
func (s *InspectionService) History(ctx context.Context, actor models.Actor, id string, page, limit int) (models.Page[models.AuditLog], error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return models.Page[models.AuditLog]{}, err
	}
	return s.audit.List(ctx, models.AuditFilter{
		TenantID:     actor.TenantID,
		ResourceType: models.ResourceInspection,
		ResourceID:   id,
		Page:         page,
		Limit:        limit,
	})
}

func exportRow(i *models.Inspection) []string {
	rating := ""
	if i.OverallRating != nil {
		rating = strconv.Itoa(*i.OverallRating)
	}
	action := ""
	if i.Metadata.FinalApproval != nil {
		action = string(i.Metadata.FinalApproval.Action)
	}
	return []string{
		i.ID,
		string(i.Type),
		string(i.Status),
		sanitizeCSV(i.Title),
		sanitizeCSV(i.Location),
		i.ProjectID,
		i.InspectorID,
		derefString(i.ReviewerID),
		derefString(i.ApproverID),
		i.InspectionDate.Format(time.RFC3339),
		formatTime(i.SubmittedDate),
		formatTime(i.ReviewedDate),
		formatTime(i.CompletedDate),
		strconv.Itoa(i.TotalItems),
		strconv.Itoa(i.PassedItems),
		strconv.Itoa(i.FailedItems),
		rating,
		strconv.FormatBool(i.HasCriticalIssues),
		strconv.Itoa(i.RevisionCount),
		action,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// sanitizeCSV neutralizes spreadsheet formula prefixes
func sanitizeCSV(v string) string {
	if v != "" && strings.ContainsRune("=+-@", rune(v[0])) {
		return "'" + v
	}
	return v
}
