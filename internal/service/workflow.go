package service

import (
	"context"
	"log/slog"
	"time"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
)

// SubmitInput carries optional submission notes
type SubmitInput struct {
	Notes           string `json:"notes,omitempty"`
	ExpectedVersion *int   `json:"-"`
}

// AssignInput selects the reviewer. An empty ReviewerID assigns the caller.
type AssignInput struct {
	ReviewerID      string `json:"reviewer_id,omitempty"`
	ExpectedVersion *int   `json:"-"`
}

type ApproveInput struct {
	Comments        string `json:"comments,omitempty"`
	ExpectedVersion *int   `json:"-"`
}

type RejectInput struct {
	Reason          string   `json:"reason"`
	Feedback        string   `json:"feedback"`
	RequiredChanges []string `json:"required_changes,omitempty"`
	ExpectedVersion *int     `json:"-"`
}

type RevisionInput struct {
	Feedback        string   `json:"feedback"`
	RequiredChanges []string `json:"required_changes"`
	ExpectedVersion *int     `json:"-"`
}

type FinalApproveInput struct {
	Comments                   string `json:"comments,omitempty"`
	ClientNotificationRequired bool   `json:"client_notification_required"`
	ExpectedVersion            *int   `json:"-"`
}

// OverrideInput forces a final decision past the normal review guards
type OverrideInput struct {
	Decision        models.OverrideDecision `json:"decision"`
	Reason          string                  `json:"reason"`
	Justification   string                  `json:"justification"`
	ExpectedVersion *int                    `json:"-"`
}

// step mutates a loaded inspection and returns the events to enqueue with it
type step func(ctx context.Context, a *access, i *models.Inspection, now time.Time) ([]*models.OutboxEvent, error)

type transitionSpec struct {
	action          string
	severity        models.Severity
	expectedVersion *int
	apply           step
}

// transition loads the inspection, applies one state change and persists it
// together with its outbox events. Delivery runs after commit and the outcome
// is audited either way.
func (s *InspectionService) transition(ctx context.Context, actor models.Actor, id string, t transitionSpec) (result *models.Inspection, err error) {
	var before map[string]any
	defer func() {
		s.audit.Record(ctx, actor, AuditEntry{
			Action:       t.action,
			ResourceType: models.ResourceInspection,
			ResourceID:   id,
			OldValues:    before,
			NewValues:    snapshot(result),
			Severity:     t.severity,
		}, err)
	}()

	a, err := s.access(ctx, actor)
	if err != nil {
		return nil, err
	}
	i, err := s.load(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	before = snapshot(i)

	if err := checkVersion(t.expectedVersion, i); err != nil {
		return nil, err
	}

	events, err := t.apply(ctx, a, i, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.inspectionRepo.Update(ctx, i, events...); err != nil {
		return nil, storeError(err, "inspection", "update inspection")
	}

	slog.Info("Inspection transitioned",
		"inspection_id", i.ID,
		"tenant_id", i.TenantID,
		"action", t.action,
		"status", i.Status,
		"actor_id", actor.UserID,
	)

	s.notifier.Deliver(ctx, events...)
	s.revealOverride(ctx, i)
	return i, nil
}

// requireReviewer applies the shared reviewer guard in order: role, identity, status
func requireReviewer(a *access, i *models.Inspection) error {
	if !a.canReview() {
		return apperr.PermissionDenied("role %q may not review inspections", a.role.Name())
	}
	if err := a.checkSelfReview(i); err != nil {
		return err
	}
	if !i.Status.InReviewQueue() {
		return apperr.InvalidState("inspection in status %s is not awaiting review", i.Status)
	}
	return nil
}

// Submit moves a draft to pending review
func (s *InspectionService) Submit(ctx context.Context, actor models.Actor, id string, in SubmitInput) (*models.Inspection, error) {
	return s.transition(ctx, actor, id, transitionSpec{
		action:          models.AuditInspectionSubmit,
		expectedVersion: in.ExpectedVersion,
		apply: func(_ context.Context, a *access, i *models.Inspection, now time.Time) ([]*models.OutboxEvent, error) {
			if i.InspectorID != actor.UserID {
				return nil, apperr.PermissionDenied("only the inspector may submit an inspection")
			}
			if i.Status != models.StatusDraft {
				return nil, apperr.InvalidState("only draft inspections can be submitted, current status is %s", i.Status)
			}
			if i.Type == models.InspectionTypeDetailed {
				if a.cfg.RequirePhotos && !i.HasPhotos() {
					return nil, apperr.Validation("at least one photo is required before submission")
				}
				if a.cfg.RequireSignature && !i.HasSignature() {
					return nil, apperr.Validation("a signature is required before submission")
				}
			}

			i.Status = models.StatusPending
			i.SubmittedDate = timePtr(now)
			i.Metadata.Submission = &models.SubmissionRecord{
				SubmittedBy: actor.UserID,
				SubmittedAt: now,
				Notes:       in.Notes,
			}

			return []*models.OutboxEvent{
				newEvent(actor, models.EventInspectionSubmitted, i, a.cfg.ReviewNotificationRoles(), nil, nil),
			}, nil
		},
	})
}

// Assign takes a pending inspection into review
func (s *InspectionService) Assign(ctx context.Context, actor models.Actor, id string, in AssignInput) (*models.Inspection, error) {
	return s.transition(ctx, actor, id, transitionSpec{
		action:          models.AuditInspectionAssign,
		expectedVersion: in.ExpectedVersion,
		apply: func(ctx context.Context, a *access, i *models.Inspection, now time.Time) ([]*models.OutboxEvent, error) {
			if !a.canReview() {
				return nil, apperr.PermissionDenied("role %q may not assign reviews", a.role.Name())
			}
			if i.Status != models.StatusPending {
				return nil, apperr.InvalidState("only pending inspections can be assigned, current status is %s", i.Status)
			}

			reviewerID := in.ReviewerID
			if reviewerID == "" {
				reviewerID = actor.UserID
			}
			if reviewerID != actor.UserID {
				reviewer, err := s.roles.Resolve(ctx, actor.TenantID, reviewerID)
				if err != nil {
					return nil, err
				}
				if !reviewer.In(a.cfg.CanReview) {
					return nil, apperr.Validation("assigned reviewer role %q may not review inspections", reviewer.Name())
				}
			}
			if !a.cfg.AllowSelfReview && reviewerID == i.InspectorID {
				return nil, apperr.PermissionDenied("self-review is not allowed")
			}

			i.Status = models.StatusUnderReview
			i.ReviewerID = stringPtr(reviewerID)
			i.Metadata.Assignment = &models.AssignmentRecord{
				AssignedBy: actor.UserID,
				ReviewerID: reviewerID,
				AssignedAt: now,
			}

			return []*models.OutboxEvent{
				newEvent(actor, models.EventInspectionAssigned, i, nil, []string{reviewerID, i.InspectorID}, models.EventData{"reviewer_id": reviewerID}),
			}, nil
		},
	})
}

// Approve is the reviewer's positive decision
func (s *InspectionService) Approve(ctx context.Context, actor models.Actor, id string, in ApproveInput) (*models.Inspection, error) {
	return s.transition(ctx, actor, id, transitionSpec{
		action:          models.AuditInspectionApprove,
		expectedVersion: in.ExpectedVersion,
		apply: func(_ context.Context, a *access, i *models.Inspection, now time.Time) ([]*models.OutboxEvent, error) {
			if err := requireReviewer(a, i); err != nil {
				return nil, err
			}

			i.Status = models.StatusApproved
			i.ReviewerID = stringPtr(actor.UserID)
			i.ReviewedDate = timePtr(now)
			i.Metadata.Review = &models.ReviewRecord{
				ReviewedBy: actor.UserID,
				ReviewedAt: now,
				Comments:   in.Comments,
			}

			return []*models.OutboxEvent{
				newEvent(actor, models.EventInspectionApproved, i, []string{a.cfg.FinalApprover}, []string{i.InspectorID}, nil),
			}, nil
		},
	})
}

// Reject returns the inspection to the inspector as a draft
func (s *InspectionService) Reject(ctx context.Context, actor models.Actor, id string, in RejectInput) (*models.Inspection, error) {
	return s.transition(ctx, actor, id, transitionSpec{
		action:          models.AuditInspectionReject,
		expectedVersion: in.ExpectedVersion,
		apply: func(_ context.Context, a *access, i *models.Inspection, now time.Time) ([]*models.OutboxEvent, error) {
			if err := requireReviewer(a, i); err != nil {
				return nil, err
			}
			if blank(in.Reason) || blank(in.Feedback) {
				return nil, apperr.Validation("reason and feedback are required")
			}

			i.Status = models.StatusDraft
			i.ReviewerID = stringPtr(actor.UserID)
			i.ReviewedDate = timePtr(now)
			i.Metadata.Rejection = &models.RejectionRecord{
				RejectedBy:      actor.UserID,
				RejectedAt:      now,
				Reason:          in.Reason,
				Feedback:        in.Feedback,
				RequiredChanges: cleanStrings(in.RequiredChanges),
			}

			return []*models.OutboxEvent{
				newEvent(actor, models.EventInspectionRejected, i, nil, []string{i.InspectorID}, models.EventData{"reason": in.Reason}),
			}, nil
		},
	})
}

// RequestRevision sends the inspection back to draft with required changes
func (s *InspectionService) RequestRevision(ctx context.Context, actor models.Actor, id string, in RevisionInput) (*models.Inspection, error) {
	return s.transition(ctx, actor, id, transitionSpec{
		action:          models.AuditInspectionRevision,
		expectedVersion: in.ExpectedVersion,
		apply: func(_ context.Context, a *access, i *models.Inspection, now time.Time) ([]*models.OutboxEvent, error) {
			if err := requireReviewer(a, i); err != nil {
				return nil, err
			}
			changes := cleanStrings(in.RequiredChanges)
			if blank(in.Feedback) || len(changes) == 0 {
				return nil, apperr.Validation("feedback and at least one required change are required")
			}

			i.Status = models.StatusDraft
			i.ReviewerID = stringPtr(actor.UserID)
			i.RevisionCount++
			i.Metadata.Revision = &models.RevisionRecord{
				RequestedBy:     actor.UserID,
				RequestedAt:     now,
				Feedback:        in.Feedback,
				RequiredChanges: changes,
				Count:           i.RevisionCount,
			}

			return []*models.OutboxEvent{
				newEvent(actor, models.EventRevisionRequested, i, nil, []string{i.InspectorID}, nil),
			}, nil
		},
	})
}

// FinalApprove completes an approved inspection
func (s *InspectionService) FinalApprove(ctx context.Context, actor models.Actor, id string, in FinalApproveInput) (*models.Inspection, error) {
	return s.transition(ctx, actor, id, transitionSpec{
		action:          models.AuditInspectionFinalApproval,
		expectedVersion: in.ExpectedVersion,
		apply: func(_ context.Context, a *access, i *models.Inspection, now time.Time) ([]*models.OutboxEvent, error) {
			if !a.isFinalApprover() {
				return nil, apperr.PermissionDenied("only the %s role may give final approval", a.cfg.FinalApprover)
			}
			if err := a.checkSelfReview(i); err != nil {
				return nil, err
			}
			if i.CompletedDate != nil {
				return nil, apperr.InvalidState("inspection is already completed")
			}
			if i.Status != models.StatusApproved {
				return nil, apperr.InvalidState("only approved inspections can be finally approved, current status is %s", i.Status)
			}

			i.Status = models.StatusComplete
			i.ApproverID = stringPtr(actor.UserID)
			i.ApprovedDate = timePtr(now)
			i.CompletedDate = timePtr(now)
			i.Metadata.FinalApproval = &models.FinalApprovalRecord{
				Action:                     models.FinalApprovalApproved,
				DecidedBy:                  actor.UserID,
				DecidedAt:                  now,
				Comments:                   in.Comments,
				ClientNotificationRequired: in.ClientNotificationRequired,
			}

			recipients := []string{i.InspectorID, derefString(i.ReviewerID)}
			if in.ClientNotificationRequired && i.ExternalClientID != "" {
				recipients = append(recipients, i.ExternalClientID)
			}
			data := models.EventData{}
			if in.ClientNotificationRequired {
				data["client_notification_required"] = "true"
			}

			return []*models.OutboxEvent{
				newEvent(actor, models.EventInspectionCompleted, i, nil, recipients, data),
			}, nil
		},
	})
}

// Override forces approval or rejection of any inspection past draft
func (s *InspectionService) Override(ctx context.Context, actor models.Actor, id string, in OverrideInput) (*models.Inspection, error) {
	return s.transition(ctx, actor, id, transitionSpec{
		action:          models.AuditInspectionOverride,
		severity:        models.SeverityHigh,
		expectedVersion: in.ExpectedVersion,
		apply: func(ctx context.Context, a *access, i *models.Inspection, now time.Time) ([]*models.OutboxEvent, error) {
			if !a.role.CanOverride() || !a.isFinalApprover() {
				return nil, apperr.PermissionDenied("role %q may not override inspections", a.role.Name())
			}
			if err := a.checkSelfReview(i); err != nil {
				return nil, err
			}
			if i.Status == models.StatusDraft || i.Status == models.StatusComplete {
				return nil, apperr.InvalidState("inspection in status %s cannot be overridden", i.Status)
			}
			if in.Decision != models.OverrideApprove && in.Decision != models.OverrideReject {
				return nil, apperr.Validation("decision must be approve or reject")
			}
			if blank(in.Reason) || blank(in.Justification) {
				return nil, apperr.Validation("reason and justification are required")
			}
			if in.Decision == models.OverrideReject && i.Status == models.StatusRejected {
				return nil, apperr.InvalidState("inspection is already rejected")
			}

			justification, err := s.sealer.Seal(ctx, in.Justification)
			if err != nil {
				return nil, apperr.Internal(err, "failed to protect override justification")
			}

			record := &models.OverrideRecord{
				Decision:           in.Decision,
				OverriddenBy:       actor.UserID,
				OverriddenAt:       now,
				Reason:             in.Reason,
				Justification:      justification,
				OriginalStatus:     i.Status,
				OriginalReviewerID: i.ReviewerID,
			}
			final := &models.FinalApprovalRecord{
				DecidedBy: actor.UserID,
				DecidedAt: now,
				Comments:  in.Reason,
			}

			if in.Decision == models.OverrideApprove {
				i.Status = models.StatusComplete
				i.ApproverID = stringPtr(actor.UserID)
				i.ApprovedDate = timePtr(now)
				i.CompletedDate = timePtr(now)
				final.Action = models.FinalApprovalOverrideApproved
			} else {
				i.Status = models.StatusRejected
				i.CompletedDate = nil
				final.Action = models.FinalApprovalOverrideRejected
			}
			i.Metadata.Override = record
			i.Metadata.FinalApproval = final

			data := models.EventData{
				"decision":        string(in.Decision),
				"reason":          in.Reason,
				"original_status": string(record.OriginalStatus),
			}
			return []*models.OutboxEvent{
				newEvent(actor, models.EventInspectionOverridden, i, nil, []string{i.InspectorID, derefString(record.OriginalReviewerID)}, data),
			}, nil
		},
	})
}
