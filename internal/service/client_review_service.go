package service

import (
	"context"
	"time"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
)

// ClientInspectionView is what an external client sees of an inspection
type ClientInspectionView struct {
	ID                string                     `json:"id"`
	ProjectID         string                     `json:"project_id"`
	Type              models.InspectionType      `json:"type"`
	Status            models.InspectionStatus    `json:"status"`
	Title             string                     `json:"title"`
	Location          string                     `json:"location,omitempty"`
	InspectionDate    time.Time                  `json:"inspection_date"`
	CompletedDate     *time.Time                 `json:"completed_date,omitempty"`
	TotalItems        int                        `json:"total_items"`
	PassedItems       int                        `json:"passed_items"`
	FailedItems       int                        `json:"failed_items"`
	OverallRating     *int                       `json:"overall_rating,omitempty"`
	HasCriticalIssues bool                       `json:"has_critical_issues"`
	PhotoCount        int                        `json:"photo_count"`
	ClientReview      *models.ClientReviewRecord `json:"client_review,omitempty"`
	Version           int                        `json:"version"`
}

func newClientInspectionView(i *models.Inspection) ClientInspectionView {
	return ClientInspectionView{
		ID:                i.ID,
		ProjectID:         i.ProjectID,
		Type:              i.Type,
		Status:            i.Status,
		Title:             i.Title,
		Location:          i.Location,
		InspectionDate:    i.InspectionDate,
		CompletedDate:     i.CompletedDate,
		TotalItems:        i.TotalItems,
		PassedItems:       i.PassedItems,
		FailedItems:       i.FailedItems,
		OverallRating:     i.OverallRating,
		HasCriticalIssues: i.HasCriticalIssues,
		PhotoCount:        len(i.Photos),
		ClientReview:      i.Metadata.ClientReview,
		Version:           i.Version,
	}
}

type ClientReviewInput struct {
	Rating          *int   `json:"rating,omitempty"`
	Comments        string `json:"comments,omitempty"`
	ExpectedVersion *int   `json:"-"`
}

type ClientApproveInput struct {
	Comments        string `json:"comments,omitempty"`
	ExpectedVersion *int   `json:"-"`
}

type ClientRejectInput struct {
	Reason           string   `json:"reason"`
	RequestedChanges []string `json:"requested_changes"`
	ExpectedVersion  *int     `json:"-"`
}

// ClientReviewService lets external clients read and react to finished
// inspections. It only ever writes the client review record.
type ClientReviewService struct {
	inspectionRepo InspectionStore
	notifier       Notifier
	audit          *AuditService
}

// NewClientReviewService creates a new client review service
func NewClientReviewService(inspectionRepo InspectionStore, notifier Notifier, audit *AuditService) *ClientReviewService {
	return &ClientReviewService{
		inspectionRepo: inspectionRepo,
		notifier:       notifier,
		audit:          audit,
	}
}

// List returns approved and completed inspections addressed to the client
func (s *ClientReviewService) List(ctx context.Context, actor models.Actor, page, limit int) (models.Page[ClientInspectionView], error) {
	if !validUUID(actor.UserID) {
		return models.Page[ClientInspectionView]{}, apperr.Unauthorized("client identity is required")
	}

	page, limit = normalizePage(page, limit)
	items, total, err := s.inspectionRepo.List(ctx, models.InspectionFilter{
		TenantID:         actor.TenantID,
		ExternalClientID: actor.UserID,
		Statuses:         []models.InspectionStatus{models.StatusApproved, models.StatusComplete},
		Page:             page,
		Limit:            limit,
	})
	if err != nil {
		return models.Page[ClientInspectionView]{}, apperr.Internal(err, "failed to list inspections")
	}

	views := make([]ClientInspectionView, 0, len(items))
	for idx := range items {
		views = append(views, newClientInspectionView(&items[idx]))
	}
	return models.NewPage(views, total, page, limit), nil
}

// Get returns one inspection visible to the client
func (s *ClientReviewService) Get(ctx context.Context, actor models.Actor, id string) (*ClientInspectionView, error) {
	i, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	view := newClientInspectionView(i)
	return &view, nil
}

// load hides everything the client may not see behind NotFound
func (s *ClientReviewService) load(ctx context.Context, actor models.Actor, id string) (*models.Inspection, error) {
	if !validUUID(id) || !validUUID(actor.UserID) {
		return nil, apperr.NotFound("inspection")
	}
	i, err := s.inspectionRepo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, storeError(err, "inspection", "load inspection")
	}
	if i.ExternalClientID != actor.UserID || !i.Status.ClientVisible() {
		return nil, apperr.NotFound("inspection")
	}
	return i, nil
}

// Review records a rating and comments
func (s *ClientReviewService) Review(ctx context.Context, actor models.Actor, id string, in ClientReviewInput) (*ClientInspectionView, error) {
	return s.record(ctx, actor, id, models.AuditClientReview, in.ExpectedVersion, func(i *models.Inspection, now time.Time) (models.EventType, error) {
		if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
			return "", apperr.Validation("rating must be between 1 and 5")
		}
		i.Metadata.ClientReview = &models.ClientReviewRecord{
			Status:     models.ClientReviewReviewed,
			ReviewedBy: actor.UserID,
			ReviewedAt: now,
			Rating:     in.Rating,
			Comments:   in.Comments,
		}
		return models.EventClientReviewed, nil
	})
}

// Approve sets the client approval flag. The lifecycle status is untouched.
func (s *ClientReviewService) Approve(ctx context.Context, actor models.Actor, id string, in ClientApproveInput) (*ClientInspectionView, error) {
	return s.record(ctx, actor, id, models.AuditClientApprove, in.ExpectedVersion, func(i *models.Inspection, now time.Time) (models.EventType, error) {
		review := clientReviewOf(i)
		review.Status = models.ClientReviewApproved
		review.ReviewedBy = actor.UserID
		review.ReviewedAt = now
		review.ClientApproved = true
		review.ApprovedAt = timePtr(now)
		review.RequiresRework = false
		review.RejectionReason = ""
		review.RequestedChanges = nil
		if in.Comments != "" {
			review.Comments = in.Comments
		}
		i.Metadata.ClientReview = review
		return models.EventClientApproved, nil
	})
}

// Reject flags the inspection for rework by a new inspection cycle
func (s *ClientReviewService) Reject(ctx context.Context, actor models.Actor, id string, in ClientRejectInput) (*ClientInspectionView, error) {
	return s.record(ctx, actor, id, models.AuditClientReject, in.ExpectedVersion, func(i *models.Inspection, now time.Time) (models.EventType, error) {
		changes := cleanStrings(in.RequestedChanges)
		if blank(in.Reason) || len(changes) == 0 {
			return "", apperr.Validation("reason and at least one requested change are required")
		}
		review := clientReviewOf(i)
		review.Status = models.ClientReviewRejected
		review.ReviewedBy = actor.UserID
		review.ReviewedAt = now
		review.ClientApproved = false
		review.ApprovedAt = nil
		review.RejectionReason = in.Reason
		review.RequestedChanges = changes
		review.RequiresRework = true
		i.Metadata.ClientReview = review
		return models.EventClientRejected, nil
	})
}

func (s *ClientReviewService) record(
	ctx context.Context,
	actor models.Actor,
	id, action string,
	expectedVersion *int,
	apply func(i *models.Inspection, now time.Time) (models.EventType, error),
) (result *ClientInspectionView, err error) {
	var before any
	defer func() {
		entry := AuditEntry{
			Action:       action,
			ResourceType: models.ResourceInspection,
			ResourceID:   id,
			OldValues:    before,
		}
		if result != nil {
			entry.NewValues = result.ClientReview
		}
		s.audit.Record(ctx, actor, entry, err)
	}()

	i, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if i.Metadata.ClientReview != nil {
		before = *i.Metadata.ClientReview
	}
	if err := checkVersion(expectedVersion, i); err != nil {
		return nil, err
	}

	eventType, err := apply(i, time.Now())
	if err != nil {
		return nil, err
	}

	recipients := []string{i.InspectorID, derefString(i.ReviewerID), derefString(i.ApproverID)}
	event := newEvent(actor, eventType, i, nil, recipients, nil)
	if err := s.inspectionRepo.Update(ctx, i, event); err != nil {
		return nil, storeError(err, "inspection", "record client review")
	}
	s.notifier.Deliver(ctx, event)

	view := newClientInspectionView(i)
	return &view, nil
}

// clientReviewOf copies the existing record so rating and comments survive
func clientReviewOf(i *models.Inspection) *models.ClientReviewRecord {
	if i.Metadata.ClientReview == nil {
		return &models.ClientReviewRecord{}
	}
	review := *i.Metadata.ClientReview
	return &review
}
