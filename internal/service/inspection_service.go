package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
	"quality-hub/internal/rbac"
	"quality-hub/internal/vault"
)

// CreateInspectionInput holds the fields an inspector provides on creation.
// Checklist, photos and signature apply to detailed inspections, rating and
// remarks to simple ones.
type CreateInspectionInput struct {
	ProjectID        string                 `json:"project_id"`
	ExternalClientID string                 `json:"external_client_id,omitempty"`
	Title            string                 `json:"title"`
	Location         string                 `json:"location,omitempty"`
	InspectionDate   *time.Time             `json:"inspection_date,omitempty"`
	ChecklistItems   []models.ChecklistItem `json:"checklist_items,omitempty"`
	Photos           []models.Photo         `json:"photos,omitempty"`
	Signature        string                 `json:"signature,omitempty"`
	OverallRating    *int                   `json:"overall_rating,omitempty"`
	Remarks          string                 `json:"remarks,omitempty"`
}

// UpdateInspectionInput holds optional replacements for an editable inspection
type UpdateInspectionInput struct {
	ExternalClientID *string                 `json:"external_client_id,omitempty"`
	Title            *string                 `json:"title,omitempty"`
	Location         *string                 `json:"location,omitempty"`
	InspectionDate   *time.Time              `json:"inspection_date,omitempty"`
	ChecklistItems   *[]models.ChecklistItem `json:"checklist_items,omitempty"`
	Photos           *[]models.Photo         `json:"photos,omitempty"`
	Signature        *string                 `json:"signature,omitempty"`
	OverallRating    *int                    `json:"overall_rating,omitempty"`
	Remarks          *string                 `json:"remarks,omitempty"`
	ExpectedVersion  *int                    `json:"-"`
}

// ListInspectionsInput holds list filters
type ListInspectionsInput struct {
	Statuses          []models.InspectionStatus
	Type              models.InspectionType
	ProjectID         string
	InspectorID       string
	ReviewerID        string
	HasCriticalIssues *bool
	From              *time.Time
	To                *time.Time
	Page              int
	Limit             int
}

// InspectionService implements inspection CRUD and the review workflow
type InspectionService struct {
	inspectionRepo InspectionStore
	roles          *RoleService
	configs        *TenantConfigService
	notifier       Notifier
	sealer         Sealer
	audit          *AuditService
}

// NewInspectionService creates a new inspection service
func NewInspectionService(
	inspectionRepo InspectionStore,
	roles *RoleService,
	configs *TenantConfigService,
	notifier Notifier,
	sealer Sealer,
	audit *AuditService,
) *InspectionService {
	return &InspectionService{
		inspectionRepo: inspectionRepo,
		roles:          roles,
		configs:        configs,
		notifier:       notifier,
		sealer:         sealer,
		audit:          audit,
	}
}

// access is the policy and role of the acting staff member for one request
type access struct {
	cfg  *models.TenantInspectionConfig
	role rbac.EffectiveRole
}

func (a *access) canInspect() bool      { return a.role.In(a.cfg.CanInspect) }
func (a *access) canReview() bool       { return a.role.In(a.cfg.CanReview) }
func (a *access) isFinalApprover() bool { return a.role.Is(a.cfg.FinalApprover) }

// checkSelfReview compares identities, not roles
func (a *access) checkSelfReview(i *models.Inspection) error {
	if !a.cfg.AllowSelfReview && i.InspectorID == a.role.UserID {
		return apperr.PermissionDenied("self-review is not allowed")
	}
	return nil
}

// canView reports whether the actor may read the inspection
func (a *access) canView(i *models.Inspection) bool {
	perms := a.role.Permissions()
	if perms.CanViewAll || !perms.RestrictToOwnProjects {
		return true
	}
	if i.InspectorID == a.role.UserID || derefString(i.ReviewerID) == a.role.UserID {
		return true
	}
	// reviewers must be able to open items in their queue
	return a.canReview() && i.Status.InReviewQueue()
}

func (s *InspectionService) access(ctx context.Context, actor models.Actor) (*access, error) {
	cfg, err := s.configs.Get(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.Resolve(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &access{cfg: cfg, role: role}, nil
}

func (s *InspectionService) load(ctx context.Context, tenantID, id string) (*models.Inspection, error) {
	if !validUUID(id) {
		return nil, apperr.NotFound("inspection")
	}
	i, err := s.inspectionRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, storeError(err, "inspection", "load inspection")
	}
	return i, nil
}

// CreateDetailed creates a checklist-based inspection in draft
func (s *InspectionService) CreateDetailed(ctx context.Context, actor models.Actor, in CreateInspectionInput) (*models.Inspection, error) {
	return s.create(ctx, actor, models.InspectionTypeDetailed, in)
}

// CreateSimple creates a rating-based inspection in draft
func (s *InspectionService) CreateSimple(ctx context.Context, actor models.Actor, in CreateInspectionInput) (*models.Inspection, error) {
	return s.create(ctx, actor, models.InspectionTypeSimple, in)
}

func (s *InspectionService) create(ctx context.Context, actor models.Actor, typ models.InspectionType, in CreateInspectionInput) (result *models.Inspection, err error) {
	defer func() {
		entry := AuditEntry{Action: models.AuditInspectionCreate, ResourceType: models.ResourceInspection}
		if result != nil {
			entry.ResourceID = result.ID
			entry.NewValues = snapshot(result)
		}
		s.audit.Record(ctx, actor, entry, err)
	}()

	a, err := s.access(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !a.canInspect() {
		return nil, apperr.PermissionDenied("role %q may not create inspections", a.role.Name())
	}
	if typ == models.InspectionTypeDetailed && !a.cfg.UseDetailedInspections {
		return nil, apperr.Validation("detailed inspections are disabled for this tenant")
	}

	if !validUUID(in.ProjectID) {
		return nil, apperr.Validation("project_id must be a valid id")
	}
	if in.ExternalClientID != "" && !validUUID(in.ExternalClientID) {
		return nil, apperr.Validation("external_client_id must be a valid id")
	}
	if blank(in.Title) {
		return nil, apperr.Validation("title is required")
	}

	inspectionDate := time.Now()
	if in.InspectionDate != nil {
		inspectionDate = *in.InspectionDate
	}

	i := &models.Inspection{
		ID:               uuid.NewString(),
		TenantID:         actor.TenantID,
		ProjectID:        in.ProjectID,
		ExternalClientID: in.ExternalClientID,
		InspectorID:      actor.UserID,
		Type:             typ,
		Status:           models.StatusDraft,
		Title:            in.Title,
		Location:         in.Location,
		InspectionDate:   inspectionDate,
		Metadata:         models.InspectionMetadata{SchemaVersion: models.MetadataSchemaVersion},
	}

	switch typ {
	case models.InspectionTypeDetailed:
		items, err := normalizeChecklist(in.ChecklistItems)
		if err != nil {
			return nil, err
		}
		i.ChecklistItems = items
		i.Photos = in.Photos
		i.Signature = in.Signature
	case models.InspectionTypeSimple:
		if err := validateRating(in.OverallRating); err != nil {
			return nil, err
		}
		i.OverallRating = in.OverallRating
		i.Remarks = in.Remarks
	}
	i.RecomputeDerived()

	if err := s.inspectionRepo.Create(ctx, i); err != nil {
		return nil, apperr.Internal(err, "failed to create inspection")
	}

	slog.Info("Inspection created", "inspection_id", i.ID, "tenant_id", i.TenantID, "type", i.Type)
	return i, nil
}

// Update lets the inspector edit a draft or rejected inspection. Editing a
// rejected inspection moves it back to draft.
func (s *InspectionService) Update(ctx context.Context, actor models.Actor, id string, in UpdateInspectionInput) (result *models.Inspection, err error) {
	var before map[string]any
	defer func() {
		s.audit.Record(ctx, actor, AuditEntry{
			Action:       models.AuditInspectionUpdate,
			ResourceType: models.ResourceInspection,
			ResourceID:   id,
			OldValues:    before,
			NewValues:    snapshot(result),
		}, err)
	}()

	if _, err := s.access(ctx, actor); err != nil {
		return nil, err
	}
	i, err := s.load(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	before = snapshot(i)

	if i.InspectorID != actor.UserID {
		return nil, apperr.PermissionDenied("only the inspector may edit an inspection")
	}
	if !i.Status.IsEditable() {
		return nil, apperr.InvalidState("inspection in status %s cannot be edited", i.Status)
	}
	if err := checkVersion(in.ExpectedVersion, i); err != nil {
		return nil, err
	}

	if in.Title != nil {
		if blank(*in.Title) {
			return nil, apperr.Validation("title is required")
		}
		i.Title = *in.Title
	}
	if in.Location != nil {
		i.Location = *in.Location
	}
	if in.ExternalClientID != nil {
		if *in.ExternalClientID != "" && !validUUID(*in.ExternalClientID) {
			return nil, apperr.Validation("external_client_id must be a valid id")
		}
		i.ExternalClientID = *in.ExternalClientID
	}
	if in.InspectionDate != nil {
		i.InspectionDate = *in.InspectionDate
	}

	switch i.Type {
	case models.InspectionTypeDetailed:
		if in.ChecklistItems != nil {
			items, err := normalizeChecklist(*in.ChecklistItems)
			if err != nil {
				return nil, err
			}
			i.ChecklistItems = items
		}
		if in.Photos != nil {
			i.Photos = *in.Photos
		}
		if in.Signature != nil {
			i.Signature = *in.Signature
		}
	case models.InspectionTypeSimple:
		if in.OverallRating != nil {
			if err := validateRating(in.OverallRating); err != nil {
				return nil, err
			}
			i.OverallRating = in.OverallRating
		}
		if in.Remarks != nil {
			i.Remarks = *in.Remarks
		}
	}

	if i.Status == models.StatusRejected {
		i.Status = models.StatusDraft
	}
	i.RecomputeDerived()

	if err := s.inspectionRepo.Update(ctx, i); err != nil {
		return nil, storeError(err, "inspection", "update inspection")
	}
	return i, nil
}

// Get returns one inspection the actor may see
func (s *InspectionService) Get(ctx context.Context, actor models.Actor, id string) (*models.Inspection, error) {
	a, err := s.access(ctx, actor)
	if err != nil {
		return nil, err
	}
	i, err := s.load(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if !a.canView(i) {
		return nil, apperr.PermissionDenied("inspection is outside your projects")
	}
	s.revealOverride(ctx, i)
	return i, nil
}

// List returns a page of inspections visible to the actor
func (s *InspectionService) List(ctx context.Context, actor models.Actor, in ListInspectionsInput) (models.Page[models.Inspection], error) {
	a, err := s.access(ctx, actor)
	if err != nil {
		return models.Page[models.Inspection]{}, err
	}

	page, limit := normalizePage(in.Page, in.Limit)
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
		Page:              page,
		Limit:             limit,
	}
	if perms := a.role.Permissions(); perms.RestrictToOwnProjects && !perms.CanViewAll {
		filter.OwnedBy = actor.UserID
	}

	return s.list(ctx, filter)
}

// Pending returns the review queue (pending and under_review)
func (s *InspectionService) Pending(ctx context.Context, actor models.Actor, page, limit int) (models.Page[models.Inspection], error) {
	a, err := s.access(ctx, actor)
	if err != nil {
		return models.Page[models.Inspection]{}, err
	}
	if !a.canReview() {
		return models.Page[models.Inspection]{}, apperr.PermissionDenied("role %q may not review inspections", a.role.Name())
	}

	page, limit = normalizePage(page, limit)
	return s.list(ctx, models.InspectionFilter{
		TenantID: actor.TenantID,
		Statuses: []models.InspectionStatus{models.StatusPending, models.StatusUnderReview},
		Page:     page,
		Limit:    limit,
	})
}

func (s *InspectionService) list(ctx context.Context, filter models.InspectionFilter) (models.Page[models.Inspection], error) {
	items, total, err := s.inspectionRepo.List(ctx, filter)
	if err != nil {
		return models.Page[models.Inspection]{}, apperr.Internal(err, "failed to list inspections")
	}
	for idx := range items {
		redactOverride(&items[idx])
	}
	return models.NewPage(items, total, filter.Page, filter.Limit), nil
}

// Delete soft-deletes an inspection
func (s *InspectionService) Delete(ctx context.Context, actor models.Actor, id string) (err error) {
	var before map[string]any
	defer func() {
		s.audit.Record(ctx, actor, AuditEntry{
			Action:       models.AuditInspectionDelete,
			ResourceType: models.ResourceInspection,
			ResourceID:   id,
			OldValues:    before,
			Severity:     models.SeverityHigh,
		}, err)
	}()

	a, err := s.access(ctx, actor)
	if err != nil {
		return err
	}
	if !a.role.Permissions().CanDelete {
		return apperr.PermissionDenied("role %q may not delete inspections", a.role.Name())
	}

	i, err := s.load(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	before = snapshot(i)

	i.DeletedAt = timePtr(time.Now())
	if err := s.inspectionRepo.Update(ctx, i); err != nil {
		return storeError(err, "inspection", "delete inspection")
	}
	return nil
}

// revealOverride decrypts the override justification for staff reads
func (s *InspectionService) revealOverride(ctx context.Context, i *models.Inspection) {
	if i.Metadata.Override == nil || !vault.IsCiphertext(i.Metadata.Override.Justification) {
		return
	}
	o := *i.Metadata.Override
	plaintext, err := s.sealer.Open(ctx, o.Justification)
	if err != nil {
		slog.Error("Failed to decrypt override justification", "error", err, "inspection_id", i.ID)
		plaintext = ""
	}
	o.Justification = plaintext
	i.Metadata.Override = &o
}

// redactOverride removes ciphertext from list payloads
func redactOverride(i *models.Inspection) {
	if i.Metadata.Override != nil && vault.IsCiphertext(i.Metadata.Override.Justification) {
		o := *i.Metadata.Override
		o.Justification = ""
		i.Metadata.Override = &o
	}
}

func normalizeChecklist(items []models.ChecklistItem) ([]models.ChecklistItem, error) {
	out := make([]models.ChecklistItem, 0, len(items))
	for idx, item := range items {
		if blank(item.Label) {
			return nil, apperr.Validation("checklist item %d: label is required", idx+1)
		}
		switch item.Status {
		case models.ItemPass, models.ItemFail, models.ItemNotApplicable:
		default:
			return nil, apperr.Validation("checklist item %d: status must be pass, fail or na", idx+1)
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		out = append(out, item)
	}
	return out, nil
}

func validateRating(rating *int) error {
	if rating == nil {
		return apperr.Validation("overall_rating is required")
	}
	if *rating < 1 || *rating > 5 {
		return apperr.Validation("overall_rating must be between 1 and 5")
	}
	return nil
}
