package service

import (
	"context"
	"log/slog"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
	"quality-hub/internal/rbac"
)

// StaffQualityRole is the resolved role view of one staff member
type StaffQualityRole struct {
	UserID        string           `json:"user_id"`
	MainRole      string           `json:"main_role"`
	QualityRole   string           `json:"quality_role,omitempty"`
	EffectiveRole string           `json:"effective_role"`
	Permissions   rbac.Permissions `json:"permissions"`
}

func newStaffQualityRole(r rbac.EffectiveRole) *StaffQualityRole {
	return &StaffQualityRole{
		UserID:        r.UserID,
		MainRole:      r.Main,
		QualityRole:   r.Quality,
		EffectiveRole: r.Name(),
		Permissions:   r.Permissions(),
	}
}

// RoleService resolves and manages quality roles
type RoleService struct {
	staffRepo  StaffStore
	outboxRepo OutboxStore
	notifier   Notifier
	audit      *AuditService
}

// NewRoleService creates a new role service
func NewRoleService(staffRepo StaffStore, outboxRepo OutboxStore, notifier Notifier, audit *AuditService) *RoleService {
	return &RoleService{
		staffRepo:  staffRepo,
		outboxRepo: outboxRepo,
		notifier:   notifier,
		audit:      audit,
	}
}

// Resolve returns the effective role of a user within a tenant
func (s *RoleService) Resolve(ctx context.Context, tenantID, userID string) (rbac.EffectiveRole, error) {
	if !validUUID(userID) {
		return rbac.EffectiveRole{}, apperr.NotFound("staff member")
	}
	staff, err := s.staffRepo.GetByUserID(ctx, tenantID, userID)
	if err != nil {
		return rbac.EffectiveRole{}, storeError(err, "staff member", "resolve role")
	}
	return rbac.EffectiveRole{
		UserID:  staff.UserID,
		Main:    staff.MainRole,
		Quality: derefString(staff.QualityRole),
	}, nil
}

// GetQualityRole returns the role view of a staff member
func (s *RoleService) GetQualityRole(ctx context.Context, tenantID, userID string) (*StaffQualityRole, error) {
	role, err := s.Resolve(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return newStaffQualityRole(role), nil
}

// AssignQualityRole sets the quality role of a staff member
func (s *RoleService) AssignQualityRole(ctx context.Context, actor models.Actor, userID, role string) (result *StaffQualityRole, err error) {
	var before rbac.EffectiveRole
	defer func() {
		s.audit.Record(ctx, actor, AuditEntry{
			Action:       models.AuditRoleAssign,
			ResourceType: models.ResourceQualityRole,
			ResourceID:   userID,
			OldValues:    map[string]string{"quality_role": before.Quality},
			NewValues:    map[string]string{"quality_role": role},
			Severity:     models.SeverityMedium,
		}, err)
	}()

	if !rbac.IsQualityRole(role) {
		return nil, apperr.Validation("invalid quality role %q", role)
	}

	before, err = s.Resolve(ctx, actor.TenantID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.staffRepo.SetQualityRole(ctx, actor.TenantID, userID, stringPtr(role)); err != nil {
		return nil, storeError(err, "staff member", "assign quality role")
	}

	after := before
	after.Quality = role
	s.notify(ctx, actor, models.EventRoleAssigned, userID, role)

	return newStaffQualityRole(after), nil
}

// RemoveQualityRole clears the quality role so the main role applies again
func (s *RoleService) RemoveQualityRole(ctx context.Context, actor models.Actor, userID string) (err error) {
	var before rbac.EffectiveRole
	defer func() {
		s.audit.Record(ctx, actor, AuditEntry{
			Action:       models.AuditRoleRemove,
			ResourceType: models.ResourceQualityRole,
			ResourceID:   userID,
			OldValues:    map[string]string{"quality_role": before.Quality},
			Severity:     models.SeverityMedium,
		}, err)
	}()

	before, err = s.Resolve(ctx, actor.TenantID, userID)
	if err != nil {
		return err
	}
	if before.Quality == "" {
		return apperr.InvalidState("staff member has no quality role")
	}

	if err := s.staffRepo.SetQualityRole(ctx, actor.TenantID, userID, nil); err != nil {
		return storeError(err, "staff member", "remove quality role")
	}

	s.notify(ctx, actor, models.EventRoleRemoved, userID, before.Quality)
	return nil
}

func (s *RoleService) notify(ctx context.Context, actor models.Actor, eventType models.EventType, userID, role string) {
	event := newEvent(actor, eventType, nil, nil, []string{userID}, models.EventData{"role": role})
	if err := s.outboxRepo.Enqueue(ctx, event); err != nil {
		slog.Error("Failed to enqueue role notification", "error", err, "user_id", userID, "event", eventType)
		return
	}
	s.notifier.Deliver(ctx, event)
}
