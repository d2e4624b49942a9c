package service

import (
	"context"
	"errors"
	"strings"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
	"quality-hub/internal/repository"
)

// UpdateConfigInput is the replacement policy of a tenant
type UpdateConfigInput struct {
	CanInspect             []string `json:"can_inspect"`
	CanReview              []string `json:"can_review"`
	FinalApprover          string   `json:"final_approver"`
	AllowSelfReview        bool     `json:"allow_self_review"`
	RequirePhotos          bool     `json:"require_photos"`
	RequireSignature       bool     `json:"require_signature"`
	UseDetailedInspections bool     `json:"use_detailed_inspections"`
}

// TenantConfigService reads and maintains the per-tenant inspection policy.
// The policy is re-read on every call and never cached.
type TenantConfigService struct {
	tenantRepo TenantStore
	audit      *AuditService
}

// NewTenantConfigService creates a new tenant config service
func NewTenantConfigService(tenantRepo TenantStore, audit *AuditService) *TenantConfigService {
	return &TenantConfigService{tenantRepo: tenantRepo, audit: audit}
}

// Get returns the tenant's policy, falling back to defaults when none is stored
func (s *TenantConfigService) Get(ctx context.Context, tenantID string) (*models.TenantInspectionConfig, error) {
	if !validUUID(tenantID) {
		return nil, apperr.NotFound("tenant")
	}
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, storeError(err, "tenant", "load tenant")
	}

	cfg, err := s.tenantRepo.GetInspectionConfig(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.DefaultTenantInspectionConfig(tenantID), nil
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load inspection config")
	}
	return cfg, nil
}

// Update validates and stores a new policy
func (s *TenantConfigService) Update(ctx context.Context, actor models.Actor, in UpdateConfigInput) (cfg *models.TenantInspectionConfig, err error) {
	var before *models.TenantInspectionConfig
	defer func() {
		s.audit.Record(ctx, actor, AuditEntry{
			Action:       models.AuditConfigUpdate,
			ResourceType: models.ResourceConfig,
			ResourceID:   actor.TenantID,
			OldValues:    before,
			NewValues:    cfg,
			Severity:     models.SeverityMedium,
		}, err)
	}()

	before, err = s.Get(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}

	next := &models.TenantInspectionConfig{
		TenantID:               actor.TenantID,
		CanInspect:             dedupe(cleanStrings(in.CanInspect)),
		CanReview:              dedupe(cleanStrings(in.CanReview)),
		FinalApprover:          strings.TrimSpace(in.FinalApprover),
		AllowSelfReview:        in.AllowSelfReview,
		RequirePhotos:          in.RequirePhotos,
		RequireSignature:       in.RequireSignature,
		UseDetailedInspections: in.UseDetailedInspections,
		UpdatedBy:              stringPtr(actor.UserID),
	}
	if msg := next.Validate(); msg != "" {
		return nil, apperr.Validation("%s", msg)
	}

	if err := s.tenantRepo.UpsertInspectionConfig(ctx, next); err != nil {
		return nil, apperr.Internal(err, "failed to save inspection config")
	}
	return next, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
