package models

import (
	"strings"
	"time"
)

// TenantInspectionConfig is the per-tenant inspection policy
type TenantInspectionConfig struct {
	TenantID               string    `json:"tenant_id" db:"tenant_id"`
	CanInspect             []string  `json:"can_inspect" db:"can_inspect"`
	CanReview              []string  `json:"can_review" db:"can_review"`
	FinalApprover          string    `json:"final_approver" db:"final_approver"`
	AllowSelfReview        bool      `json:"allow_self_review" db:"allow_self_review"`
	RequirePhotos          bool      `json:"require_photos" db:"require_photos"`
	RequireSignature       bool      `json:"require_signature" db:"require_signature"`
	UseDetailedInspections bool      `json:"use_detailed_inspections" db:"use_detailed_inspections"`
	UpdatedBy              *string   `json:"updated_by,omitempty" db:"updated_by"`
	UpdatedAt              time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultTenantInspectionConfig returns the policy used for tenants that never
// stored their own
func DefaultTenantInspectionConfig(tenantID string) *TenantInspectionConfig {
	return &TenantInspectionConfig{
		TenantID:               tenantID,
		CanInspect:             []string{"quality_staff", "team_leader", "site_supervisor"},
		CanReview:              []string{"team_leader", "project_manager", "operations_manager"},
		FinalApprover:          "operations_manager",
		AllowSelfReview:        false,
		RequirePhotos:          true,
		RequireSignature:       false,
		UseDetailedInspections: true,
	}
}

// Validate returns the first violated invariant as a plain message, or ""
func (c *TenantInspectionConfig) Validate() string {
	if len(nonEmpty(c.CanInspect)) == 0 {
		return "can_inspect must contain at least one role"
	}
	if len(nonEmpty(c.CanReview)) == 0 {
		return "can_review must contain at least one role"
	}
	if strings.TrimSpace(c.FinalApprover) == "" {
		return "final_approver is required"
	}
	return ""
}

// ReviewNotificationRoles returns canReview ∪ {finalApprover} without duplicates
func (c *TenantInspectionConfig) ReviewNotificationRoles() []string {
	seen := make(map[string]bool, len(c.CanReview)+1)
	roles := make([]string, 0, len(c.CanReview)+1)
	for _, r := range append(append([]string{}, c.CanReview...), c.FinalApprover) {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		roles = append(roles, r)
	}
	return roles
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
