package models

import (
	"encoding/json"
	"time"
)

// Severity grades an audit entry
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Audit actions
const (
	AuditInspectionCreate        = "inspection.create"
	AuditInspectionUpdate        = "inspection.update"
	AuditInspectionDelete        = "inspection.delete"
	AuditInspectionSubmit        = "inspection.submit"
	AuditInspectionAssign        = "inspection.assign"
	AuditInspectionApprove       = "inspection.approve"
	AuditInspectionReject        = "inspection.reject"
	AuditInspectionRevision      = "inspection.request_revision"
	AuditInspectionFinalApproval = "inspection.final_approve"
	AuditInspectionOverride      = "inspection.override"
	AuditInspectionExport        = "inspection.export"
	AuditClientReview            = "inspection.client_review"
	AuditClientApprove           = "inspection.client_approve"
	AuditClientReject            = "inspection.client_reject"
	AuditRoleAssign              = "quality_role.assign"
	AuditRoleRemove              = "quality_role.remove"
	AuditConfigUpdate            = "quality_config.update"
)

// Audit resource types
const (
	ResourceInspection  = "quality_inspection"
	ResourceQualityRole = "quality_role"
	ResourceConfig      = "quality_config"
)

// AuditLog represents an append-only audit log entry
type AuditLog struct {
	ID           string          `json:"id" db:"id"`
	TenantID     string          `json:"tenant_id" db:"tenant_id"`
	ActorID      *string         `json:"actor_id,omitempty" db:"actor_id"`
	ActorRole    string          `json:"actor_role,omitempty" db:"actor_role"`
	Action       string          `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty" db:"resource_id"`
	Success      bool            `json:"success" db:"success"`
	Severity     Severity        `json:"severity" db:"severity"`
	OldValues    json.RawMessage `json:"old_values,omitempty" db:"old_values"`
	NewValues    json.RawMessage `json:"new_values,omitempty" db:"new_values"`
	ErrorMessage string          `json:"error_message,omitempty" db:"error_message"`
	IPAddress    string          `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent    string          `json:"user_agent,omitempty" db:"user_agent"`
	RequestID    string          `json:"request_id,omitempty" db:"request_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// AuditFilter defines criteria for listing audit entries
type AuditFilter struct {
	TenantID     string
	Action       string
	ResourceType string
	ResourceID   string
	ActorID      string
	Success      *bool
	Severity     Severity
	Page         int
	Limit        int
}
