package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MetadataSchemaVersion is bumped whenever a record type below changes shape
const MetadataSchemaVersion = 1

// FinalApprovalAction records how an inspection reached its final decision
type FinalApprovalAction string

const (
	FinalApprovalApproved         FinalApprovalAction = "approved"
	FinalApprovalOverrideApproved FinalApprovalAction = "override_approved"
	FinalApprovalOverrideRejected FinalApprovalAction = "override_rejected"
)

// OverrideDecision is the outcome forced by an override
type OverrideDecision string

const (
	OverrideApprove OverrideDecision = "approve"
	OverrideReject  OverrideDecision = "reject"
)

// ClientReviewStatus is the external client's reaction to an inspection
type ClientReviewStatus string

const (
	ClientReviewReviewed ClientReviewStatus = "reviewed"
	ClientReviewApproved ClientReviewStatus = "approved"
	ClientReviewRejected ClientReviewStatus = "rejected"
)

// InspectionMetadata holds the contextual data attached by each transition.
// Every field is owned by exactly one transition and is nil until it runs.
type InspectionMetadata struct {
	SchemaVersion int                  `json:"schema_version"`
	Submission    *SubmissionRecord    `json:"submission,omitempty"`
	Assignment    *AssignmentRecord    `json:"assignment,omitempty"`
	Review        *ReviewRecord        `json:"review,omitempty"`
	Rejection     *RejectionRecord     `json:"rejection,omitempty"`
	Revision      *RevisionRecord      `json:"revision,omitempty"`
	FinalApproval *FinalApprovalRecord `json:"final_approval,omitempty"`
	Override      *OverrideRecord      `json:"override,omitempty"`
	ClientReview  *ClientReviewRecord  `json:"client_review,omitempty"`
}

type SubmissionRecord struct {
	SubmittedBy string    `json:"submitted_by"`
	SubmittedAt time.Time `json:"submitted_at"`
	Notes       string    `json:"notes,omitempty"`
}

type AssignmentRecord struct {
	AssignedBy string    `json:"assigned_by"`
	ReviewerID string    `json:"reviewer_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ReviewRecord is written by a reviewer approval
type ReviewRecord struct {
	ReviewedBy string    `json:"reviewed_by"`
	ReviewedAt time.Time `json:"reviewed_at"`
	Comments   string    `json:"comments,omitempty"`
}

type RejectionRecord struct {
	RejectedBy      string    `json:"rejected_by"`
	RejectedAt      time.Time `json:"rejected_at"`
	Reason          string    `json:"reason"`
	Feedback        string    `json:"feedback"`
	RequiredChanges []string  `json:"required_changes,omitempty"`
}

type RevisionRecord struct {
	RequestedBy     string    `json:"requested_by"`
	RequestedAt     time.Time `json:"requested_at"`
	Feedback        string    `json:"feedback"`
	RequiredChanges []string  `json:"required_changes"`
	Count           int       `json:"count"`
}

type FinalApprovalRecord struct {
	Action                     FinalApprovalAction `json:"action"`
	DecidedBy                  string              `json:"decided_by"`
	DecidedAt                  time.Time           `json:"decided_at"`
	Comments                   string              `json:"comments,omitempty"`
	ClientNotificationRequired bool                `json:"client_notification_required"`
}

// OverrideRecord keeps the state an override replaced. Justification may hold
// transit ciphertext when encryption at rest is enabled.
type OverrideRecord struct {
	Decision           OverrideDecision `json:"decision"`
	OverriddenBy       string           `json:"overridden_by"`
	OverriddenAt       time.Time        `json:"overridden_at"`
	Reason             string           `json:"reason"`
	Justification      string           `json:"justification"`
	OriginalStatus     InspectionStatus `json:"original_status"`
	OriginalReviewerID *string          `json:"original_reviewer_id,omitempty"`
}

// ClientReviewRecord is the only part of an inspection an external client may write
type ClientReviewRecord struct {
	Status           ClientReviewStatus `json:"status"`
	ReviewedBy       string             `json:"reviewed_by"`
	ReviewedAt       time.Time          `json:"reviewed_at"`
	Rating           *int               `json:"rating,omitempty"`
	Comments         string             `json:"comments,omitempty"`
	ClientApproved   bool               `json:"client_approved"`
	ApprovedAt       *time.Time         `json:"approved_at,omitempty"`
	RejectionReason  string             `json:"rejection_reason,omitempty"`
	RequestedChanges []string           `json:"requested_changes,omitempty"`
	RequiresRework   bool               `json:"requires_rework"`
}

// Value implements driver.Valuer for JSONB storage
func (m InspectionMetadata) Value() (driver.Value, error) {
	if m.SchemaVersion == 0 {
		m.SchemaVersion = MetadataSchemaVersion
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inspection metadata: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner for JSONB storage
func (m *InspectionMetadata) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = InspectionMetadata{SchemaVersion: MetadataSchemaVersion}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}

	var out InspectionMetadata
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to unmarshal inspection metadata: %w", err)
	}
	if out.SchemaVersion == 0 {
		out.SchemaVersion = MetadataSchemaVersion
	}
	*m = out
	return nil
}
