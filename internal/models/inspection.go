package models

import (
	"strings"
	"time"
)

// InspectionType distinguishes checklist-based from rating-based inspections
type InspectionType string

const (
	InspectionTypeDetailed InspectionType = "detailed"
	InspectionTypeSimple   InspectionType = "simple"
)

// InspectionStatus is the lifecycle state of an inspection
type InspectionStatus string

const (
	StatusDraft       InspectionStatus = "draft"
	StatusPending     InspectionStatus = "pending"
	StatusUnderReview InspectionStatus = "under_review"
	StatusApproved    InspectionStatus = "approved"
	StatusRejected    InspectionStatus = "rejected"
	StatusComplete    InspectionStatus = "complete"
)

// AllStatuses lists every inspection status in lifecycle order
var AllStatuses = []InspectionStatus{
	StatusDraft, StatusPending, StatusUnderReview, StatusApproved, StatusRejected, StatusComplete,
}

// Valid reports whether s is a known status
func (s InspectionStatus) Valid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsEditable returns true while the inspector may still change the content
func (s InspectionStatus) IsEditable() bool {
	return s == StatusDraft || s == StatusRejected
}

// InReviewQueue returns true for statuses shown in reviewer queues
func (s InspectionStatus) InReviewQueue() bool {
	return s == StatusPending || s == StatusUnderReview
}

// ClientVisible returns true for statuses the external client may see
func (s InspectionStatus) ClientVisible() bool {
	return s == StatusApproved || s == StatusComplete
}

// ItemStatus is the outcome of one checklist item
type ItemStatus string

const (
	ItemPass          ItemStatus = "pass"
	ItemFail          ItemStatus = "fail"
	ItemNotApplicable ItemStatus = "na"
)

// ChecklistItem is one line of a detailed inspection
type ChecklistItem struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Category string     `json:"category,omitempty"`
	Status   ItemStatus `json:"status"`
	Critical bool       `json:"critical"`
	Notes    string     `json:"notes,omitempty"`
}

// Photo is an attached image reference
type Photo struct {
	URL     string     `json:"url"`
	Caption string     `json:"caption,omitempty"`
	TakenAt *time.Time `json:"taken_at,omitempty"`
}

// Inspection is the aggregate root of the quality workflow
type Inspection struct {
	ID               string           `json:"id" db:"id"`
	TenantID         string           `json:"tenant_id" db:"tenant_id"`
	ProjectID        string           `json:"project_id" db:"project_id"`
	ExternalClientID string           `json:"external_client_id,omitempty" db:"external_client_id"`
	InspectorID      string           `json:"inspector_id" db:"inspector_id"`
	ReviewerID       *string          `json:"reviewer_id,omitempty" db:"reviewer_id"`
	ApproverID       *string          `json:"approver_id,omitempty" db:"approver_id"`
	Type             InspectionType   `json:"type" db:"type"`
	Status           InspectionStatus `json:"status" db:"status"`
	Title            string           `json:"title" db:"title"`
	Location         string           `json:"location,omitempty" db:"location"`

	// detailed inspections
	ChecklistItems []ChecklistItem `json:"checklist_items,omitempty" db:"checklist_items"`
	Photos         []Photo         `json:"photos,omitempty" db:"photos"`
	Signature      string          `json:"signature,omitempty" db:"signature"`

	// simple inspections
	OverallRating *int   `json:"overall_rating,omitempty" db:"overall_rating"`
	Remarks       string `json:"remarks,omitempty" db:"remarks"`

	// derived, never accepted from clients
	TotalItems        int  `json:"total_items" db:"total_items"`
	PassedItems       int  `json:"passed_items" db:"passed_items"`
	FailedItems       int  `json:"failed_items" db:"failed_items"`
	HasCriticalIssues bool `json:"has_critical_issues" db:"has_critical_issues"`

	RevisionCount int                `json:"revision_count" db:"revision_count"`
	Metadata      InspectionMetadata `json:"metadata" db:"metadata"`
	Version       int                `json:"version" db:"version"`

	InspectionDate time.Time  `json:"inspection_date" db:"inspection_date"`
	SubmittedDate  *time.Time `json:"submitted_date,omitempty" db:"submitted_date"`
	ReviewedDate   *time.Time `json:"reviewed_date,omitempty" db:"reviewed_date"`
	ApprovedDate   *time.Time `json:"approved_date,omitempty" db:"approved_date"`
	CompletedDate  *time.Time `json:"completed_date,omitempty" db:"completed_date"`
	DeletedAt      *time.Time `json:"-" db:"deleted_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// CriticalRatingThreshold is the highest simple rating (inclusive) that
// flags critical issues
const CriticalRatingThreshold = 2

// HasPhotos reports whether at least one photo with a URL is attached
func (i *Inspection) HasPhotos() bool {
	for _, p := range i.Photos {
		if strings.TrimSpace(p.URL) != "" {
			return true
		}
	}
	return false
}

// HasSignature reports whether the inspection was signed
func (i *Inspection) HasSignature() bool {
	return strings.TrimSpace(i.Signature) != ""
}

// RecomputeDerived refreshes item counters and the critical-issue flag from
// the checklist (detailed) or the overall rating (simple)
func (i *Inspection) RecomputeDerived() {
	i.TotalItems, i.PassedItems, i.FailedItems = 0, 0, 0
	i.HasCriticalIssues = false

	switch i.Type {
	case InspectionTypeDetailed:
		i.TotalItems = len(i.ChecklistItems)
		for _, item := range i.ChecklistItems {
			switch item.Status {
			case ItemPass:
				i.PassedItems++
			case ItemFail:
				i.FailedItems++
				if item.Critical {
					i.HasCriticalIssues = true
				}
			}
		}
	case InspectionTypeSimple:
		if i.OverallRating != nil && *i.OverallRating <= CriticalRatingThreshold {
			i.HasCriticalIssues = true
		}
	}
}

// IsDeleted reports whether the inspection was soft-deleted
func (i *Inspection) IsDeleted() bool {
	return i.DeletedAt != nil
}

// InspectionFilter defines criteria for listing inspections
type InspectionFilter struct {
	TenantID          string
	Statuses          []InspectionStatus
	Type              InspectionType
	ProjectID         string
	InspectorID       string
	ReviewerID        string
	ExternalClientID  string
	HasCriticalIssues *bool
	From              *time.Time
	To                *time.Time

	// OwnedBy limits results to inspections the user inspected or reviews
	OwnedBy string

	Page  int
	Limit int
}

// InspectionStats aggregates inspections of a tenant
type InspectionStats struct {
	Total              int                      `json:"total"`
	ByStatus           map[InspectionStatus]int `json:"by_status"`
	ByType             map[InspectionType]int   `json:"by_type"`
	WithCriticalIssues int                      `json:"with_critical_issues"`
	AverageRating      *float64                 `json:"average_rating,omitempty"`
	TotalItems         int                      `json:"total_items"`
	PassedItems        int                      `json:"passed_items"`
	FailedItems        int                      `json:"failed_items"`
	PassRate           float64                  `json:"pass_rate"`
}
