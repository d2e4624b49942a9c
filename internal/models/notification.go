package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies a workflow event that produces notifications
type EventType string

const (
	EventInspectionSubmitted  EventType = "inspection_submitted"
	EventInspectionAssigned   EventType = "inspection_assigned"
	EventInspectionApproved   EventType = "inspection_approved"
	EventInspectionRejected   EventType = "inspection_rejected"
	EventRevisionRequested    EventType = "revision_requested"
	EventInspectionCompleted  EventType = "inspection_completed"
	EventInspectionOverridden EventType = "inspection_overridden"
	EventClientReviewed       EventType = "client_reviewed"
	EventClientApproved       EventType = "client_approved"
	EventClientRejected       EventType = "client_rejected"
	EventRoleAssigned         EventType = "quality_role_assigned"
	EventRoleRemoved          EventType = "quality_role_removed"
	EventReviewReminder       EventType = "review_reminder"
)

// OutboxStatus is the delivery state of an outbox event
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxDelivered OutboxStatus = "delivered"
	OutboxFailed    OutboxStatus = "failed"
)

// EventData carries event-specific key/value pairs for templates
type EventData map[string]string

func (d EventData) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func (d *EventData) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*d = EventData{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported event data type %T", src)
	}
	out := EventData{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to unmarshal event data: %w", err)
	}
	*d = out
	return nil
}

// OutboxEvent is a notification waiting for delivery. It is written in the
// same transaction as the state change that produced it.
type OutboxEvent struct {
	ID               string       `json:"id" db:"id"`
	TenantID         string       `json:"tenant_id" db:"tenant_id"`
	EventType        EventType    `json:"event_type" db:"event_type"`
	InspectionID     *string      `json:"inspection_id,omitempty" db:"inspection_id"`
	ActorID          string       `json:"actor_id" db:"actor_id"`
	RecipientRoles   []string     `json:"recipient_roles" db:"recipient_roles"`
	RecipientUserIDs []string     `json:"recipient_user_ids" db:"recipient_user_ids"`
	Data             EventData    `json:"data" db:"data"`
	Status           OutboxStatus `json:"status" db:"status"`
	Attempts         int          `json:"attempts" db:"attempts"`
	LastError        string       `json:"last_error,omitempty" db:"last_error"`
	NextAttemptAt    time.Time    `json:"next_attempt_at" db:"next_attempt_at"`
	DeliveredAt      *time.Time   `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}

// Notification is an in-app message for one user
type Notification struct {
	ID           string     `json:"id" db:"id"`
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	UserID       string     `json:"user_id" db:"user_id"`
	EventID      string     `json:"event_id" db:"event_id"`
	EventType    EventType  `json:"event_type" db:"event_type"`
	Title        string     `json:"title" db:"title"`
	Message      string     `json:"message" db:"message"`
	ResourceType string     `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID   string     `json:"resource_id,omitempty" db:"resource_id"`
	Data         EventData  `json:"data" db:"data"`
	ReadAt       *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
