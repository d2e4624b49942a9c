package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"quality-hub/internal/email"
	"quality-hub/internal/models"
)

// NotificationWriter stores in-app notifications
type NotificationWriter interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
}

// InAppChannel writes one notification row per recipient
type InAppChannel struct {
	repo NotificationWriter
}

func NewInAppChannel(repo NotificationWriter) *InAppChannel {
	return &InAppChannel{repo: repo}
}

func (c *InAppChannel) Name() string { return "in_app" }

func (c *InAppChannel) Send(ctx context.Context, d Delivery) map[string]error {
	resourceType, resourceID := "", ""
	if d.Event.InspectionID != nil {
		resourceType, resourceID = models.ResourceInspection, *d.Event.InspectionID
	}

	rows := make([]models.Notification, 0, len(d.Recipients))
	for _, userID := range d.Recipients {
		rows = append(rows, models.Notification{
			ID:           uuid.NewString(),
			TenantID:     d.Event.TenantID,
			UserID:       userID,
			EventID:      d.Event.ID,
			EventType:    d.Event.EventType,
			Title:        d.Message.Title,
			Message:      d.Message.Body,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			Data:         d.Event.Data,
		})
	}

	if err := c.repo.CreateBatch(ctx, rows); err != nil {
		return failAll(d.Recipients, err)
	}
	return nil
}

// Publisher is the subset of a NATS connection used for push events
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// PushEvent is the JSON document published for consumers of the
// notifications stream
type PushEvent struct {
	EventID      string            `json:"event_id"`
	EventType    string            `json:"event_type"`
	TenantID     string            `json:"tenant_id"`
	ActorID      string            `json:"actor_id"`
	Recipients   []string          `json:"recipients"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	ActionURL    string            `json:"action_url,omitempty"`
	Category     string            `json:"category"`
	Payload      map[string]string `json:"payload,omitempty"`
}

// NATSChannel publishes each event once to <prefix>.quality.<event_type>
type NATSChannel struct {
	conn   Publisher
	prefix string
}

func NewNATSChannel(conn Publisher, subjectPrefix string) *NATSChannel {
	if subjectPrefix == "" {
		subjectPrefix = "notifications"
	}
	return &NATSChannel{conn: conn, prefix: subjectPrefix}
}

func (c *NATSChannel) Name() string { return "nats" }

// Subject returns the subject an event type is published on
func (c *NATSChannel) Subject(eventType models.EventType) string {
	return fmt.Sprintf("%s.quality.%s", c.prefix, eventType)
}

func (c *NATSChannel) Send(_ context.Context, d Delivery) map[string]error {
	event := PushEvent{
		EventID:    d.Event.ID,
		EventType:  string(d.Event.EventType),
		TenantID:   d.Event.TenantID,
		ActorID:    d.Event.ActorID,
		Recipients: d.Recipients,
		Title:      d.Message.Title,
		Message:    d.Message.Body,
		ActionURL:  d.Message.Path,
		Category:   "quality_inspection",
		Payload:    d.Event.Data,
	}
	if d.Event.InspectionID != nil {
		event.ResourceType = models.ResourceInspection
		event.ResourceID = *d.Event.InspectionID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return failAll(d.Recipients, fmt.Errorf("failed to marshal push event: %w", err))
	}

	msg := nats.NewMsg(c.Subject(d.Event.EventType))
	msg.Data = data
	// lets JetStream drop redeliveries of the same outbox event
	msg.Header.Set(nats.MsgIdHdr, d.Event.ID)

	if err := c.conn.PublishMsg(msg); err != nil {
		return failAll(d.Recipients, fmt.Errorf("failed to publish to %s: %w", msg.Subject, err))
	}
	return nil
}

// Mailer sends a rendered notification mail
type Mailer interface {
	SendNotification(to string, n email.Notification) error
}

// EmailChannel mails staff recipients that have an address on file.
// Recipients without contact data are skipped, not failed.
type EmailChannel struct {
	mailer Mailer
}

func NewEmailChannel(mailer Mailer) *EmailChannel {
	return &EmailChannel{mailer: mailer}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(_ context.Context, d Delivery) map[string]error {
	var failures map[string]error
	for _, userID := range d.Recipients {
		staff, ok := d.Contacts[userID]
		if !ok || staff.Email == "" || !staff.IsActive {
			continue
		}

		err := c.mailer.SendNotification(staff.Email, email.Notification{
			RecipientName: staff.FullName(),
			Subject:       d.Message.Title,
			Heading:       d.Message.Title,
			Message:       d.Message.Body,
			Details:       details(d.Message.Details),
			Path:          d.Message.Path,
		})
		if err != nil {
			slog.Warn("Failed to send notification email", "user_id", userID, "event_id", d.Event.ID, "error", err)
			if failures == nil {
				failures = map[string]error{}
			}
			failures[userID] = err
		}
	}
	return failures
}

func details(m map[string]string) []email.Detail {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]email.Detail, 0, len(keys))
	for _, k := range keys {
		out = append(out, email.Detail{Label: k, Value: m[k]})
	}
	return out
}

func failAll(recipients []string, err error) map[string]error {
	out := make(map[string]error, len(recipients))
	for _, id := range recipients {
		out[id] = err
	}
	return out
}
