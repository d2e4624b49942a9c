// Package notify resolves recipients for workflow events and fans them out
// to the configured delivery channels. Events come from the outbox; a failed
// delivery leaves the event pending for the scheduler to retry.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"quality-hub/internal/models"
)

// StaffDirectory resolves role holders and contact data
type StaffDirectory interface {
	ListUserIDsByRoles(ctx context.Context, tenantID string, roles []string) ([]string, error)
	GetContacts(ctx context.Context, tenantID string, userIDs []string) (map[string]models.Staff, error)
}

// OutboxStore tracks delivery state of outbox events
type OutboxStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEvent, error)
	MarkDelivered(ctx context.Context, id string) error
	MarkAttemptFailed(ctx context.Context, id, lastError string, nextAttempt time.Time, maxAttempts int) error
}

// Delivery is one event addressed to resolved recipients
type Delivery struct {
	Event      *models.OutboxEvent
	Message    Message
	Recipients []string
	// Contacts holds staff records for recipients that are staff members
	Contacts map[string]models.Staff
}

// Channel delivers notifications over one medium. Send returns failures
// keyed by recipient user id; a nil map means every recipient was served.
type Channel interface {
	Name() string
	Send(ctx context.Context, d Delivery) map[string]error
}

// RecipientResult is the per-recipient outcome of a dispatch
type RecipientResult struct {
	UserID    string            `json:"user_id"`
	Delivered bool              `json:"delivered"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Result is the outcome of dispatching one event
type Result struct {
	Success bool              `json:"success"`
	Results []RecipientResult `json:"results"`
}

// Options tunes retry behaviour
type Options struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Dispatcher implements the notification side of the workflow
type Dispatcher struct {
	staff    StaffDirectory
	outbox   OutboxStore
	channels []Channel
	opts     Options
	now      func() time.Time
}

// NewDispatcher creates a dispatcher over the given channels
func NewDispatcher(staff StaffDirectory, outbox OutboxStore, opts Options, channels ...Channel) *Dispatcher {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 5
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 30 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = time.Hour
	}
	return &Dispatcher{
		staff:    staff,
		outbox:   outbox,
		channels: channels,
		opts:     opts,
		now:      time.Now,
	}
}

// ResolveRecipients returns role holders and explicit users, deduplicated,
// without invalid ids and without the acting user.
func (d *Dispatcher) ResolveRecipients(ctx context.Context, e *models.OutboxEvent) ([]string, error) {
	var candidates []string
	if roles := nonBlank(e.RecipientRoles); len(roles) > 0 {
		ids, err := d.staff.ListUserIDsByRoles(ctx, e.TenantID, roles)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve role recipients: %w", err)
		}
		candidates = append(candidates, ids...)
	}
	candidates = append(candidates, e.RecipientUserIDs...)

	seen := make(map[string]bool, len(candidates))
	recipients := make([]string, 0, len(candidates))
	for _, id := range candidates {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] || id == e.ActorID {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		seen[id] = true
		recipients = append(recipients, id)
	}
	return recipients, nil
}

// Dispatch sends one event over every channel
func (d *Dispatcher) Dispatch(ctx context.Context, e *models.OutboxEvent) (Result, error) {
	recipients, err := d.ResolveRecipients(ctx, e)
	if err != nil {
		return Result{}, err
	}
	if len(recipients) == 0 {
		return Result{Success: true, Results: []RecipientResult{}}, nil
	}

	contacts, err := d.staff.GetContacts(ctx, e.TenantID, recipients)
	if err != nil {
		// contacts only feed optional channels
		slog.Warn("Failed to load recipient contacts", "error", err, "event_id", e.ID)
		contacts = map[string]models.Staff{}
	}

	delivery := Delivery{
		Event:      e,
		Message:    Render(e),
		Recipients: recipients,
		Contacts:   contacts,
	}

	failures := make(map[string]map[string]string)
	for _, ch := range d.channels {
		for userID, sendErr := range ch.Send(ctx, delivery) {
			if sendErr == nil {
				continue
			}
			if failures[userID] == nil {
				failures[userID] = map[string]string{}
			}
			failures[userID][ch.Name()] = sendErr.Error()
		}
	}

	result := Result{Success: len(failures) == 0, Results: make([]RecipientResult, 0, len(recipients))}
	for _, id := range recipients {
		result.Results = append(result.Results, RecipientResult{
			UserID:    id,
			Delivered: failures[id] == nil,
			Errors:    failures[id],
		})
	}
	return result, nil
}

// Deliver dispatches committed events and records the outcome. It never
// returns an error; failed events stay pending for retry.
func (d *Dispatcher) Deliver(ctx context.Context, events ...*models.OutboxEvent) {
	for _, e := range events {
		if e == nil {
			continue
		}
		d.deliver(ctx, e)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e *models.OutboxEvent) bool {
	result, err := d.Dispatch(ctx, e)
	if err == nil && !result.Success {
		err = resultError(result)
	}

	if err != nil {
		next := d.now().Add(d.backoff(e.Attempts + 1))
		slog.Warn("Notification delivery failed",
			"event_id", e.ID,
			"event_type", e.EventType,
			"attempt", e.Attempts+1,
			"error", err,
		)
		if markErr := d.outbox.MarkAttemptFailed(ctx, e.ID, err.Error(), next, d.opts.MaxAttempts); markErr != nil {
			slog.Error("Failed to record notification attempt", "event_id", e.ID, "error", markErr)
		}
		return false
	}

	if markErr := d.outbox.MarkDelivered(ctx, e.ID); markErr != nil {
		slog.Error("Failed to mark notification delivered", "event_id", e.ID, "error", markErr)
	}
	slog.Debug("Notification delivered", "event_id", e.ID, "event_type", e.EventType, "recipients", len(result.Results))
	return true
}

// DeliverPending retries due outbox events
func (d *Dispatcher) DeliverPending(ctx context.Context, batchSize int) (delivered, failed int, err error) {
	events, err := d.outbox.ListDue(ctx, d.now(), batchSize)
	if err != nil {
		return 0, 0, err
	}
	for idx := range events {
		if ctx.Err() != nil {
			return delivered, failed, ctx.Err()
		}
		if d.deliver(ctx, &events[idx]) {
			delivered++
		} else {
			failed++
		}
	}
	return delivered, failed, nil
}

// backoff doubles per attempt up to MaxBackoff
func (d *Dispatcher) backoff(attempt int) time.Duration {
	wait := d.opts.BaseBackoff
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= d.opts.MaxBackoff {
			return d.opts.MaxBackoff
		}
	}
	return wait
}

func resultError(r Result) error {
	var errs []error
	for _, rr := range r.Results {
		for channel, msg := range rr.Errors {
			errs = append(errs, fmt.Errorf("%s to %s: %s", channel, rr.UserID, msg))
		}
	}
	return errors.Join(errs...)
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
