package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"quality-hub/internal/models"
)

// OutboxRepository handles notification outbox database operations
type OutboxRepository struct {
	db *sql.DB
}

// InlineDeliveryGrace delays the first retry of a new event so the request
// that enqueued it can deliver it before the scheduler sees it
const InlineDeliveryGrace = time.Minute

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func insertOutboxEvents(ctx context.Context, q dbtx, events []*models.OutboxEvent) error {
	query := `
		INSERT INTO notification_outbox (
			id, tenant_id, event_type, inspection_id, actor_id, recipient_roles, recipient_user_ids,
			data, status, attempts, next_attempt_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11)
	`

	for _, e := range events {
		if e == nil {
			continue
		}
		if e.Status == "" {
			e.Status = models.OutboxPending
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		if e.NextAttemptAt.IsZero() {
			e.NextAttemptAt = e.CreatedAt.Add(InlineDeliveryGrace)
		}

		_, err := q.ExecContext(ctx, query,
			e.ID, e.TenantID, e.EventType, e.InspectionID, e.ActorID,
			pq.Array(nonNilStrings(e.RecipientRoles)), pq.Array(nonNilStrings(e.RecipientUserIDs)),
			e.Data, e.Status, e.NextAttemptAt, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to enqueue %s event: %w", e.EventType, err)
		}
	}
	return nil
}

// Enqueue stores events outside of an inspection update
func (r *OutboxRepository) Enqueue(ctx context.Context, events ...*models.OutboxEvent) error {
	return insertOutboxEvents(ctx, r.db, events)
}

// GetByID retrieves one outbox event
func (r *OutboxRepository) GetByID(ctx context.Context, id string) (*models.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + ` FROM notification_outbox WHERE id = $1`

	e, err := scanOutboxEvent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox event: %w", err)
	}
	return e, nil
}

// ListDue returns pending events whose next attempt is due, oldest first
func (r *OutboxRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + `
		FROM notification_outbox
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY created_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due outbox events: %w", err)
	}
	defer rows.Close()

	events := []models.OutboxEvent{}
	for rows.Next() {
		e, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// MarkDelivered flags an event as delivered
func (r *OutboxRepository) MarkDelivered(ctx context.Context, id string) error {
	query := `
		UPDATE notification_outbox
		SET status = 'delivered', attempts = attempts + 1, last_error = '', delivered_at = $2
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now()); err != nil {
		return fmt.Errorf("failed to mark outbox event delivered: %w", err)
	}
	return nil
}

// MarkAttemptFailed records a failed delivery. The event stays pending until
// maxAttempts is reached and is then marked failed.
func (r *OutboxRepository) MarkAttemptFailed(ctx context.Context, id, lastError string, nextAttempt time.Time, maxAttempts int) error {
	query := `
		UPDATE notification_outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    next_attempt_at = $3,
		    status = CASE WHEN attempts + 1 >= $4 THEN 'failed' ELSE 'pending' END
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, lastError, nextAttempt, maxAttempts); err != nil {
		return fmt.Errorf("failed to record outbox attempt: %w", err)
	}
	return nil
}

const outboxColumns = `
	id, tenant_id, event_type, inspection_id, actor_id, recipient_roles, recipient_user_ids,
	data, status, attempts, last_error, next_attempt_at, delivered_at, created_at`

func scanOutboxEvent(row interface{ Scan(...any) error }) (*models.OutboxEvent, error) {
	var e models.OutboxEvent
	err := row.Scan(
		&e.ID, &e.TenantID, &e.EventType, &e.InspectionID, &e.ActorID,
		pq.Array(&e.RecipientRoles), pq.Array(&e.RecipientUserIDs),
		&e.Data, &e.Status, &e.Attempts, &e.LastError, &e.NextAttemptAt, &e.DeliveredAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
