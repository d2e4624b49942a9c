package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quality-hub/internal/database"
	"quality-hub/internal/models"
)

// NotificationRepository handles in-app notification database operations
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch stores notifications. A redelivered event does not duplicate
// rows for users that already received it.
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	query := `
		INSERT INTO notifications (
			id, tenant_id, user_id, event_id, event_type, title, message, resource_type, resource_id, data, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (event_id, user_id) DO NOTHING
	`

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		now := time.Now()
		for i := range notifications {
			n := &notifications[i]
			if n.CreatedAt.IsZero() {
				n.CreatedAt = now
			}
			if _, err := tx.ExecContext(ctx, query,
				n.ID, n.TenantID, n.UserID, n.EventID, n.EventType, n.Title, n.Message,
				n.ResourceType, n.ResourceID, n.Data, n.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to create notification: %w", err)
			}
		}
		return nil
	})
}

// ListForUser retrieves a user's notifications, newest first, with the total count
func (r *NotificationRepository) ListForUser(ctx context.Context, tenantID, userID string, unreadOnly bool, page, limit int) ([]models.Notification, int, error) {
	where := `tenant_id = $1 AND user_id = $2`
	if unreadOnly {
		where += ` AND read_at IS NULL`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE `+where, tenantID, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := `
		SELECT id, tenant_id, user_id, event_id, event_type, title, message, resource_type, resource_id, data, read_at, created_at
		FROM notifications
		WHERE ` + where + `
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, tenantID, userID, limit, offset(page, limit))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(
			&n.ID, &n.TenantID, &n.UserID, &n.EventID, &n.EventType, &n.Title, &n.Message,
			&n.ResourceType, &n.ResourceID, &n.Data, &n.ReadAt, &n.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, total, rows.Err()
}

// MarkRead marks one of the user's notifications as read
func (r *NotificationRepository) MarkRead(ctx context.Context, tenantID, userID, id string) error {
	query := `
		UPDATE notifications SET read_at = COALESCE(read_at, $4)
		WHERE id = $1 AND tenant_id = $2 AND user_id = $3
	`
	res, err := r.db.ExecContext(ctx, query, id, tenantID, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
