package service

import (
	"context"
	"time"

	"quality-hub/internal/models"
)

// InspectionStore persists inspections. Update is optimistic on Version and
// writes the given outbox events in the same transaction.
type InspectionStore interface {
	Create(ctx context.Context, i *models.Inspection, events ...*models.OutboxEvent) error
	GetByID(ctx context.Context, tenantID, id string) (*models.Inspection, error)
	Update(ctx context.Context, i *models.Inspection, events ...*models.OutboxEvent) error
	List(ctx context.Context, filter models.InspectionFilter) ([]models.Inspection, int, error)
	Stats(ctx context.Context, tenantID string, from, to *time.Time) (*models.InspectionStats, error)
}

type StaffStore interface {
	GetByUserID(ctx context.Context, tenantID, userID string) (*models.Staff, error)
	SetQualityRole(ctx context.Context, tenantID, userID string, role *string) error
}

type TenantStore interface {
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	GetInspectionConfig(ctx context.Context, tenantID string) (*models.TenantInspectionConfig, error)
	UpsertInspectionConfig(ctx context.Context, c *models.TenantInspectionConfig) error
}

type AuditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

type OutboxStore interface {
	Enqueue(ctx context.Context, events ...*models.OutboxEvent) error
}

type NotificationStore interface {
	ListForUser(ctx context.Context, tenantID, userID string, unreadOnly bool, page, limit int) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, tenantID, userID, id string) error
}

// Notifier delivers committed outbox events. Failures are handled by the
// notifier and never reach the caller.
type Notifier interface {
	Deliver(ctx context.Context, events ...*models.OutboxEvent)
}

// Sealer protects sensitive free text at rest
type Sealer interface {
	Seal(ctx context.Context, plaintext string) (string, error)
	Open(ctx context.Context, ciphertext string) (string, error)
}
