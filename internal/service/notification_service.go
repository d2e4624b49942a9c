package service

import (
	"context"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
)

// NotificationService exposes a user's in-app notifications
type NotificationService struct {
	notificationRepo NotificationStore
}

// NewNotificationService creates a new notification service
func NewNotificationService(notificationRepo NotificationStore) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

// List returns the caller's notifications, newest first
func (s *NotificationService) List(ctx context.Context, actor models.Actor, unreadOnly bool, page, limit int) (models.Page[models.Notification], error) {
	page, limit = normalizePage(page, limit)
	items, total, err := s.notificationRepo.ListForUser(ctx, actor.TenantID, actor.UserID, unreadOnly, page, limit)
	if err != nil {
		return models.Page[models.Notification]{}, apperr.Internal(err, "failed to list notifications")
	}
	return models.NewPage(items, total, page, limit), nil
}

// MarkRead marks one of the caller's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, actor models.Actor, id string) error {
	if !validUUID(id) {
		return apperr.NotFound("notification")
	}
	if err := s.notificationRepo.MarkRead(ctx, actor.TenantID, actor.UserID, id); err != nil {
		return storeError(err, "notification", "mark notification read")
	}
	return nil
}
