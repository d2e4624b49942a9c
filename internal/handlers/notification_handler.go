package handlers

import (
	"context"
	"net/http"

	"quality-hub/internal/models"
)

// NotificationService reads the caller's in-app notifications
type NotificationService interface {
	List(ctx context.Context, actor models.Actor, unreadOnly bool, page, limit int) (models.Page[models.Notification], error)
	MarkRead(ctx context.Context, actor models.Actor, id string) error
}

// NotificationHandler handles in-app notification requests
type NotificationHandler struct {
	notifications NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List returns the caller's notifications
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread notifications"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} SuccessResponse{data=models.Page[models.Notification]}
// @Router /notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	unread, err := parseBoolParam(r, "unread")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	pageNum, limit := parsePaginationParams(r)
	page, err := h.notifications.List(r.Context(), actor, unread != nil && *unread, pageNum, limit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Notifications retrieved", page)
}

// MarkRead marks one notification as read
// @Summary Mark notification read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if err := h.notifications.MarkRead(r.Context(), actor, r.PathValue("id")); err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Notification marked as read", nil)
}
