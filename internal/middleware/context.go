package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
)

type contextKey string

const (
	actorKey       contextKey = "actor"
	requestInfoKey contextKey = "request_info"
)

// RequestIDHeader carries the correlation id of a request
const RequestIDHeader = "X-Request-ID"

// requestInfo is filled in by inner middleware so the logging middleware
// can report who made the request
type requestInfo struct {
	id       string
	userID   string
	tenantID string
}

// WithActor stores the authenticated caller in the context
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom retrieves the authenticated caller from the context
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}

// RequestID returns the correlation id assigned by LoggingMiddleware
func RequestID(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		return info.id
	}
	return ""
}

func withRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey, info)
}

func requestInfoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey).(*requestInfo)
	return info
}

type errorResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Code    apperr.Code `json:"code"`
}

// respondWithError writes the standard error envelope
func respondWithError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(errorResponse{
		Status:  "error",
		Message: apperr.PublicMessage(err),
		Code:    apperr.CodeOf(err),
	})
}
