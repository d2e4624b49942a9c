package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"quality-hub/internal/apperr"
)

// SuccessResponse is the envelope of every successful response
type SuccessResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the envelope of every failed response
type ErrorResponse struct {
	Status  string      `json:"status" example:"error"`
	Message string      `json:"message"`
	Code    apperr.Code `json:"code" example:"VALIDATION_ERROR"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","message":"Internal server error","code":"INTERNAL_ERROR"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}

func respondSuccess(w http.ResponseWriter, code int, message string, data any) {
	respondWithJSON(w, code, SuccessResponse{Status: "success", Message: message, Data: data})
}

// respondWithError maps err onto its status code. Unexpected errors are
// logged here and never leak their cause.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondWithJSON(w, status, ErrorResponse{
		Status:  "error",
		Message: apperr.PublicMessage(err),
		Code:    apperr.CodeOf(err),
	})
}

// setETag exposes the version used for optimistic concurrency
func setETag(w http.ResponseWriter, version int) {
	w.Header().Set("ETag", strconv.Quote(strconv.Itoa(version)))
}
