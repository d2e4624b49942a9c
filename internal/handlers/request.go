package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quality-hub/internal/apperr"
	"quality-hub/internal/middleware"
	"quality-hub/internal/models"
	"quality-hub/internal/service"
)

// maxBodyBytes bounds request bodies; photos are sent as references
const maxBodyBytes = 1 << 20

// Common error messages shared across handlers
const (
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgUnauthorized       = "User not authenticated"
)

func actorFrom(r *http.Request) (models.Actor, error) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		return models.Actor{}, apperr.Unauthorized(ErrMsgUnauthorized)
	}
	return actor, nil
}

// decodeJSON reads the request body into dst. An empty body leaves dst as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("request body exceeds %d bytes", tooLarge.Limit)
		}
		return apperr.Validation(ErrMsgInvalidRequestBody)
	}
	return nil
}

// ifMatch parses an If-Match header into an expected version. A missing
// header or "*" means no precondition.
func ifMatch(r *http.Request) (*int, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)

	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		return nil, apperr.Validation("If-Match must carry an inspection version")
	}
	return &version, nil
}

// parsePaginationParams reads page and limit; bounds are applied by the services
func parsePaginationParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

// parseTimeParam accepts RFC3339 timestamps or plain dates
func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	t, _, err := parseTimeValue(r, name)
	return t, err
}

// parseUpperTimeParam reads an inclusive upper bound: a plain date covers
// the whole day
func parseUpperTimeParam(r *http.Request, name string) (*time.Time, error) {
	t, dateOnly, err := parseTimeValue(r, name)
	if err != nil || t == nil || !dateOnly {
		return t, err
	}
	end := t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return &end, nil
}

func parseTimeValue(r *http.Request, name string) (*time.Time, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, false, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, false, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, true, nil
	}
	return nil, false, apperr.Validation("%s must be a date (YYYY-MM-DD) or RFC3339 timestamp", name)
}

func parseBoolParam(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Validation("%s must be true or false", name)
	}
	return &v, nil
}

// parseListParams builds the inspection filter shared by list and export
func parseListParams(r *http.Request) (service.ListInspectionsInput, error) {
	q := r.URL.Query()
	in := service.ListInspectionsInput{
		Type:        models.InspectionType(q.Get("type")),
		ProjectID:   q.Get("project_id"),
		InspectorID: q.Get("inspector_id"),
		ReviewerID:  q.Get("reviewer_id"),
	}
	in.Page, in.Limit = parsePaginationParams(r)

	for _, raw := range q["status"] {
		for _, s := range strings.Split(raw, ",") {
			status := models.InspectionStatus(strings.TrimSpace(s))
			if status == "" {
				continue
			}
			if !status.Valid() {
				return in, apperr.Validation("unknown status %q", status)
			}
			in.Statuses = append(in.Statuses, status)
		}
	}

	if in.Type != "" && in.Type != models.InspectionTypeDetailed && in.Type != models.InspectionTypeSimple {
		return in, apperr.Validation("type must be detailed or simple")
	}

	var err error
	if in.HasCriticalIssues, err = parseBoolParam(r, "has_critical_issues"); err != nil {
		return in, err
	}
	if in.From, err = parseTimeParam(r, "from"); err != nil {
		return in, err
	}
	if in.To, err = parseUpperTimeParam(r, "to"); err != nil {
		return in, err
	}
	return in, nil
}
