package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quality-hub/internal/auth"
	"quality-hub/internal/config"
	"quality-hub/internal/models"
)

// JWTSecret signs every token minted in tests
const JWTSecret = "test-secret-key-for-testing-only"

// AuthHelper mints access tokens for test actors
type AuthHelper struct {
	Service *auth.Service
}

// NewAuthHelper creates a new auth helper
func NewAuthHelper() *AuthHelper {
	return &AuthHelper{
		Service: auth.NewService(&config.JWTConfig{Secret: JWTSecret, Expiration: time.Hour}),
	}
}

// GenerateToken generates a token for a user of a tenant with an auth role
func (h *AuthHelper) GenerateToken(t *testing.T, userID, tenantID, role string) string {
	t.Helper()

	token, err := h.Service.GenerateToken(userID, tenantID, role)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return token
}

// AddAuthHeader adds a bearer token for the actor to the request
func (h *AuthHelper) AddAuthHeader(t *testing.T, req *http.Request, actor models.Actor) {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+h.GenerateToken(t, actor.UserID, actor.TenantID, actor.Role))
}

// CreateAuthenticatedRequest creates a request with auth header
func (h *AuthHelper) CreateAuthenticatedRequest(t *testing.T, method, url string, body io.Reader, actor models.Actor) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	h.AddAuthHeader(t, req, actor)
	return req
}

// TestResponse holds response data for assertions
type TestResponse struct {
	*httptest.ResponseRecorder
}

// NewTestResponse creates a new test response recorder
func NewTestResponse() *TestResponse {
	return &TestResponse{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

// AssertStatus asserts the HTTP status code
func (r *TestResponse) AssertStatus(t *testing.T, expected int) {
	t.Helper()

	if r.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, r.Code, r.Body.String())
	}
}

// DecodeData unmarshals the data field of a success envelope into v
func (r *TestResponse) DecodeData(t *testing.T, v any) {
	t.Helper()

	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(r.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to decode response: %v. Body: %s", err, r.Body.String())
	}
	if envelope.Status != "success" {
		t.Fatalf("Expected success envelope, got %q. Body: %s", envelope.Status, r.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("Failed to decode response data: %v", err)
	}
}

// ErrorCode returns the code field of an error envelope
func (r *TestResponse) ErrorCode(t *testing.T) string {
	t.Helper()

	var envelope struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(r.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to decode error response: %v. Body: %s", err, r.Body.String())
	}
	return envelope.Code
}
