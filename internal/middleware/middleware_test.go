package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"quality-hub/internal/auth"
	"quality-hub/internal/config"
	"quality-hub/internal/models"
	"quality-hub/internal/repository"
)

type fakeKeys struct {
	keys    map[string]*models.APIKey
	touched []string
}

func (f *fakeKeys) GetActiveByPrefix(_ context.Context, prefix string) (*models.APIKey, error) {
	if k, ok := f.keys[prefix]; ok {
		return k, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeKeys) TouchLastUsed(_ context.Context, id string) error {
	f.touched = append(f.touched, id)
	return nil
}

func newGuard(t *testing.T) (*AuthGuard, *auth.Service, *fakeKeys) {
	t.Helper()
	tokens := auth.NewService(&config.JWTConfig{Secret: "test-secret-with-enough-length", Expiration: time.Hour})
	keys := &fakeKeys{keys: map[string]*models.APIKey{}}
	return NewAuthGuard(tokens, keys), tokens, keys
}

func actorEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		require.True(t, ok)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(actor)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthGuardBearerToken(t *testing.T) {
	guard, tokens, _ := newGuard(t)
	userID, tenantID := uuid.NewString(), uuid.NewString()
	token, err := tokens.GenerateToken(userID, tenantID, models.AuthRoleStaff)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff/quality-inspections", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	guard.Protect(actorEcho(t), models.AuthRoleStaff).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var actor models.Actor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actor))
	assert.Equal(t, userID, actor.UserID)
	assert.Equal(t, tenantID, actor.TenantID)
	assert.Equal(t, models.AuthRoleStaff, actor.Role)
}

func TestAuthGuardRejects(t *testing.T) {
	guard, tokens, _ := newGuard(t)
	clientToken, err := tokens.GenerateToken(uuid.NewString(), uuid.NewString(), models.AuthRoleClient)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong role for route group", "Bearer " + clientToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			guard.Protect(actorEcho(t), models.AuthRoleStaff).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "error", body.Status)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestAuthGuardAPIKey(t *testing.T) {
	guard, _, keys := newGuard(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	key := &models.APIKey{ID: uuid.NewString(), TenantID: uuid.NewString(), ClientID: uuid.NewString(), Prefix: "qh_abc", SecretHash: string(hash)}
	keys.keys[key.Prefix] = key

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(APIKeyHeader, "qh_abc.s3cret")
	rec := httptest.NewRecorder()
	guard.Protect(actorEcho(t), models.AuthRoleClient).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var actor models.Actor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actor))
	assert.Equal(t, key.ClientID, actor.UserID)
	assert.Equal(t, key.TenantID, actor.TenantID)
	assert.Equal(t, models.AuthRoleClient, actor.Role)
	assert.Equal(t, []string{key.ID}, keys.touched)

	for _, bad := range []string{"qh_abc.wrong", "qh_unknown.s3cret", "no-separator"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(APIKeyHeader, bad)
		rec := httptest.NewRecorder()
		guard.Protect(actorEcho(t), models.AuthRoleClient).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, bad)
	}
}

func TestLoggingMiddlewareAssignsRequestID(t *testing.T) {
	var seen string
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, given)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, given, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "<script>", seen)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{Enabled: true, Requests: 2, Duration: time.Minute})
	defer rl.Stop()
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("192.0.2.1"))
	assert.Equal(t, http.StatusOK, call("192.0.2.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("192.0.2.1"))
	assert.Equal(t, http.StatusOK, call("192.0.2.2"), "buckets are per client")

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, call("192.0.2.1"), "bucket refills after the window")
}

func TestCORSPreflight(t *testing.T) {
	m := NewCORSMiddleware(&config.CORSConfig{
		AllowedOrigins:   []string{"https://portal.example.com"},
		AllowedMethods:   []string{"GET", "PUT"},
		AllowedHeaders:   []string{"Authorization", "If-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	called := false
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/notifications", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://portal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, PUT", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "ETag", rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/staff/quality-inspections", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "unsafe-inline")
}
