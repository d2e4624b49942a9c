package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"

	"quality-hub/internal/apperr"
	"quality-hub/internal/auth"
	"quality-hub/internal/models"
	"quality-hub/internal/repository"
)

// APIKeyHeader carries "<prefix>.<secret>" for external client integrations
const APIKeyHeader = "X-API-Key"

// TokenValidator validates bearer access tokens
type TokenValidator interface {
	ValidateToken(token string) (*auth.JWTClaims, error)
}

// APIKeyStore looks up client API keys
type APIKeyStore interface {
	GetActiveByPrefix(ctx context.Context, prefix string) (*models.APIKey, error)
	TouchLastUsed(ctx context.Context, id string) error
}

// AuthGuard authenticates requests and enforces the auth role of a route group
type AuthGuard struct {
	tokens TokenValidator
	keys   APIKeyStore
}

// NewAuthGuard creates a new auth guard. keys may be nil to disable API keys.
func NewAuthGuard(tokens TokenValidator, keys APIKeyStore) *AuthGuard {
	return &AuthGuard{tokens: tokens, keys: keys}
}

// Authenticate resolves the caller from a bearer token or an API key and
// stores it as the request's actor
func (g *AuthGuard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := g.authenticate(r)
		if err != nil {
			respondWithError(w, err)
			return
		}

		actor.IPAddress = getIP(r)
		if ip := net.ParseIP(actor.IPAddress); ip == nil {
			actor.IPAddress = ""
		}
		actor.UserAgent = r.UserAgent()
		actor.RequestID = RequestID(r.Context())

		if info := requestInfoFrom(r.Context()); info != nil {
			info.userID = actor.UserID
			info.tenantID = actor.TenantID
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireRole rejects actors whose auth role is not one of roles. It must
// run after Authenticate.
func (g *AuthGuard) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				respondWithError(w, apperr.Unauthorized("User not authenticated"))
				return
			}
			if !slices.Contains(roles, actor.Role) {
				respondWithError(w, apperr.PermissionDenied("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Protect combines Authenticate and RequireRole
func (g *AuthGuard) Protect(next http.Handler, roles ...string) http.Handler {
	return g.Authenticate(g.RequireRole(roles...)(next))
}

func (g *AuthGuard) authenticate(r *http.Request) (models.Actor, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return models.Actor{}, apperr.Unauthorized("Invalid authorization header format")
		}

		claims, err := g.tokens.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				return models.Actor{}, apperr.Unauthorized("Token has expired")
			}
			return models.Actor{}, apperr.Unauthorized("Invalid or expired token")
		}
		return models.Actor{UserID: claims.UserID, TenantID: claims.TenantID, Role: claims.Role}, nil
	}

	if key := r.Header.Get(APIKeyHeader); key != "" && g.keys != nil {
		return g.authenticateAPIKey(r.Context(), key)
	}

	return models.Actor{}, apperr.Unauthorized("Missing authorization header")
}

// authenticateAPIKey maps a client API key to a client actor
func (g *AuthGuard) authenticateAPIKey(ctx context.Context, key string) (models.Actor, error) {
	invalid := apperr.Unauthorized("Invalid API key")

	prefix, secret, err := auth.SplitAPIKey(key)
	if err != nil {
		return models.Actor{}, invalid
	}

	k, err := g.keys.GetActiveByPrefix(ctx, prefix)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("Failed to look up api key", "prefix", prefix, "error", err)
			return models.Actor{}, apperr.Internal(err, "failed to verify api key")
		}
		return models.Actor{}, invalid
	}

	if err := auth.VerifyAPIKeySecret(k.SecretHash, secret); err != nil {
		slog.Warn("API key secret mismatch", "prefix", prefix)
		return models.Actor{}, invalid
	}

	if err := g.keys.TouchLastUsed(ctx, k.ID); err != nil {
		slog.Warn("Failed to record api key usage", "key_id", k.ID, "error", err)
	}

	return models.Actor{UserID: k.ClientID, TenantID: k.TenantID, Role: models.AuthRoleClient}, nil
}
