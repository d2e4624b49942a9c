package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quality-hub/internal/models"
)

// APIKeyRepository handles client API key database operations
type APIKeyRepository struct {
	db *sql.DB
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create stores a new key; only the bcrypt hash of the secret is persisted
func (r *APIKeyRepository) Create(ctx context.Context, k *models.APIKey) error {
	query := `
		INSERT INTO api_keys (id, tenant_id, client_id, name, prefix, secret_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	k.CreatedAt = time.Now()
	if _, err := r.db.ExecContext(ctx, query, k.ID, k.TenantID, k.ClientID, k.Name, k.Prefix, k.SecretHash, k.CreatedAt); err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// GetActiveByPrefix retrieves a non-revoked key by its public prefix
func (r *APIKeyRepository) GetActiveByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	query := `
		SELECT id, tenant_id, client_id, name, prefix, secret_hash, last_used_at, revoked_at, created_at
		FROM api_keys
		WHERE prefix = $1 AND revoked_at IS NULL
	`

	var k models.APIKey
	err := r.db.QueryRowContext(ctx, query, prefix).Scan(
		&k.ID, &k.TenantID, &k.ClientID, &k.Name, &k.Prefix, &k.SecretHash, &k.LastUsedAt, &k.RevokedAt, &k.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return &k, nil
}

// TouchLastUsed records a successful authentication
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, time.Now()); err != nil {
		return fmt.Errorf("failed to update api key usage: %w", err)
	}
	return nil
}
