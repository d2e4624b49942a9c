package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"quality-hub/internal/models"
)

// TenantRepository handles tenant and tenant policy database operations
type TenantRepository struct {
	db *sql.DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create inserts a tenant
func (r *TenantRepository) Create(ctx context.Context, t *models.Tenant) error {
	now := time.Now()
	query := `INSERT INTO tenants (id, name, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`
	if _, err := r.db.ExecContext(ctx, query, t.ID, t.Name, t.IsActive, now); err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return nil
}

// GetByID retrieves an active tenant
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := `SELECT id, name, is_active, created_at, updated_at FROM tenants WHERE id = $1 AND is_active`

	var t models.Tenant
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

// GetInspectionConfig retrieves the stored policy of a tenant
func (r *TenantRepository) GetInspectionConfig(ctx context.Context, tenantID string) (*models.TenantInspectionConfig, error) {
	query := `
		SELECT tenant_id, can_inspect, can_review, final_approver, allow_self_review,
		       require_photos, require_signature, use_detailed_inspections, updated_by, updated_at
		FROM tenant_inspection_configs
		WHERE tenant_id = $1
	`

	var c models.TenantInspectionConfig
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&c.TenantID, pq.Array(&c.CanInspect), pq.Array(&c.CanReview), &c.FinalApprover, &c.AllowSelfReview,
		&c.RequirePhotos, &c.RequireSignature, &c.UseDetailedInspections, &c.UpdatedBy, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inspection config: %w", err)
	}
	return &c, nil
}

// UpsertInspectionConfig stores the policy of a tenant
func (r *TenantRepository) UpsertInspectionConfig(ctx context.Context, c *models.TenantInspectionConfig) error {
	query := `
		INSERT INTO tenant_inspection_configs (
			tenant_id, can_inspect, can_review, final_approver, allow_self_review,
			require_photos, require_signature, use_detailed_inspections, updated_by, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id) DO UPDATE SET
			can_inspect = EXCLUDED.can_inspect,
			can_review = EXCLUDED.can_review,
			final_approver = EXCLUDED.final_approver,
			allow_self_review = EXCLUDED.allow_self_review,
			require_photos = EXCLUDED.require_photos,
			require_signature = EXCLUDED.require_signature,
			use_detailed_inspections = EXCLUDED.use_detailed_inspections,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
	`

	c.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		c.TenantID, pq.Array(c.CanInspect), pq.Array(c.CanReview), c.FinalApprover, c.AllowSelfReview,
		c.RequirePhotos, c.RequireSignature, c.UseDetailedInspections, c.UpdatedBy, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save inspection config: %w", err)
	}
	return nil
}
