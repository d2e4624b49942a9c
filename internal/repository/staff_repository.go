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

// StaffRepository handles staff database operations
type StaffRepository struct {
	db *sql.DB
}

// NewStaffRepository creates a new staff repository
func NewStaffRepository(db *sql.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

const staffColumns = `id, tenant_id, user_id, first_name, last_name, email, main_role, quality_role, is_active, created_at, updated_at`

func scanStaff(row interface{ Scan(...any) error }) (*models.Staff, error) {
	var s models.Staff
	err := row.Scan(
		&s.ID, &s.TenantID, &s.UserID, &s.FirstName, &s.LastName, &s.Email,
		&s.MainRole, &s.QualityRole, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a staff member
func (r *StaffRepository) Create(ctx context.Context, s *models.Staff) error {
	query := `
		INSERT INTO staff (` + staffColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.TenantID, s.UserID, s.FirstName, s.LastName, s.Email, s.MainRole, s.QualityRole, s.IsActive, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create staff: %w", err)
	}
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

// GetByUserID retrieves the active staff record of a user within a tenant
func (r *StaffRepository) GetByUserID(ctx context.Context, tenantID, userID string) (*models.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE tenant_id = $1 AND user_id = $2 AND is_active`

	s, err := scanStaff(r.db.QueryRowContext(ctx, query, tenantID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	return s, nil
}

// SetQualityRole assigns role, or clears it when role is nil
func (r *StaffRepository) SetQualityRole(ctx context.Context, tenantID, userID string, role *string) error {
	query := `UPDATE staff SET quality_role = $3, updated_at = $4 WHERE tenant_id = $1 AND user_id = $2 AND is_active`

	res, err := r.db.ExecContext(ctx, query, tenantID, userID, role, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set quality role: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUserIDsByRoles returns active staff whose effective role is in roles.
// The quality role shadows the main role.
func (r *StaffRepository) ListUserIDsByRoles(ctx context.Context, tenantID string, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return []string{}, nil
	}

	query := `
		SELECT user_id FROM staff
		WHERE tenant_id = $1 AND is_active AND COALESCE(quality_role, main_role) = ANY($2)
		ORDER BY user_id
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(roles))
	if err != nil {
		return nil, fmt.Errorf("failed to list staff by roles: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan staff id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetContacts returns user id -> staff for the given users of a tenant
func (r *StaffRepository) GetContacts(ctx context.Context, tenantID string, userIDs []string) (map[string]models.Staff, error) {
	contacts := make(map[string]models.Staff, len(userIDs))
	if len(userIDs) == 0 {
		return contacts, nil
	}

	query := `SELECT ` + staffColumns + ` FROM staff WHERE tenant_id = $1 AND user_id::text = ANY($2) AND is_active`
	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get staff contacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		contacts[s.UserID] = *s
	}
	return contacts, rows.Err()
}
