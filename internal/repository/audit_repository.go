package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"quality-hub/internal/models"
)

// AuditRepository handles audit log database operations. Entries are never
// updated or deleted; the table rejects both with a trigger.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create creates a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, tenant_id, actor_id, actor_role, action, resource_type, resource_id, success, severity,
			old_values, new_values, error_message, ip_address, user_agent, request_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		log.ID, log.TenantID, log.ActorID, log.ActorRole, log.Action, log.ResourceType, log.ResourceID,
		log.Success, log.Severity, rawJSON(log.OldValues), rawJSON(log.NewValues), log.ErrorMessage,
		log.IPAddress, log.UserAgent, log.RequestID, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// List retrieves audit logs matching filter, newest first, with the total count
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	clauses := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.ResourceType != "" {
		add("resource_type = $%d", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add("resource_id = $%d", filter.ResourceID)
	}
	if filter.ActorID != "" {
		add("actor_id = $%d", filter.ActorID)
	}
	if filter.Success != nil {
		add("success = $%d", *filter.Success)
	}
	if filter.Severity != "" {
		add("severity = $%d", filter.Severity)
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := `
		SELECT id, tenant_id, actor_id, actor_role, action, resource_type, resource_id, success, severity,
		       old_values, new_values, error_message, ip_address, user_agent, request_id, created_at
		FROM audit_logs
		WHERE ` + where + fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, offset(filter.Page, filter.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get audit logs: %w", err)
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var (
			log                  models.AuditLog
			oldValues, newValues []byte
		)
		if err := rows.Scan(
			&log.ID, &log.TenantID, &log.ActorID, &log.ActorRole, &log.Action, &log.ResourceType,
			&log.ResourceID, &log.Success, &log.Severity, &oldValues, &newValues, &log.ErrorMessage,
			&log.IPAddress, &log.UserAgent, &log.RequestID, &log.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.OldValues, log.NewValues = oldValues, newValues
		logs = append(logs, log)
	}

	return logs, total, rows.Err()
}

// rawJSON maps empty JSON to NULL
func rawJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
