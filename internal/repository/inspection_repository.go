package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"quality-hub/internal/database"
	"quality-hub/internal/models"
)

// InspectionRepository handles quality inspection database operations
type InspectionRepository struct {
	db *sql.DB
}

// NewInspectionRepository creates a new inspection repository
func NewInspectionRepository(db *sql.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

const inspectionColumns = `
	id, tenant_id, project_id, external_client_id, inspector_id, reviewer_id, approver_id,
	type, status, title, location, checklist_items, photos, signature, overall_rating, remarks,
	total_items, passed_items, failed_items, has_critical_issues, revision_count, metadata, version,
	inspection_date, submitted_date, reviewed_date, approved_date, completed_date, deleted_at,
	created_at, updated_at`

func scanInspection(row interface{ Scan(...any) error }) (*models.Inspection, error) {
	var (
		i        models.Inspection
		clientID sql.NullString
		rating   sql.NullInt64
	)
	err := row.Scan(
		&i.ID, &i.TenantID, &i.ProjectID, &clientID, &i.InspectorID, &i.ReviewerID, &i.ApproverID,
		&i.Type, &i.Status, &i.Title, &i.Location,
		jsonColumn{&i.ChecklistItems}, jsonColumn{&i.Photos}, &i.Signature, &rating, &i.Remarks,
		&i.TotalItems, &i.PassedItems, &i.FailedItems, &i.HasCriticalIssues, &i.RevisionCount,
		&i.Metadata, &i.Version,
		&i.InspectionDate, &i.SubmittedDate, &i.ReviewedDate, &i.ApprovedDate, &i.CompletedDate, &i.DeletedAt,
		&i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	i.ExternalClientID = clientID.String
	if rating.Valid {
		r := int(rating.Int64)
		i.OverallRating = &r
	}
	return &i, nil
}

// Create inserts a new inspection together with its outbox events
func (r *InspectionRepository) Create(ctx context.Context, i *models.Inspection, events ...*models.OutboxEvent) error {
	checklist, err := toJSON(nonNilItems(i.ChecklistItems))
	if err != nil {
		return err
	}
	photos, err := toJSON(nonNilPhotos(i.Photos))
	if err != nil {
		return err
	}

	now := time.Now()
	i.CreatedAt, i.UpdatedAt = now, now
	i.Version = 1

	query := `
		INSERT INTO quality_inspections (` + inspectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)
	`

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			i.ID, i.TenantID, i.ProjectID, nullString(i.ExternalClientID), i.InspectorID, i.ReviewerID, i.ApproverID,
			i.Type, i.Status, i.Title, i.Location, checklist, photos, i.Signature, i.OverallRating, i.Remarks,
			i.TotalItems, i.PassedItems, i.FailedItems, i.HasCriticalIssues, i.RevisionCount, i.Metadata, i.Version,
			i.InspectionDate, i.SubmittedDate, i.ReviewedDate, i.ApprovedDate, i.CompletedDate, i.DeletedAt,
			i.CreatedAt, i.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create inspection: %w", err)
		}
		return insertOutboxEvents(ctx, tx, events)
	})
}

// GetByID retrieves a non-deleted inspection of a tenant
func (r *InspectionRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Inspection, error) {
	query := `SELECT ` + inspectionColumns + `
		FROM quality_inspections
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`

	i, err := scanInspection(r.db.QueryRowContext(ctx, query, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inspection: %w", err)
	}
	return i, nil
}

// Update persists i if its version still matches the stored row, then bumps
// the version. Outbox events are written in the same transaction.
func (r *InspectionRepository) Update(ctx context.Context, i *models.Inspection, events ...*models.OutboxEvent) error {
	checklist, err := toJSON(nonNilItems(i.ChecklistItems))
	if err != nil {
		return err
	}
	photos, err := toJSON(nonNilPhotos(i.Photos))
	if err != nil {
		return err
	}

	now := time.Now()
	query := `
		UPDATE quality_inspections SET
			project_id = $4, external_client_id = $5, reviewer_id = $6, approver_id = $7,
			status = $8, title = $9, location = $10, checklist_items = $11, photos = $12,
			signature = $13, overall_rating = $14, remarks = $15,
			total_items = $16, passed_items = $17, failed_items = $18, has_critical_issues = $19,
			revision_count = $20, metadata = $21, inspection_date = $22,
			submitted_date = $23, reviewed_date = $24, approved_date = $25, completed_date = $26,
			deleted_at = $27, updated_at = $28, version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $3 AND deleted_at IS NULL
	`

	err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			i.ID, i.TenantID, i.Version,
			i.ProjectID, nullString(i.ExternalClientID), i.ReviewerID, i.ApproverID,
			i.Status, i.Title, i.Location, checklist, photos,
			i.Signature, i.OverallRating, i.Remarks,
			i.TotalItems, i.PassedItems, i.FailedItems, i.HasCriticalIssues,
			i.RevisionCount, i.Metadata, i.InspectionDate,
			i.SubmittedDate, i.ReviewedDate, i.ApprovedDate, i.CompletedDate,
			i.DeletedAt, now,
		)
		if err != nil {
			return fmt.Errorf("failed to update inspection: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update inspection: %w", err)
		}
		if affected == 0 {
			return ErrVersionConflict
		}
		return insertOutboxEvents(ctx, tx, events)
	})
	if err != nil {
		return err
	}

	i.Version++
	i.UpdatedAt = now
	return nil
}

// List retrieves inspections matching filter and the total match count
func (r *InspectionRepository) List(ctx context.Context, filter models.InspectionFilter) ([]models.Inspection, int, error) {
	where, args := inspectionWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM quality_inspections WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count inspections: %w", err)
	}

	query := `SELECT ` + inspectionColumns + ` FROM quality_inspections WHERE ` + where +
		fmt.Sprintf(` ORDER BY inspection_date DESC, created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, offset(filter.Page, filter.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list inspections: %w", err)
	}
	defer rows.Close()

	inspections := []models.Inspection{}
	for rows.Next() {
		i, err := scanInspection(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan inspection: %w", err)
		}
		inspections = append(inspections, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list inspections: %w", err)
	}

	return inspections, total, nil
}

func inspectionWhere(f models.InspectionFilter) (string, []any) {
	clauses := []string{"deleted_at IS NULL", "tenant_id = $1"}
	args := []any{f.TenantID}

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", pq.Array(statuses))
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.ProjectID != "" {
		add("project_id = $%d", f.ProjectID)
	}
	if f.InspectorID != "" {
		add("inspector_id = $%d", f.InspectorID)
	}
	if f.ReviewerID != "" {
		add("reviewer_id = $%d", f.ReviewerID)
	}
	if f.ExternalClientID != "" {
		add("external_client_id = $%d", f.ExternalClientID)
	}
	if f.HasCriticalIssues != nil {
		add("has_critical_issues = $%d", *f.HasCriticalIssues)
	}
	if f.From != nil {
		add("inspection_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("inspection_date <= $%d", *f.To)
	}
	if f.OwnedBy != "" {
		args = append(args, f.OwnedBy)
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(inspector_id = $%d OR reviewer_id = $%d)", n, n))
	}

	return strings.Join(clauses, " AND "), args
}

// Stats aggregates the tenant's inspections within an optional date range
func (r *InspectionRepository) Stats(ctx context.Context, tenantID string, from, to *time.Time) (*models.InspectionStats, error) {
	where, args := inspectionWhere(models.InspectionFilter{TenantID: tenantID, From: from, To: to})
	query := `
		SELECT status, type, COUNT(*),
		       COUNT(*) FILTER (WHERE has_critical_issues),
		       COALESCE(SUM(total_items), 0), COALESCE(SUM(passed_items), 0), COALESCE(SUM(failed_items), 0),
		       COALESCE(SUM(overall_rating), 0), COUNT(overall_rating)
		FROM quality_inspections
		WHERE ` + where + `
		GROUP BY status, type`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate inspections: %w", err)
	}
	defer rows.Close()

	stats := &models.InspectionStats{
		ByStatus: make(map[models.InspectionStatus]int),
		ByType:   make(map[models.InspectionType]int),
	}
	var ratingSum, ratingCount int
	for rows.Next() {
		var (
			status                                 models.InspectionStatus
			typ                                    models.InspectionType
			count, critical, total, passed, failed int
			sumRating, countRating                 int
		)
		if err := rows.Scan(&status, &typ, &count, &critical, &total, &passed, &failed, &sumRating, &countRating); err != nil {
			return nil, fmt.Errorf("failed to scan inspection stats: %w", err)
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByType[typ] += count
		stats.WithCriticalIssues += critical
		stats.TotalItems += total
		stats.PassedItems += passed
		stats.FailedItems += failed
		ratingSum += sumRating
		ratingCount += countRating
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to aggregate inspections: %w", err)
	}

	if ratingCount > 0 {
		avg := float64(ratingSum) / float64(ratingCount)
		stats.AverageRating = &avg
	}
	if stats.PassedItems+stats.FailedItems > 0 {
		stats.PassRate = float64(stats.PassedItems) / float64(stats.PassedItems+stats.FailedItems)
	}

	return stats, nil
}

// ListStalePending returns inspections of all tenants that have waited in the
// review queue since before submittedBefore and got no review reminder at or
// after remindedSince
func (r *InspectionRepository) ListStalePending(ctx context.Context, submittedBefore, remindedSince time.Time, limit int) ([]models.Inspection, error) {
	query := `SELECT ` + inspectionColumns + `
		FROM quality_inspections qi
		WHERE qi.deleted_at IS NULL AND qi.status IN ('pending', 'under_review') AND qi.submitted_date < $1
		  AND NOT EXISTS (
			SELECT 1 FROM notification_outbox o
			WHERE o.inspection_id = qi.id AND o.event_type = $2 AND o.created_at >= $3
		  )
		ORDER BY qi.submitted_date
		LIMIT $4`

	rows, err := r.db.QueryContext(ctx, query, submittedBefore, models.EventReviewReminder, remindedSince, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale inspections: %w", err)
	}
	defer rows.Close()

	inspections := []models.Inspection{}
	for rows.Next() {
		i, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inspection: %w", err)
		}
		inspections = append(inspections, *i)
	}
	return inspections, rows.Err()
}

func nonNilItems(items []models.ChecklistItem) []models.ChecklistItem {
	if items == nil {
		return []models.ChecklistItem{}
	}
	return items
}

func nonNilPhotos(photos []models.Photo) []models.Photo {
	if photos == nil {
		return []models.Photo{}
	}
	return photos
}
