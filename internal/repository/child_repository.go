package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/covenantkids/checkin-api/internal/models"
)

// ChildRepository manages persistence for child records.
type ChildRepository struct {
	db *sqlx.DB
}

// NewChildRepository constructs a ChildRepository.
func NewChildRepository(db *sqlx.DB) *ChildRepository {
	return &ChildRepository{db: db}
}

const childColumns = `id, registration_id, full_name, date_of_birth, gender, group_id, parent_id, status, notes, submitted_by, submitted_at, reviewed_by, reviewed_at, created_at, updated_at`

// List returns children matching the provided filters.
func (r *ChildRepository) List(ctx context.Context, filter models.ChildFilter) ([]models.Child, int, error) {
	baseQuery := `FROM children WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ParentID != "" {
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", len(args)+1))
		args = append(args, filter.ParentID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(registration_id) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"full_name":       true,
		"registration_id": true,
		"submitted_at":    true,
		"created_at":      true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", childColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var children []models.Child
	if err := r.db.SelectContext(ctx, &children, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list children: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count children: %w", err)
	}
	return children, total, nil
}

// FindByID fetches a child by identifier.
func (r *ChildRepository) FindByID(ctx context.Context, id string) (*models.Child, error) {
	query := fmt.Sprintf("SELECT %s FROM children WHERE id = $1 LIMIT 1", childColumns)
	var child models.Child
	if err := r.db.GetContext(ctx, &child, query, id); err != nil {
		return nil, err
	}
	return &child, nil
}

// FindByRegistrationID fetches a child by its canonical registration identifier.
func (r *ChildRepository) FindByRegistrationID(ctx context.Context, registrationID string) (*models.Child, error) {
	query := fmt.Sprintf("SELECT %s FROM children WHERE registration_id = $1 LIMIT 1", childColumns)
	var child models.Child
	if err := r.db.GetContext(ctx, &child, query, registrationID); err != nil {
		return nil, err
	}
	return &child, nil
}

// CountByParent returns how many children are registered under a parent,
// used to derive the next registration ordinal.
func (r *ChildRepository) CountByParent(ctx context.Context, parentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM children WHERE parent_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, parentID); err != nil {
		return 0, fmt.Errorf("count children by parent: %w", err)
	}
	return count, nil
}

// Create inserts a new child record.
func (r *ChildRepository) Create(ctx context.Context, child *models.Child) error {
	if child.ID == "" {
		child.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if child.CreatedAt.IsZero() {
		child.CreatedAt = now
	}
	child.UpdatedAt = now
	const query = `INSERT INTO children (id, registration_id, full_name, date_of_birth, gender, group_id, parent_id, status, notes, submitted_by, submitted_at, reviewed_by, reviewed_at, created_at, updated_at)
        VALUES (:id, :registration_id, :full_name, :date_of_birth, :gender, :group_id, :parent_id, :status, :notes, :submitted_by, :submitted_at, :reviewed_by, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, child); err != nil {
		return fmt.Errorf("create child: %w", err)
	}
	return nil
}

// Update modifies an existing child.
func (r *ChildRepository) Update(ctx context.Context, child *models.Child) error {
	child.UpdatedAt = time.Now().UTC()
	const query = `UPDATE children SET full_name = :full_name, gender = :gender, group_id = :group_id, status = :status, notes = :notes, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, child); err != nil {
		return fmt.Errorf("update child: %w", err)
	}
	return nil
}

// Delete removes a child record. Workflows never call this; only the
// explicit admin delete endpoint does.
func (r *ChildRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM children WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete child: %w", err)
	}
	return nil
}

// ListBirthdays returns active children whose birthday falls on the given
// month and day.
func (r *ChildRepository) ListBirthdays(ctx context.Context, month, day int) ([]models.Child, error) {
	query := fmt.Sprintf(`SELECT %s FROM children WHERE status = $1
        AND EXTRACT(MONTH FROM date_of_birth) = $2 AND EXTRACT(DAY FROM date_of_birth) = $3`, childColumns)
	var children []models.Child
	if err := r.db.SelectContext(ctx, &children, query, models.ChildActive, month, day); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("list birthdays: %w", err)
	}
	return children, nil
}
