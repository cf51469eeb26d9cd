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

// GuardianRepository manages persistence for guardians and their child links.
type GuardianRepository struct {
	db *sqlx.DB
}

// NewGuardianRepository constructs a GuardianRepository.
func NewGuardianRepository(db *sqlx.DB) *GuardianRepository {
	return &GuardianRepository{db: db}
}

const guardianColumns = `id, parent_code, full_name, email, phone, relationship, is_primary, active_until, user_id, created_at, updated_at`

const guardianColumnsPrefixed = `g.id, g.parent_code, g.full_name, g.email, g.phone, g.relationship, g.is_primary, g.active_until, g.user_id, g.created_at, g.updated_at`

// List returns guardians matching the provided filters.
func (r *GuardianRepository) List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, int, error) {
	baseQuery := `FROM guardians g WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ChildID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM child_guardians cg WHERE cg.guardian_id = g.id AND cg.child_id = $%d)", len(args)+1))
		args = append(args, filter.ChildID)
	}
	if filter.IsPrimary != nil {
		conditions = append(conditions, fmt.Sprintf("g.is_primary = $%d", len(args)+1))
		args = append(args, *filter.IsPrimary)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(g.full_name) LIKE $%d OR LOWER(g.email) LIKE $%d OR g.phone LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":    "g.full_name",
		"parent_code":  "g.parent_code",
		"active_until": "g.active_until",
		"created_at":   "g.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "g.created_at"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", guardianColumnsPrefixed, baseQuery, column, sortOrder, pageSize, offset)

	var guardians []models.Guardian
	if err := r.db.SelectContext(ctx, &guardians, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list guardians: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count guardians: %w", err)
	}
	return guardians, total, nil
}

// FindByID fetches a guardian by identifier.
func (r *GuardianRepository) FindByID(ctx context.Context, id string) (*models.Guardian, error) {
	query := fmt.Sprintf("SELECT %s FROM guardians WHERE id = $1 LIMIT 1", guardianColumns)
	var guardian models.Guardian
	if err := r.db.GetContext(ctx, &guardian, query, id); err != nil {
		return nil, err
	}
	return &guardian, nil
}

// FindByParentCode fetches a guardian by parent code.
func (r *GuardianRepository) FindByParentCode(ctx context.Context, code string) (*models.Guardian, error) {
	query := fmt.Sprintf("SELECT %s FROM guardians WHERE parent_code = $1 LIMIT 1", guardianColumns)
	var guardian models.Guardian
	if err := r.db.GetContext(ctx, &guardian, query, code); err != nil {
		return nil, err
	}
	return &guardian, nil
}

// FindByUserID fetches the guardian profile linked to a user account.
func (r *GuardianRepository) FindByUserID(ctx context.Context, userID string) (*models.Guardian, error) {
	query := fmt.Sprintf("SELECT %s FROM guardians WHERE user_id = $1 LIMIT 1", guardianColumns)
	var guardian models.Guardian
	if err := r.db.GetContext(ctx, &guardian, query, userID); err != nil {
		return nil, err
	}
	return &guardian, nil
}

// ExistsByContact checks for a guardian with the same email or phone.
func (r *GuardianRepository) ExistsByContact(ctx context.Context, email, phone string) (bool, error) {
	const query = `SELECT 1 FROM guardians WHERE email = $1 OR phone = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, email, phone); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check guardian contact: %w", err)
	}
	return true, nil
}

// ListForChild returns guardians linked to a child with their link metadata.
func (r *GuardianRepository) ListForChild(ctx context.Context, childID string) ([]models.Guardian, error) {
	query := fmt.Sprintf(`SELECT %s FROM guardians g
        JOIN child_guardians cg ON cg.guardian_id = g.id
        WHERE cg.child_id = $1 AND cg.is_authorized = TRUE
        ORDER BY g.is_primary DESC, g.created_at ASC`, guardianColumnsPrefixed)
	var guardians []models.Guardian
	if err := r.db.SelectContext(ctx, &guardians, query, childID); err != nil {
		return nil, fmt.Errorf("list guardians for child: %w", err)
	}
	return guardians, nil
}

// Create inserts a guardian record.
func (r *GuardianRepository) Create(ctx context.Context, guardian *models.Guardian) error {
	if guardian.ID == "" {
		guardian.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if guardian.CreatedAt.IsZero() {
		guardian.CreatedAt = now
	}
	guardian.UpdatedAt = now
	const query = `INSERT INTO guardians (id, parent_code, full_name, email, phone, relationship, is_primary, active_until, user_id, created_at, updated_at)
        VALUES (:id, :parent_code, :full_name, :email, :phone, :relationship, :is_primary, :active_until, :user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, guardian); err != nil {
		return fmt.Errorf("create guardian: %w", err)
	}
	return nil
}

// Update modifies an existing guardian.
func (r *GuardianRepository) Update(ctx context.Context, guardian *models.Guardian) error {
	guardian.UpdatedAt = time.Now().UTC()
	const query = `UPDATE guardians SET full_name = :full_name, email = :email, phone = :phone, relationship = :relationship, active_until = :active_until, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, guardian); err != nil {
		return fmt.Errorf("update guardian: %w", err)
	}
	return nil
}

// LinkChild records a guardian-child authorization link.
func (r *GuardianRepository) LinkChild(ctx context.Context, link *models.ChildGuardian) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO child_guardians (child_id, guardian_id, relationship, is_authorized, expires_at, created_at)
        VALUES (:child_id, :guardian_id, :relationship, :is_authorized, :expires_at, :created_at)
        ON CONFLICT (child_id, guardian_id) DO UPDATE SET relationship = EXCLUDED.relationship, is_authorized = EXCLUDED.is_authorized, expires_at = EXCLUDED.expires_at`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("link guardian to child: %w", err)
	}
	return nil
}

// RevokeLink marks a guardian-child link unauthorized.
func (r *GuardianRepository) RevokeLink(ctx context.Context, childID, guardianID string) error {
	const query = `UPDATE child_guardians SET is_authorized = FALSE WHERE child_id = $1 AND guardian_id = $2`
	if _, err := r.db.ExecContext(ctx, query, childID, guardianID); err != nil {
		return fmt.Errorf("revoke guardian link: %w", err)
	}
	return nil
}

// FindLink fetches a guardian-child link.
func (r *GuardianRepository) FindLink(ctx context.Context, childID, guardianID string) (*models.ChildGuardian, error) {
	const query = `SELECT child_id, guardian_id, relationship, is_authorized, expires_at, created_at FROM child_guardians WHERE child_id = $1 AND guardian_id = $2 LIMIT 1`
	var link models.ChildGuardian
	if err := r.db.GetContext(ctx, &link, query, childID, guardianID); err != nil {
		return nil, err
	}
	return &link, nil
}
