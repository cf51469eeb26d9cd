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

// CheckInRepository manages persistence for check-in records.
type CheckInRepository struct {
	db *sqlx.DB
}

// NewCheckInRepository constructs a CheckInRepository.
func NewCheckInRepository(db *sqlx.DB) *CheckInRepository {
	return &CheckInRepository{db: db}
}

const checkInColumns = `id, child_id, guardian_id, teacher_id, session_id, booking_id, method, timestamp_in, timestamp_out, released_by, released_to, created_at`

// FindOpenByChild returns the child's open check-in for the given day,
// if any. At most one open record may exist per child per day.
func (r *CheckInRepository) FindOpenByChild(ctx context.Context, childID string, day time.Time) (*models.CheckInRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM checkin_records
        WHERE child_id = $1 AND timestamp_out IS NULL AND DATE(timestamp_in) = $2
        ORDER BY timestamp_in DESC LIMIT 1`, checkInColumns)
	var record models.CheckInRecord
	if err := r.db.GetContext(ctx, &record, query, childID, day.UTC().Format("2006-01-02")); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByID fetches a check-in record by identifier.
func (r *CheckInRepository) FindByID(ctx context.Context, id string) (*models.CheckInRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM checkin_records WHERE id = $1 LIMIT 1", checkInColumns)
	var record models.CheckInRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListOpen returns all open check-ins, optionally scoped to a session.
func (r *CheckInRepository) ListOpen(ctx context.Context, sessionID string) ([]models.CheckInRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM checkin_records WHERE timestamp_out IS NULL", checkInColumns)
	var args []interface{}
	if sessionID != "" {
		query += " AND session_id = $1"
		args = append(args, sessionID)
	}
	query += " ORDER BY timestamp_in ASC"

	var records []models.CheckInRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("list open check-ins: %w", err)
	}
	return records, nil
}

// List returns check-in records matching the provided filters.
func (r *CheckInRepository) List(ctx context.Context, filter models.CheckInFilter) ([]models.CheckInRecord, int, error) {
	baseQuery := `FROM checkin_records WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ChildID != "" {
		conditions = append(conditions, fmt.Sprintf("child_id = $%d", len(args)+1))
		args = append(args, filter.ChildID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.Date != nil {
		conditions = append(conditions, fmt.Sprintf("DATE(timestamp_in) = $%d", len(args)+1))
		args = append(args, filter.Date.UTC().Format("2006-01-02"))
	}
	if filter.OpenOnly {
		conditions = append(conditions, "timestamp_out IS NULL")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY timestamp_in DESC LIMIT %d OFFSET %d", checkInColumns, baseQuery, pageSize, offset)

	var records []models.CheckInRecord
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list check-ins: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count check-ins: %w", err)
	}
	return records, total, nil
}

// Create inserts a new check-in record.
func (r *CheckInRepository) Create(ctx context.Context, record *models.CheckInRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO checkin_records (id, child_id, guardian_id, teacher_id, session_id, booking_id, method, timestamp_in, timestamp_out, released_by, released_to, created_at)
        VALUES (:id, :child_id, :guardian_id, :teacher_id, :session_id, :booking_id, :method, :timestamp_in, :timestamp_out, :released_by, :released_to, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create check-in: %w", err)
	}
	return nil
}

// Release closes an open check-in record. The timestamp_out guard makes
// a second release a no-op at the database level; callers check the
// affected row count.
func (r *CheckInRepository) Release(ctx context.Context, id string, out time.Time, releasedBy, releasedTo string) (bool, error) {
	const query = `UPDATE checkin_records SET timestamp_out = $2, released_by = $3, released_to = $4 WHERE id = $1 AND timestamp_out IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, out, releasedBy, releasedTo)
	if err != nil {
		return false, fmt.Errorf("release check-in: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release check-in rows: %w", err)
	}
	return affected == 1, nil
}
