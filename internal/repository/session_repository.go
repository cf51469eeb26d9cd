package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/covenantkids/checkin-api/internal/models"
)

// SessionRepository manages persistence for ministry sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, title, description, session_date, start_time, end_time, group_id, teacher_id, session_type, location, status, created_at, updated_at`

// List returns sessions matching the provided filters.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	baseQuery := `FROM sessions WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Date != nil {
		conditions = append(conditions, fmt.Sprintf("session_date = $%d", len(args)+1))
		args = append(args, filter.Date.UTC().Format("2006-01-02"))
	}
	if filter.Month != "" {
		conditions = append(conditions, fmt.Sprintf("TO_CHAR(session_date, 'YYYY-MM') = $%d", len(args)+1))
		args = append(args, filter.Month)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"session_date": true,
		"title":        true,
		"created_at":   true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "session_date"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, start_time ASC LIMIT %d OFFSET %d", sessionColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// FindByID fetches a session by identifier.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1 LIMIT 1", sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByDate returns non-cancelled sessions scheduled for a given day.
func (r *SessionRepository) ListByDate(ctx context.Context, date time.Time) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE session_date = $1 AND status <> $2 ORDER BY start_time ASC", sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, date.UTC().Format("2006-01-02"), models.SessionCancelled); err != nil {
		return nil, fmt.Errorf("list sessions by date: %w", err)
	}
	return sessions, nil
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	const query = `INSERT INTO sessions (id, title, description, session_date, start_time, end_time, group_id, teacher_id, session_type, location, status, created_at, updated_at)
        VALUES (:id, :title, :description, :session_date, :start_time, :end_time, :group_id, :teacher_id, :session_type, :location, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update modifies an existing session.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET title = :title, description = :description, start_time = :start_time, end_time = :end_time, location = :location, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// UpdateStatus transitions a session's lifecycle state.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	const query = `UPDATE sessions SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}
