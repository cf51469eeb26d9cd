package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/covenantkids/checkin-api/internal/models"
)

// ReportRepository aggregates attendance data for reporting.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs a ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// AttendanceSummary aggregates per-group per-date attendance over the
// requested window.
func (r *ReportRepository) AttendanceSummary(ctx context.Context, filter models.ReportFilter) ([]models.AttendanceSummary, error) {
	base := `SELECT DATE(ci.timestamp_in) AS date, g.id AS group_id, COALESCE(g.name, 'Unassigned') AS group_name,
        COUNT(DISTINCT sb.id) AS total_booked,
        COUNT(ci.id) AS checked_in,
        COUNT(ci.timestamp_out) AS checked_out,
        COUNT(ci.id) - COUNT(ci.timestamp_out) AS still_present
        FROM checkin_records ci
        LEFT JOIN children c ON c.id = ci.child_id
        LEFT JOIN groups g ON g.id = c.group_id
        LEFT JOIN session_bookings sb ON sb.session_id = ci.session_id AND sb.child_id = ci.child_id`

	conditions := []string{"1=1"}
	var args []interface{}

	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("DATE(ci.timestamp_in) >= $%d", len(args)+1))
		args = append(args, filter.From.UTC().Format("2006-01-02"))
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("DATE(ci.timestamp_in) <= $%d", len(args)+1))
		args = append(args, filter.To.UTC().Format("2006-01-02"))
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("g.id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}

	query := fmt.Sprintf(`%s WHERE %s GROUP BY DATE(ci.timestamp_in), g.id, g.name ORDER BY date DESC, group_name ASC`,
		base, strings.Join(conditions, " AND "))

	var summaries []models.AttendanceSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	return summaries, nil
}

// ChildHistory returns a child's attendance entries newest first.
func (r *ReportRepository) ChildHistory(ctx context.Context, childID string, limit int) ([]models.ChildAttendanceEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT ci.session_id, s.title AS session_title, s.session_date, ci.timestamp_in, ci.timestamp_out, ci.method
        FROM checkin_records ci
        JOIN sessions s ON s.id = ci.session_id
        WHERE ci.child_id = $1
        ORDER BY ci.timestamp_in DESC LIMIT %d`, limit)

	var entries []models.ChildAttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, query, childID); err != nil {
		return nil, fmt.Errorf("child attendance history: %w", err)
	}
	return entries, nil
}
