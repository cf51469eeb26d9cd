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

// BookingRepository manages persistence for session bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, session_id, child_id, guardian_id, qr_code, otp_code, status, booked_at, checked_in_at, checked_out_at`

// List returns bookings matching the provided filters.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.SessionBooking, int, error) {
	baseQuery := `FROM session_bookings WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.ChildID != "" {
		conditions = append(conditions, fmt.Sprintf("child_id = $%d", len(args)+1))
		args = append(args, filter.ChildID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY booked_at DESC LIMIT %d OFFSET %d", bookingColumns, baseQuery, pageSize, offset)

	var bookings []models.SessionBooking
	if err := r.db.SelectContext(ctx, &bookings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// FindByID fetches a booking by identifier.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.SessionBooking, error) {
	query := fmt.Sprintf("SELECT %s FROM session_bookings WHERE id = $1 LIMIT 1", bookingColumns)
	var booking models.SessionBooking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindByQRCode fetches a booking by its QR token.
func (r *BookingRepository) FindByQRCode(ctx context.Context, qrCode string) (*models.SessionBooking, error) {
	query := fmt.Sprintf("SELECT %s FROM session_bookings WHERE qr_code = $1 LIMIT 1", bookingColumns)
	var booking models.SessionBooking
	if err := r.db.GetContext(ctx, &booking, query, qrCode); err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindForCheckIn fetches a booked entry for a child in a session verified
// against its OTP.
func (r *BookingRepository) FindForCheckIn(ctx context.Context, sessionID, childID, otp string) (*models.SessionBooking, error) {
	query := fmt.Sprintf("SELECT %s FROM session_bookings WHERE session_id = $1 AND child_id = $2 AND otp_code = $3 AND status = $4 LIMIT 1", bookingColumns)
	var booking models.SessionBooking
	if err := r.db.GetContext(ctx, &booking, query, sessionID, childID, otp, models.BookingBooked); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ExistsActive reports whether the child already has a live booking for
// the session.
func (r *BookingRepository) ExistsActive(ctx context.Context, sessionID, childID string) (bool, error) {
	const query = `SELECT 1 FROM session_bookings WHERE session_id = $1 AND child_id = $2 AND status IN ($3, $4) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, sessionID, childID, models.BookingBooked, models.BookingCheckedIn); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active booking: %w", err)
	}
	return true, nil
}

// Create inserts a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *models.SessionBooking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.BookedAt.IsZero() {
		booking.BookedAt = time.Now().UTC()
	}
	const query = `INSERT INTO session_bookings (id, session_id, child_id, guardian_id, qr_code, otp_code, status, booked_at)
        VALUES (:id, :session_id, :child_id, :guardian_id, :qr_code, :otp_code, :status, :booked_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// MarkCheckedIn transitions a booking to checked_in.
func (r *BookingRepository) MarkCheckedIn(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE session_bookings SET status = $2, checked_in_at = $3 WHERE id = $1 AND status = $4`
	if _, err := r.db.ExecContext(ctx, query, id, models.BookingCheckedIn, at, models.BookingBooked); err != nil {
		return fmt.Errorf("mark booking checked in: %w", err)
	}
	return nil
}

// MarkCheckedOut transitions a booking to checked_out.
func (r *BookingRepository) MarkCheckedOut(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE session_bookings SET status = $2, checked_out_at = $3 WHERE id = $1 AND status = $4`
	if _, err := r.db.ExecContext(ctx, query, id, models.BookingCheckedOut, at, models.BookingCheckedIn); err != nil {
		return fmt.Errorf("mark booking checked out: %w", err)
	}
	return nil
}

// Cancel transitions a booking to cancelled.
func (r *BookingRepository) Cancel(ctx context.Context, id string) error {
	const query = `UPDATE session_bookings SET status = $2 WHERE id = $1 AND status = $3`
	if _, err := r.db.ExecContext(ctx, query, id, models.BookingCancelled, models.BookingBooked); err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	return nil
}
