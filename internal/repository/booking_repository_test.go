package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenantkids/checkin-api/internal/models"
)

func newBookingMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBookingRepositoryFindForCheckIn(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "session_id", "child_id", "guardian_id", "qr_code", "otp_code", "status", "booked_at", "checked_in_at", "checked_out_at"}).
		AddRow("b-1", "session-1", "child-1", "guardian-1", "qrtoken", "482913", "booked", now, nil, nil)

	mock.ExpectQuery("SELECT (.+) FROM session_bookings").
		WithArgs("session-1", "child-1", "482913", models.BookingBooked).
		WillReturnRows(rows)

	booking, err := repo.FindForCheckIn(context.Background(), "session-1", "child-1", "482913")
	require.NoError(t, err)
	assert.Equal(t, models.BookingBooked, booking.Status)
	assert.Equal(t, "482913", booking.OTPCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryMarkCheckedIn(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE session_bookings SET status").
		WithArgs("b-1", models.BookingCheckedIn, at, models.BookingBooked).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkCheckedIn(context.Background(), "b-1", at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
