package models

import "time"

// BookingStatus is the closed lifecycle enum for session bookings.
type BookingStatus string

const (
	BookingBooked     BookingStatus = "booked"
	BookingCheckedIn  BookingStatus = "checked_in"
	BookingCheckedOut BookingStatus = "checked_out"
	BookingCancelled  BookingStatus = "cancelled"
)

// Valid reports whether the status is a known value.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingBooked, BookingCheckedIn, BookingCheckedOut, BookingCancelled:
		return true
	}
	return false
}

// SessionBooking pre-registers a child into a session. Each booking carries
// its own QR token and OTP pair for check-in at the door.
type SessionBooking struct {
	ID           string        `db:"id" json:"id"`
	SessionID    string        `db:"session_id" json:"session_id"`
	ChildID      string        `db:"child_id" json:"child_id"`
	GuardianID   string        `db:"guardian_id" json:"guardian_id"`
	QRCode       string        `db:"qr_code" json:"qr_code"`
	OTPCode      string        `db:"otp_code" json:"otp_code"`
	Status       BookingStatus `db:"status" json:"status"`
	BookedAt     time.Time     `db:"booked_at" json:"booked_at"`
	CheckedInAt  *time.Time    `db:"checked_in_at" json:"checked_in_at,omitempty"`
	CheckedOutAt *time.Time    `db:"checked_out_at" json:"checked_out_at,omitempty"`
}

// BookingFilter captures filtering criteria for listing bookings.
type BookingFilter struct {
	SessionID string
	ChildID   string
	Status    *BookingStatus
	Page      int
	PageSize  int
}

// BookSessionRequest books one or more children into a session.
type BookSessionRequest struct {
	ChildIDs []string `json:"child_ids" validate:"required,min=1,dive,uuid"`
}
