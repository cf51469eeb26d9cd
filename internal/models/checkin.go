package models

import (
	"fmt"
	"time"
)

// CheckInMethod identifies how a child was checked in.
type CheckInMethod string

const (
	MethodQR     CheckInMethod = "QR"
	MethodOTP    CheckInMethod = "OTP"
	MethodManual CheckInMethod = "MANUAL"
)

// Valid reports whether the method is a known value.
func (m CheckInMethod) Valid() bool {
	switch m {
	case MethodQR, MethodOTP, MethodManual:
		return true
	}
	return false
}

// CheckInRecord tracks one attendance cycle. TimestampOut is nil while the
// child is still on the premises.
type CheckInRecord struct {
	ID           string        `db:"id" json:"id"`
	ChildID      string        `db:"child_id" json:"child_id"`
	GuardianID   string        `db:"guardian_id" json:"guardian_id"`
	TeacherID    *string       `db:"teacher_id" json:"teacher_id,omitempty"`
	SessionID    string        `db:"session_id" json:"session_id"`
	BookingID    *string       `db:"booking_id" json:"booking_id,omitempty"`
	Method       CheckInMethod `db:"method" json:"method"`
	TimestampIn  time.Time     `db:"timestamp_in" json:"timestamp_in"`
	TimestampOut *time.Time    `db:"timestamp_out" json:"timestamp_out,omitempty"`
	ReleasedBy   *string       `db:"released_by" json:"released_by,omitempty"`
	ReleasedTo   *string       `db:"released_to" json:"released_to,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// Open reports whether the record has not been released yet.
func (r *CheckInRecord) Open() bool {
	return r.TimestampOut == nil
}

// Duration renders the attended time as "1h 15m", floored to whole
// minutes. Records that are still open, or whose clocks disagree, render
// as "N/A" rather than a negative span.
func (r *CheckInRecord) Duration() string {
	if r.TimestampOut == nil {
		return "N/A"
	}
	d := r.TimestampOut.Sub(r.TimestampIn)
	if d < 0 {
		return "N/A"
	}
	minutes := int(d.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// CheckInFilter captures filtering criteria for listing check-in records.
type CheckInFilter struct {
	ChildID   string
	SessionID string
	GroupID   string
	Date      *time.Time
	OpenOnly  bool
	Page      int
	PageSize  int
}

// ScanQRRequest checks a child in from a scanned QR token.
type ScanQRRequest struct {
	Token     string `json:"token" validate:"required"`
	SessionID string `json:"session_id" validate:"required,uuid"`
}

// VerifyOTPCheckInRequest checks a child in from a spoken or typed OTP.
type VerifyOTPCheckInRequest struct {
	ChildID   string `json:"child_id" validate:"required,uuid"`
	OTP       string `json:"otp" validate:"required"`
	SessionID string `json:"session_id" validate:"required,uuid"`
}

// ManualCheckInRequest checks a child in without a credential. Staff only.
type ManualCheckInRequest struct {
	ChildID    string `json:"child_id" validate:"required,uuid"`
	GuardianID string `json:"guardian_id" validate:"required,uuid"`
	SessionID  string `json:"session_id" validate:"required,uuid"`
}

// GenerateCheckInQRRequest issues a short-lived pre-check-in credential
// to the requesting parent.
type GenerateCheckInQRRequest struct {
	ChildID   string `json:"child_id" validate:"required,uuid"`
	SessionID string `json:"session_id" validate:"required,uuid"`
}

// CheckInStatus summarises a child's current attendance state.
type CheckInStatus struct {
	ChildID   string         `json:"child_id"`
	CheckedIn bool           `json:"checked_in"`
	Record    *CheckInRecord `json:"record,omitempty"`
}
