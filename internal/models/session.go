package models

import "time"

// SessionStatus is the closed lifecycle enum for ministry sessions.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionActive    SessionStatus = "active"
	SessionEnded     SessionStatus = "ended"
	SessionCancelled SessionStatus = "cancelled"
)

// Valid reports whether the status is a known value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionActive, SessionEnded, SessionCancelled:
		return true
	}
	return false
}

// Terminal reports whether the session can no longer accept check-ins.
func (s SessionStatus) Terminal() bool {
	return s == SessionEnded || s == SessionCancelled
}

// Session represents a scheduled ministry meeting.
type Session struct {
	ID          string        `db:"id" json:"id"`
	Title       string        `db:"title" json:"title"`
	Description string        `db:"description" json:"description,omitempty"`
	SessionDate time.Time     `db:"session_date" json:"session_date"`
	StartTime   string        `db:"start_time" json:"start_time"`
	EndTime     string        `db:"end_time" json:"end_time"`
	GroupID     *string       `db:"group_id" json:"group_id,omitempty"`
	TeacherID   *string       `db:"teacher_id" json:"teacher_id,omitempty"`
	SessionType string        `db:"session_type" json:"session_type"`
	Location    string        `db:"location" json:"location,omitempty"`
	Status      SessionStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// OpenForCheckIn reports whether the session accepts check-ins at the
// given instant. Only same-day, non-terminal sessions qualify.
func (s *Session) OpenForCheckIn(now time.Time) bool {
	if s.Status.Terminal() {
		return false
	}
	y1, m1, d1 := s.SessionDate.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// SessionFilter captures filtering criteria for listing sessions.
type SessionFilter struct {
	Date      *time.Time
	Month     string
	GroupID   string
	TeacherID string
	Status    *SessionStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateSessionRequest is the payload for scheduling a session.
type CreateSessionRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description,omitempty"`
	SessionDate string  `json:"session_date" validate:"required,datetime=2006-01-02"`
	StartTime   string  `json:"start_time" validate:"required,datetime=15:04"`
	EndTime     string  `json:"end_time" validate:"required,datetime=15:04"`
	GroupID     *string `json:"group_id,omitempty" validate:"omitempty,uuid"`
	TeacherID   *string `json:"teacher_id,omitempty" validate:"omitempty,uuid"`
	SessionType string  `json:"session_type" validate:"required"`
	Location    string  `json:"location,omitempty"`
}

// UpdateSessionRequest carries partial session updates.
type UpdateSessionRequest struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	StartTime   *string        `json:"start_time,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime     *string        `json:"end_time,omitempty" validate:"omitempty,datetime=15:04"`
	Location    *string        `json:"location,omitempty"`
	Status      *SessionStatus `json:"status,omitempty" validate:"omitempty,oneof=scheduled active ended cancelled"`
}
