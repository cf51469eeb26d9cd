package models

import "time"

// AttendanceSummary aggregates attendance per group per date.
type AttendanceSummary struct {
	Date         time.Time `db:"date" json:"date"`
	GroupID      *string   `db:"group_id" json:"group_id,omitempty"`
	GroupName    string    `db:"group_name" json:"group_name"`
	TotalBooked  int       `db:"total_booked" json:"total_booked"`
	CheckedIn    int       `db:"checked_in" json:"checked_in"`
	CheckedOut   int       `db:"checked_out" json:"checked_out"`
	StillPresent int       `db:"still_present" json:"still_present"`
}

// ChildAttendanceEntry is one row of a child's attendance history.
type ChildAttendanceEntry struct {
	SessionID    string     `db:"session_id" json:"session_id"`
	SessionTitle string     `db:"session_title" json:"session_title"`
	SessionDate  time.Time  `db:"session_date" json:"session_date"`
	TimestampIn  time.Time  `db:"timestamp_in" json:"timestamp_in"`
	TimestampOut *time.Time `db:"timestamp_out" json:"timestamp_out,omitempty"`
	Method       string     `db:"method" json:"method"`
	Duration     string     `db:"-" json:"duration"`
}

// ReportFilter captures report query parameters.
type ReportFilter struct {
	From    *time.Time
	To      *time.Time
	GroupID string
	Format  string
}
