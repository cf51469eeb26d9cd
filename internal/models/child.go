package models

import (
	"fmt"
	"time"
)

// ChildStatus tracks the registration approval workflow.
type ChildStatus string

const (
	ChildPending  ChildStatus = "pending"
	ChildActive   ChildStatus = "active"
	ChildRejected ChildStatus = "rejected"
)

// Valid reports whether the status is a known value.
func (s ChildStatus) Valid() bool {
	switch s {
	case ChildPending, ChildActive, ChildRejected:
		return true
	}
	return false
}

// Child represents a registered child or teen.
type Child struct {
	ID             string      `db:"id" json:"id"`
	RegistrationID string      `db:"registration_id" json:"registration_id"`
	FullName       string      `db:"full_name" json:"full_name"`
	DateOfBirth    time.Time   `db:"date_of_birth" json:"date_of_birth"`
	Gender         string      `db:"gender" json:"gender"`
	GroupID        *string     `db:"group_id" json:"group_id,omitempty"`
	ParentID       string      `db:"parent_id" json:"parent_id"`
	Status         ChildStatus `db:"status" json:"status"`
	Notes          string      `db:"notes" json:"notes,omitempty"`
	SubmittedBy    string      `db:"submitted_by" json:"submitted_by"`
	SubmittedAt    time.Time   `db:"submitted_at" json:"submitted_at"`
	ReviewedBy     *string     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time  `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// FormatRegistrationID renders the canonical registration identifier,
// e.g. parent code "RS073" with ordinal 1 becomes "RS073/01".
func FormatRegistrationID(parentCode string, ordinal int) string {
	return fmt.Sprintf("%s/%02d", parentCode, ordinal)
}

// ChildFilter captures filtering criteria for listing children.
type ChildFilter struct {
	ParentID  string
	GroupID   string
	Status    *ChildStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateChildRequest is the parent-submitted registration payload.
type CreateChildRequest struct {
	FullName    string  `json:"full_name" validate:"required"`
	DateOfBirth string  `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Gender      string  `json:"gender" validate:"required,oneof=male female"`
	GroupID     *string `json:"group_id,omitempty" validate:"omitempty,uuid"`
	Notes       string  `json:"notes,omitempty"`
}

// UpdateChildRequest carries partial updates to a child record.
type UpdateChildRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Gender   *string `json:"gender,omitempty" validate:"omitempty,oneof=male female"`
	GroupID  *string `json:"group_id,omitempty" validate:"omitempty,uuid"`
	Notes    *string `json:"notes,omitempty"`
}

// ReviewChildRequest approves or rejects a pending registration.
type ReviewChildRequest struct {
	Reason string `json:"reason,omitempty"`
}
