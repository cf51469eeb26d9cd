package models

import "time"

// Guardian represents an adult authorized to drop off or pick up children.
// Primary guardians never expire; secondary guardians carry a bounded
// authorization window.
type Guardian struct {
	ID           string     `db:"id" json:"id"`
	ParentCode   string     `db:"parent_code" json:"parent_code"`
	FullName     string     `db:"full_name" json:"full_name"`
	Email        string     `db:"email" json:"email"`
	Phone        string     `db:"phone" json:"phone"`
	Relationship string     `db:"relationship" json:"relationship"`
	IsPrimary    bool       `db:"is_primary" json:"is_primary"`
	ActiveUntil  *time.Time `db:"active_until" json:"active_until,omitempty"`
	UserID       *string    `db:"user_id" json:"user_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Expired reports whether the guardian's authorization window has lapsed.
// A nil ActiveUntil means the guardian never expires.
func (g *Guardian) Expired(now time.Time) bool {
	if g.IsPrimary || g.ActiveUntil == nil {
		return false
	}
	return now.After(*g.ActiveUntil)
}

// ChildGuardian links a guardian to a child with per-link authorization.
type ChildGuardian struct {
	ChildID      string     `db:"child_id" json:"child_id"`
	GuardianID   string     `db:"guardian_id" json:"guardian_id"`
	Relationship string     `db:"relationship" json:"relationship"`
	IsAuthorized bool       `db:"is_authorized" json:"is_authorized"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// GuardianPartition splits a child's guardians by authorization state.
type GuardianPartition struct {
	Active  []Guardian `json:"active"`
	Expired []Guardian `json:"expired"`
}

// GuardianFilter captures filtering criteria for listing guardians.
type GuardianFilter struct {
	ChildID   string
	IsPrimary *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateGuardianRequest registers a secondary guardian for a child.
type CreateGuardianRequest struct {
	ChildID      string `json:"child_id" validate:"required,uuid"`
	FullName     string `json:"full_name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required"`
	Relationship string `json:"relationship" validate:"required"`
	// WindowDays overrides the configured authorization window when positive.
	WindowDays int `json:"window_days,omitempty" validate:"omitempty,min=1,max=365"`
}

// RenewGuardianRequest extends a secondary guardian's authorization.
type RenewGuardianRequest struct {
	WindowDays int `json:"window_days,omitempty" validate:"omitempty,min=1,max=365"`
}
