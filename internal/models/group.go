package models

import "time"

// Group represents a ministry class grouping children by age band.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Room      string    `db:"room" json:"room"`
	AgeMin    int       `db:"age_min" json:"age_min"`
	AgeMax    int       `db:"age_max" json:"age_max"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CreateGroupRequest is the admin payload for creating a group.
type CreateGroupRequest struct {
	Name   string `json:"name" validate:"required"`
	Room   string `json:"room" validate:"required"`
	AgeMin int    `json:"age_min" validate:"min=0"`
	AgeMax int    `json:"age_max" validate:"required,gtefield=AgeMin"`
}
