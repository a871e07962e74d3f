package domain

import "time"

// Company is a client organisation that files tickets.
type Company struct {
	ID           string
	Name         string
	ContactEmail string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
