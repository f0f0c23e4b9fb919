package domain

import "time"

// Tenant is an isolated customer organization owning all business data.
type Tenant struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
