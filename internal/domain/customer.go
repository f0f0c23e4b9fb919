package domain

import "time"

// Customer is the tenant's client that jobs are performed for.
type Customer struct {
	ID         string
	TenantID   string
	Name       string
	Email      *string
	Phone      *string
	Address    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ArchivedAt *time.Time
}
