package domain

import "time"

// User is a login identity; it may belong to many tenants via memberships.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
