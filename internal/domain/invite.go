package domain

import "time"

// TenantInvite offers an email address a membership with a given role.
type TenantInvite struct {
	ID         string     `db:"id"`
	TenantID   string     `db:"tenant_id"`
	Email      string     `db:"email"`
	Role       Role       `db:"role"`
	Token      string     `db:"token"`
	InvitedBy  *string    `db:"invited_by"`
	ExpiresAt  time.Time  `db:"expires_at"`
	AcceptedAt *time.Time `db:"accepted_at"`
	AcceptedBy *string    `db:"accepted_by"`
	RevokedAt  *time.Time `db:"revoked_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

// Pending reports whether the invite can still be accepted at now.
func (i *TenantInvite) Pending(now time.Time) bool {
	return i.AcceptedAt == nil && i.RevokedAt == nil && now.Before(i.ExpiresAt)
}
