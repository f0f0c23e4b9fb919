package domain

import (
	"sort"
	"time"
)

// Role enumerates tenant membership roles.
type Role string

const (
	RoleOwner     Role = "OWNER"
	RoleAdmin     Role = "ADMIN"
	RoleSales     Role = "SALES"
	RoleFieldTech Role = "FIELD_TECH"
)

// RoleRank orders roles by seniority. Higher is more senior.
var RoleRank = map[Role]int{
	RoleOwner:     4,
	RoleAdmin:     3,
	RoleSales:     2,
	RoleFieldTech: 1,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := RoleRank[r]
	return ok
}

// Outranks reports whether r is strictly more senior than other.
func (r Role) Outranks(other Role) bool {
	return RoleRank[r] > RoleRank[other]
}

// Membership binds a user to a tenant with a role.
type Membership struct {
	ID         string     `db:"id"`
	TenantID   string     `db:"tenant_id"`
	UserID     string     `db:"user_id"`
	Role       Role       `db:"role"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
	ArchivedAt *time.Time `db:"archived_at"`
}

// IsActive returns true if the membership has not been archived.
func (m *Membership) IsActive() bool {
	return m.ArchivedAt == nil
}

// Member is a membership joined with the member's user profile.
type Member struct {
	Membership
	Email string `db:"email"`
	Name  string `db:"name"`
}

// SortMembersByRank orders members by role seniority, then email.
func SortMembersByRank(members []Member) {
	sort.SliceStable(members, func(i, j int) bool {
		ri, rj := RoleRank[members[i].Role], RoleRank[members[j].Role]
		if ri != rj {
			return ri > rj
		}
		return members[i].Email < members[j].Email
	})
}
