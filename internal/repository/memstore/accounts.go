package memstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/fieldops/internal/domain"
)

// Tenants implements repository.TenantRepository.
type Tenants struct{ s *Store }

func (r *Tenants) Create(ctx context.Context, t *domain.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tenants {
		if existing.Slug == t.Slug {
			return uniqueViolation("tenants_slug_key")
		}
	}
	t.ID = newID()
	t.CreatedAt = r.s.now()
	t.UpdatedAt = t.CreatedAt
	journal(ctx, r.s, r.s.tenants, t.ID)
	r.s.tenants[t.ID] = *t
	return nil
}

func (r *Tenants) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

// Users implements repository.UserRepository.
type Users struct{ s *Store }

func (r *Users) Create(ctx context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return uniqueViolation("users_email_key")
		}
	}
	u.ID = newID()
	u.CreatedAt = r.s.now()
	u.UpdatedAt = u.CreatedAt
	journal(ctx, r.s, r.s.users, u.ID)
	r.s.users[u.ID] = *u
	return nil
}

func (r *Users) Update(ctx context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return pgx.ErrNoRows
	}
	u.UpdatedAt = r.s.now()
	journal(ctx, r.s, r.s.users, u.ID)
	r.s.users[u.ID] = *u
	return nil
}

func (r *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// Memberships implements repository.MembershipRepository.
type Memberships struct{ s *Store }

func (r *Memberships) Create(ctx context.Context, m *domain.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := membershipKey(m.TenantID, m.UserID)
	if _, ok := r.s.memberships[key]; ok {
		return uniqueViolation("memberships_tenant_id_user_id_key")
	}
	m.ID = newID()
	m.CreatedAt = r.s.now()
	m.UpdatedAt = m.CreatedAt
	journal(ctx, r.s, r.s.memberships, key)
	r.s.memberships[key] = *m
	return nil
}

func (r *Memberships) Get(_ context.Context, tenantID, userID string) (*domain.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.memberships[membershipKey(tenantID, userID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &m, nil
}

func (r *Memberships) UpdateRole(ctx context.Context, tenantID, userID string, role domain.Role) error {
	return r.mutate(ctx, tenantID, userID, true, func(m *domain.Membership) { m.Role = role })
}

func (r *Memberships) Archive(ctx context.Context, tenantID, userID string) error {
	return r.mutate(ctx, tenantID, userID, true, func(m *domain.Membership) {
		at := r.s.now()
		m.ArchivedAt = &at
	})
}

func (r *Memberships) Reactivate(ctx context.Context, tenantID, userID string, role domain.Role) error {
	return r.mutate(ctx, tenantID, userID, false, func(m *domain.Membership) {
		m.Role = role
		m.ArchivedAt = nil
	})
}

func (r *Memberships) mutate(ctx context.Context, tenantID, userID string, activeOnly bool, fn func(*domain.Membership)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := membershipKey(tenantID, userID)
	m, ok := r.s.memberships[key]
	if !ok || (activeOnly && !m.IsActive()) {
		return pgx.ErrNoRows
	}
	fn(&m)
	m.UpdatedAt = r.s.now()
	journal(ctx, r.s, r.s.memberships, key)
	r.s.memberships[key] = m
	return nil
}

func (r *Memberships) CountActiveOwners(_ context.Context, tenantID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, m := range r.s.memberships {
		if m.TenantID == tenantID && m.Role == domain.RoleOwner && m.IsActive() {
			count++
		}
	}
	return count, nil
}

func (r *Memberships) ActiveMemberWithEmail(_ context.Context, tenantID, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.memberships {
		if m.TenantID != tenantID || !m.IsActive() {
			continue
		}
		if u, ok := r.s.users[m.UserID]; ok && u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *Memberships) ListMembers(_ context.Context, tenantID string) ([]domain.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var members []domain.Member
	for _, m := range r.s.memberships {
		if m.TenantID != tenantID || !m.IsActive() {
			continue
		}
		u := r.s.users[m.UserID]
		members = append(members, domain.Member{Membership: m, Email: u.Email, Name: u.Name})
	}
	domain.SortMembersByRank(members)
	return members, nil
}

// Invites implements repository.InviteRepository.
type Invites struct{ s *Store }

func (r *Invites) Create(ctx context.Context, inv *domain.TenantInvite) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.invites {
		if existing.Token == inv.Token {
			return uniqueViolation("tenant_invites_token_key")
		}
		if existing.TenantID == inv.TenantID && existing.Email == inv.Email &&
			existing.AcceptedAt == nil && existing.RevokedAt == nil {
			return uniqueViolation("tenant_invites_pending_email_idx")
		}
	}
	inv.ID = newID()
	inv.CreatedAt = r.s.now()
	journal(ctx, r.s, r.s.invites, inv.ID)
	r.s.invites[inv.ID] = *inv
	return nil
}

func (r *Invites) GetByID(_ context.Context, tenantID, id string) (*domain.TenantInvite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invites[id]
	if !ok || inv.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &inv, nil
}

func (r *Invites) GetByToken(_ context.Context, token string) (*domain.TenantInvite, error) {
	return r.find(func(inv domain.TenantInvite) bool { return inv.Token == token })
}

func (r *Invites) FindOpen(_ context.Context, tenantID, email string) (*domain.TenantInvite, error) {
	return r.find(func(inv domain.TenantInvite) bool {
		return inv.TenantID == tenantID && inv.Email == email && inv.AcceptedAt == nil && inv.RevokedAt == nil
	})
}

func (r *Invites) find(match func(domain.TenantInvite) bool) (*domain.TenantInvite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invites {
		if match(inv) {
			return &inv, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *Invites) MarkAccepted(ctx context.Context, id, userID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invites[id]
	if !ok || inv.AcceptedAt != nil || inv.RevokedAt != nil {
		return pgx.ErrNoRows
	}
	inv.AcceptedAt = &at
	inv.AcceptedBy = &userID
	journal(ctx, r.s, r.s.invites, id)
	r.s.invites[id] = inv
	return nil
}

func (r *Invites) Revoke(ctx context.Context, tenantID, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invites[id]
	if !ok || inv.TenantID != tenantID || inv.AcceptedAt != nil || inv.RevokedAt != nil {
		return pgx.ErrNoRows
	}
	inv.RevokedAt = &at
	journal(ctx, r.s, r.s.invites, id)
	r.s.invites[id] = inv
	return nil
}

func (r *Invites) ListOpen(_ context.Context, tenantID string) ([]domain.TenantInvite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.TenantInvite
	for _, inv := range r.s.invites {
		if inv.TenantID == tenantID && inv.AcceptedAt == nil && inv.RevokedAt == nil {
			result = append(result, inv)
		}
	}
	sortByCreatedDesc(result, func(i domain.TenantInvite) time.Time { return i.CreatedAt })
	return result, nil
}
