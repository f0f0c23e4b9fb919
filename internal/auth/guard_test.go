package auth

import (
	"context"
	"testing"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/repository/memstore"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

type guardFixture struct {
	guard    *Guard
	store    *memstore.Store
	tenantID string
	userIDs  map[string]string
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()

	tenant := &domain.Tenant{Name: "Acme Roofing", Slug: "acme"}
	if err := store.Tenants().Create(ctx, tenant); err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	f := &guardFixture{
		guard:    NewGuard(store.Tenants(), store.Users(), store.Memberships()),
		store:    store,
		tenantID: tenant.ID,
		userIDs:  map[string]string{},
	}

	seed := []struct {
		key     string
		role    domain.Role
		enabled bool
		archive bool
	}{
		{key: "owner", role: domain.RoleOwner, enabled: true},
		{key: "sales", role: domain.RoleSales, enabled: true},
		{key: "tech", role: domain.RoleFieldTech, enabled: true},
		{key: "disabled", role: domain.RoleAdmin, enabled: false},
		{key: "archived", role: domain.RoleAdmin, enabled: true, archive: true},
	}
	for _, s := range seed {
		user := &domain.User{Email: s.key + "@example.com", Enabled: s.enabled}
		if err := store.Users().Create(ctx, user); err != nil {
			t.Fatalf("create user: %v", err)
		}
		if err := store.Memberships().Create(ctx, &domain.Membership{TenantID: tenant.ID, UserID: user.ID, Role: s.role}); err != nil {
			t.Fatalf("create membership: %v", err)
		}
		if s.archive {
			if err := store.Memberships().Archive(ctx, tenant.ID, user.ID); err != nil {
				t.Fatalf("archive membership: %v", err)
			}
		}
		f.userIDs[s.key] = user.ID
	}

	outsider := &domain.User{Email: "outsider@example.com", Enabled: true}
	if err := store.Users().Create(ctx, outsider); err != nil {
		t.Fatalf("create user: %v", err)
	}
	f.userIDs["outsider"] = outsider.ID
	return f
}

func TestGuardResolveMembership(t *testing.T) {
	f := newGuardFixture(t)

	tests := []struct {
		name     string
		tenantID string
		userKey  string
		userID   string
		wantCode string
		wantRole domain.Role
	}{
		{name: "active owner", userKey: "owner", wantRole: domain.RoleOwner},
		{name: "unknown tenant", tenantID: "00000000-0000-0000-0000-000000000000", userKey: "owner", wantCode: apperrors.CodeNotFound},
		{name: "unknown user", userID: "00000000-0000-0000-0000-000000000000", wantCode: apperrors.CodeNotFound},
		{name: "disabled user", userKey: "disabled", wantCode: apperrors.CodeAccessDenied},
		{name: "archived membership", userKey: "archived", wantCode: apperrors.CodeAccessDenied},
		{name: "no membership", userKey: "outsider", wantCode: apperrors.CodeAccessDenied},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tenantID := f.tenantID
			if tc.tenantID != "" {
				tenantID = tc.tenantID
			}
			userID := tc.userID
			if tc.userKey != "" {
				userID = f.userIDs[tc.userKey]
			}

			m, err := f.guard.ResolveMembership(context.Background(), tenantID, userID)
			if tc.wantCode != "" {
				if !apperrors.IsCode(err, tc.wantCode) {
					t.Fatalf("expected %s, got %v", tc.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.Role != tc.wantRole {
				t.Fatalf("role = %s, want %s", m.Role, tc.wantRole)
			}
		})
	}
}

func TestGuardRequireRole(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	if _, err := f.guard.RequireRole(ctx, f.tenantID, f.userIDs["sales"], SalesRoles...); err != nil {
		t.Fatalf("sales should pass SalesRoles: %v", err)
	}
	if _, err := f.guard.RequireRole(ctx, f.tenantID, f.userIDs["tech"], SalesRoles...); !apperrors.IsCode(err, apperrors.CodeAccessDenied) {
		t.Fatalf("field tech should be denied SalesRoles, got %v", err)
	}
	if _, err := f.guard.RequireRole(ctx, f.tenantID, f.userIDs["sales"], ManagerRoles...); !apperrors.IsCode(err, apperrors.CodeAccessDenied) {
		t.Fatalf("sales should be denied ManagerRoles, got %v", err)
	}
	if _, err := f.guard.RequireRole(ctx, f.tenantID, f.userIDs["owner"], OwnerOnly...); err != nil {
		t.Fatalf("owner should pass OwnerOnly: %v", err)
	}
}
