package service

import (
	"testing"
	"time"

	"github.com/spec-kit/fieldops/internal/domain"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

func TestInviteLifecycle(t *testing.T) {
	f := newFixture(t)
	svc := f.team()

	invite, err := svc.CreateInvite(f.ctx, f.tenantID, f.ownerID, "  New.Hire@Example.com ", domain.RoleSales)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	if invite.Email != "new.hire@example.com" {
		t.Fatalf("email not normalized: %q", invite.Email)
	}
	if !invite.ExpiresAt.Equal(f.now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry %s", invite.ExpiresAt)
	}

	_, err = svc.CreateInvite(f.ctx, f.tenantID, f.ownerID, "new.hire@example.com", domain.RoleAdmin)
	assertCode(t, err, apperrors.CodeConflict)

	stranger := f.addUser("someone.else@example.com")
	_, err = svc.AcceptInvite(f.ctx, stranger, invite.Token)
	assertCode(t, err, apperrors.CodeAccessDenied)

	hire := f.addUser("new.hire@example.com")
	membership, err := svc.AcceptInvite(f.ctx, hire, invite.Token)
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if membership.Role != domain.RoleSales || membership.TenantID != f.tenantID {
		t.Fatalf("unexpected membership %+v", membership)
	}

	_, err = svc.AcceptInvite(f.ctx, hire, invite.Token)
	assertCode(t, err, apperrors.CodeInvalidInput)

	_, err = svc.CreateInvite(f.ctx, f.tenantID, f.ownerID, "new.hire@example.com", domain.RoleSales)
	assertCode(t, err, apperrors.CodeConflict)
}

func TestAcceptInviteErrors(t *testing.T) {
	f := newFixture(t)
	svc := f.team()
	hire := f.addUser("late@example.com")

	_, err := svc.AcceptInvite(f.ctx, hire, "no-such-token")
	assertCode(t, err, apperrors.CodeNotFound)

	invite, err := svc.CreateInvite(f.ctx, f.tenantID, f.ownerID, "late@example.com", domain.RoleFieldTech)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	f.advance(8 * 24 * time.Hour)
	_, err = svc.AcceptInvite(f.ctx, hire, invite.Token)
	assertCode(t, err, apperrors.CodeInvalidInput)

	// an expired invite no longer blocks a new one
	fresh, err := svc.CreateInvite(f.ctx, f.tenantID, f.ownerID, "late@example.com", domain.RoleFieldTech)
	if err != nil {
		t.Fatalf("re-invite: %v", err)
	}
	_, err = svc.AcceptInvite(f.ctx, hire, invite.Token)
	assertCode(t, err, apperrors.CodeNotFound)

	if err := svc.RevokeInvite(f.ctx, f.tenantID, f.ownerID, fresh.ID); err != nil {
		t.Fatalf("RevokeInvite: %v", err)
	}
	_, err = svc.AcceptInvite(f.ctx, hire, fresh.Token)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestAcceptInviteReactivatesArchivedMembership(t *testing.T) {
	f := newFixture(t)
	svc := f.team()
	returning := f.addMember(domain.RoleSales)
	user, _ := f.store.Users().GetByID(f.ctx, returning)

	if err := svc.RemoveMember(f.ctx, f.tenantID, f.ownerID, returning); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	invite, err := svc.CreateInvite(f.ctx, f.tenantID, f.ownerID, user.Email, domain.RoleAdmin)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	m, err := svc.AcceptInvite(f.ctx, returning, invite.Token)
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if !m.IsActive() || m.Role != domain.RoleAdmin {
		t.Fatalf("membership not reactivated: %+v", m)
	}
}

func TestCreateInvitePermissions(t *testing.T) {
	f := newFixture(t)
	svc := f.team()
	admin := f.addMember(domain.RoleAdmin)
	sales := f.addMember(domain.RoleSales)

	_, err := svc.CreateInvite(f.ctx, f.tenantID, sales, "x@example.com", domain.RoleSales)
	assertCode(t, err, apperrors.CodeAccessDenied)

	_, err = svc.CreateInvite(f.ctx, f.tenantID, admin, "y@example.com", domain.RoleOwner)
	assertCode(t, err, apperrors.CodeAccessDenied)

	_, err = svc.CreateInvite(f.ctx, f.tenantID, admin, "not-an-email", domain.RoleSales)
	assertCode(t, err, apperrors.CodeInvalidInput)

	_, err = svc.CreateInvite(f.ctx, f.tenantID, admin, "z@example.com", domain.Role("BOSS"))
	assertCode(t, err, apperrors.CodeInvalidInput)

	existing, _ := f.store.Users().GetByID(f.ctx, sales)
	_, err = svc.CreateInvite(f.ctx, f.tenantID, admin, existing.Email, domain.RoleSales)
	assertCode(t, err, apperrors.CodeConflict)
}

func TestLastOwnerProtection(t *testing.T) {
	f := newFixture(t)
	svc := f.team()
	other := f.addMember(domain.RoleOwner)

	if _, err := svc.UpdateMemberRole(f.ctx, f.tenantID, f.ownerID, other, domain.RoleAdmin); err != nil {
		t.Fatalf("demote second owner: %v", err)
	}

	// other is now ADMIN and cannot act; the sole owner cannot target itself.
	_, err := svc.UpdateMemberRole(f.ctx, f.tenantID, f.ownerID, f.ownerID, domain.RoleAdmin)
	assertCode(t, err, apperrors.CodeAccessDenied)
	err = svc.RemoveMember(f.ctx, f.tenantID, f.ownerID, f.ownerID)
	assertCode(t, err, apperrors.CodeAccessDenied)

	_, err = svc.UpdateMemberRole(f.ctx, f.tenantID, other, f.ownerID, domain.RoleAdmin)
	assertCode(t, err, apperrors.CodeAccessDenied)

	owners, _ := f.store.Memberships().CountActiveOwners(f.ctx, f.tenantID)
	if owners != 1 {
		t.Fatalf("expected one owner, got %d", owners)
	}
}

func TestOwnershipHandOver(t *testing.T) {
	f := newFixture(t)
	svc := f.team()
	second := f.addMember(domain.RoleOwner)

	if err := svc.RemoveMember(f.ctx, f.tenantID, f.ownerID, second); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if err := svc.ensureAnotherOwner(f.ctx, f.tenantID); !apperrors.IsCode(err, apperrors.CodeAccessDenied) {
		t.Fatalf("expected sole owner to be protected, got %v", err)
	}

	third := f.addMember(domain.RoleAdmin)
	if _, err := svc.UpdateMemberRole(f.ctx, f.tenantID, f.ownerID, third, domain.RoleOwner); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if _, err := svc.UpdateMemberRole(f.ctx, f.tenantID, third, f.ownerID, domain.RoleSales); err != nil {
		t.Fatalf("demote with spare owner: %v", err)
	}

	_, err := svc.UpdateMemberRole(f.ctx, f.tenantID, f.ownerID, third, domain.RoleSales)
	assertCode(t, err, apperrors.CodeAccessDenied)
	_, err = svc.UpdateMemberRole(f.ctx, f.tenantID, third, third, domain.RoleSales)
	assertCode(t, err, apperrors.CodeAccessDenied)

	owners, _ := f.store.Memberships().CountActiveOwners(f.ctx, f.tenantID)
	if owners != 1 {
		t.Fatalf("expected one owner, got %d", owners)
	}
}

func TestListMembersSortedByRank(t *testing.T) {
	f := newFixture(t)
	f.addMember(domain.RoleFieldTech)
	f.addMember(domain.RoleAdmin)
	f.addMember(domain.RoleSales)

	members, err := f.team().ListMembers(f.ctx, f.tenantID, f.ownerID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	want := []domain.Role{domain.RoleOwner, domain.RoleAdmin, domain.RoleSales, domain.RoleFieldTech}
	if len(members) != len(want) {
		t.Fatalf("expected %d members, got %d", len(want), len(members))
	}
	for i, role := range want {
		if members[i].Role != role {
			t.Fatalf("position %d: expected %s, got %s", i, role, members[i].Role)
		}
	}
}
