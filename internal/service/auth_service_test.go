package service

import (
	"testing"

	"github.com/spec-kit/fieldops/internal/auth"
	"github.com/spec-kit/fieldops/internal/domain"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

func TestSignupAndLogin(t *testing.T) {
	f := newFixture(t)
	tokens := auth.NewTokenManager("secret", 5)
	svc := NewAuthService(AuthDependencies{
		UserRepo:       f.store.Users(),
		TenantRepo:     f.store.Tenants(),
		MembershipRepo: f.store.Memberships(),
		Tx:             f.tx,
		Tokens:         tokens,
		BcryptCost:     4,
	})

	result, err := svc.Signup(f.ctx, SignupInput{
		Email:      "Founder@Example.com",
		Password:   "correct horse",
		Name:       "Founder",
		TenantName: "Founder Co",
		TenantSlug: "founder-co",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if result.Membership.Role != domain.RoleOwner || result.Membership.TenantID != result.Tenant.ID {
		t.Fatalf("unexpected membership %+v", result.Membership)
	}
	claims, err := tokens.ParseToken(result.Token)
	if err != nil || claims.UserID != result.User.ID {
		t.Fatalf("token does not identify user: %v %+v", err, claims)
	}

	tests := []struct {
		name  string
		input SignupInput
		code  string
	}{
		{"duplicate email", SignupInput{Email: "founder@example.com", Password: "password1", Name: "A", TenantName: "B", TenantSlug: "other"}, apperrors.CodeConflict},
		{"duplicate slug", SignupInput{Email: "new@example.com", Password: "password1", Name: "A", TenantName: "B", TenantSlug: "founder-co"}, apperrors.CodeConflict},
		{"bad slug", SignupInput{Email: "new@example.com", Password: "password1", Name: "A", TenantName: "B", TenantSlug: "Bad Slug"}, apperrors.CodeInvalidInput},
		{"short password", SignupInput{Email: "new@example.com", Password: "short", Name: "A", TenantName: "B", TenantSlug: "fine"}, apperrors.CodeInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Signup(f.ctx, tc.input)
			assertCode(t, err, tc.code)
		})
	}

	user, token, _, err := svc.Login(f.ctx, " founder@example.com", "correct horse")
	if err != nil || token == "" || user.ID != result.User.ID {
		t.Fatalf("Login: %v", err)
	}
	_, _, _, err = svc.Login(f.ctx, "founder@example.com", "wrong password")
	assertCode(t, err, apperrors.CodeUnauthorized)
	_, _, _, err = svc.Login(f.ctx, "nobody@example.com", "whatever1")
	assertCode(t, err, apperrors.CodeUnauthorized)
}

func TestSignupFailureLeavesNoUser(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(AuthDependencies{
		UserRepo:       f.store.Users(),
		TenantRepo:     f.store.Tenants(),
		MembershipRepo: f.store.Memberships(),
		Tx:             f.tx,
		Tokens:         auth.NewTokenManager("secret", 5),
		BcryptCost:     4,
	})

	// "acme" belongs to the fixture tenant, so the tenant insert fails after the user insert.
	_, err := svc.Signup(f.ctx, SignupInput{Email: "new@example.com", Password: "password1", Name: "New", TenantName: "Acme", TenantSlug: "acme"})
	assertCode(t, err, apperrors.CodeConflict)
	if _, err := f.store.Users().GetByEmail(f.ctx, "new@example.com"); !apperrors.IsNoRows(err) {
		t.Fatalf("user kept after failed signup: %v", err)
	}

	result, err := svc.Signup(f.ctx, SignupInput{Email: "new@example.com", Password: "password1", Name: "New", TenantName: "Fresh", TenantSlug: "fresh"})
	if err != nil {
		t.Fatalf("retry Signup: %v", err)
	}
	if result.Tenant.Slug != "fresh" || result.Membership.Role != domain.RoleOwner {
		t.Fatalf("unexpected retry result %+v", result)
	}
}
