package auth

import (
	"context"
	"slices"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/repository"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// Role groups used by the services.
var (
	AllRoles     = []domain.Role{domain.RoleOwner, domain.RoleAdmin, domain.RoleSales, domain.RoleFieldTech}
	ManagerRoles = []domain.Role{domain.RoleOwner, domain.RoleAdmin}
	SalesRoles   = []domain.Role{domain.RoleOwner, domain.RoleAdmin, domain.RoleSales}
	OwnerOnly    = []domain.Role{domain.RoleOwner}
)

// Guard resolves a (tenant, user) pair to an active membership.
type Guard struct {
	tenants     repository.TenantRepository
	users       repository.UserRepository
	memberships repository.MembershipRepository
}

// NewGuard constructs a Guard.
func NewGuard(tenants repository.TenantRepository, users repository.UserRepository, memberships repository.MembershipRepository) *Guard {
	return &Guard{tenants: tenants, users: users, memberships: memberships}
}

// ResolveMembership returns the caller's active membership in the tenant.
func (g *Guard) ResolveMembership(ctx context.Context, tenantID, userID string) (*domain.Membership, error) {
	if _, err := g.tenants.GetByID(ctx, tenantID); err != nil {
		return nil, apperrors.NotFoundOr(err, "tenant", map[string]any{"tenantId": tenantID})
	}
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "user", map[string]any{"userId": userID})
	}
	if !user.Enabled {
		return nil, apperrors.NewAccessDenied("user is disabled")
	}

	membership, err := g.memberships.Get(ctx, tenantID, userID)
	if err != nil {
		if apperrors.IsNoRows(err) {
			return nil, apperrors.NewAccessDenied("not a member of this tenant")
		}
		return nil, apperrors.MapError(err)
	}
	if !membership.IsActive() {
		return nil, apperrors.NewAccessDenied("not a member of this tenant")
	}
	return membership, nil
}

// RequireRole resolves the membership and checks its role is allowed.
func (g *Guard) RequireRole(ctx context.Context, tenantID, userID string, allowed ...domain.Role) (*domain.Membership, error) {
	membership, err := g.ResolveMembership(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(allowed, membership.Role) {
		return nil, apperrors.NewAccessDenied("insufficient role")
	}
	return membership, nil
}
