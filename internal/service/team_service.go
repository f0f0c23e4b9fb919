package service

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/spec-kit/fieldops/internal/auth"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
	"github.com/spec-kit/fieldops/internal/repository"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

const defaultInviteTTL = 7 * 24 * time.Hour

// TeamService manages memberships and invitations.
type TeamService struct {
	invites     repository.InviteRepository
	memberships repository.MembershipRepository
	users       repository.UserRepository
	guard       *auth.Guard
	activity    *ActivityService
	tx          persistence.TxManager
	now         func() time.Time
	inviteTTL   time.Duration
}

// TeamDependencies bundles collaborators for the team service.
type TeamDependencies struct {
	InviteRepo     repository.InviteRepository
	MembershipRepo repository.MembershipRepository
	UserRepo       repository.UserRepository
	Guard          *auth.Guard
	Activity       *ActivityService
	Tx             persistence.TxManager
	Clock          func() time.Time
	InviteTTL      time.Duration
}

// NewTeamService constructs the service.
func NewTeamService(deps TeamDependencies) *TeamService {
	ttl := deps.InviteTTL
	if ttl <= 0 {
		ttl = defaultInviteTTL
	}
	return &TeamService{
		invites:     deps.InviteRepo,
		memberships: deps.MembershipRepo,
		users:       deps.UserRepo,
		guard:       deps.Guard,
		activity:    deps.Activity,
		tx:          deps.Tx,
		now:         clockOrDefault(deps.Clock),
		inviteTTL:   ttl,
	}
}

// CreateInvite offers role to email. An expired open invite for the same address is revoked first.
func (s *TeamService) CreateInvite(ctx context.Context, tenantID, actorID, email string, role domain.Role) (invite *domain.TenantInvite, err error) {
	ctx, span := startSpan(ctx, "TeamService.CreateInvite", tenantID)
	defer func() { endSpan(span, err) }()

	actor, err := s.guard.RequireRole(ctx, tenantID, actorID, auth.ManagerRoles...)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	if _, perr := mail.ParseAddress(email); email == "" || perr != nil {
		return nil, apperrors.NewInvalidInput("a valid email is required", map[string]any{"email": email})
	}
	if !role.Valid() {
		return nil, apperrors.NewInvalidInput("unknown role", map[string]any{"role": role})
	}
	if role == domain.RoleOwner && actor.Role != domain.RoleOwner {
		return nil, apperrors.NewAccessDenied("only owners can invite owners")
	}

	token, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		member, err := s.memberships.ActiveMemberWithEmail(ctx, tenantID, email)
		if err != nil {
			return err
		}
		if member {
			return apperrors.NewConflict("user is already a member", map[string]any{"email": email})
		}

		now := s.now()
		open, err := s.invites.FindOpen(ctx, tenantID, email)
		switch {
		case err == nil && open.Pending(now):
			return apperrors.NewConflict("a pending invite already exists", map[string]any{"inviteId": open.ID})
		case err == nil:
			if err := s.invites.Revoke(ctx, tenantID, open.ID, now); err != nil {
				return err
			}
		case !apperrors.IsNoRows(err):
			return err
		}

		invite = &domain.TenantInvite{
			TenantID:  tenantID,
			Email:     email,
			Role:      role,
			Token:     token,
			InvitedBy: &actorID,
			ExpiresAt: now.Add(s.inviteTTL),
		}
		if err := s.invites.Create(ctx, invite); err != nil {
			if apperrors.IsUniqueViolation(err) {
				return apperrors.NewConflict("a pending invite already exists", map[string]any{"email": email})
			}
			return err
		}

		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &actorID,
			EntityType: domain.EntityInvite,
			EntityID:   invite.ID,
			EventType:  domain.ActivityInviteCreated,
			Message:    fmt.Sprintf("Invited %s as %s", email, role),
			Metadata:   map[string]any{"email": email, "role": role},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return invite, nil
}

// AcceptInvite joins the caller to the inviting tenant.
func (s *TeamService) AcceptInvite(ctx context.Context, actorID, token string) (membership *domain.Membership, err error) {
	ctx, span := startSpan(ctx, "TeamService.AcceptInvite", "")
	defer func() { endSpan(span, err) }()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		invite, err := s.invites.GetByToken(ctx, token)
		if err != nil {
			return apperrors.NotFoundOr(err, "invite", nil)
		}
		if invite.RevokedAt != nil {
			return apperrors.NewNotFound("invite", nil)
		}
		if invite.AcceptedAt != nil {
			return apperrors.NewInvalidInput("invite already accepted", nil)
		}
		now := s.now()
		if !now.Before(invite.ExpiresAt) {
			return apperrors.NewInvalidInput("invite has expired", map[string]any{"expiresAt": invite.ExpiresAt})
		}

		user, err := s.users.GetByID(ctx, actorID)
		if err != nil {
			return apperrors.NotFoundOr(err, "user", map[string]any{"userId": actorID})
		}
		if normalizeEmail(user.Email) != invite.Email {
			return apperrors.NewAccessDenied("invite was issued to a different email")
		}

		existing, err := s.memberships.Get(ctx, invite.TenantID, actorID)
		switch {
		case err == nil && existing.IsActive():
			membership = existing
		case err == nil:
			if err := s.memberships.Reactivate(ctx, invite.TenantID, actorID, invite.Role); err != nil {
				return err
			}
			if membership, err = s.memberships.Get(ctx, invite.TenantID, actorID); err != nil {
				return err
			}
		case apperrors.IsNoRows(err):
			membership = &domain.Membership{TenantID: invite.TenantID, UserID: actorID, Role: invite.Role}
			if err := s.memberships.Create(ctx, membership); err != nil {
				return err
			}
		default:
			return err
		}

		if err := s.invites.MarkAccepted(ctx, invite.ID, actorID, now); err != nil {
			return err
		}
		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   invite.TenantID,
			ActorID:    &actorID,
			EntityType: domain.EntityInvite,
			EntityID:   invite.ID,
			EventType:  domain.ActivityInviteAccepted,
			Message:    fmt.Sprintf("%s joined as %s", invite.Email, membership.Role),
			Metadata:   map[string]any{"membershipId": membership.ID, "role": membership.Role},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return membership, nil
}

// RevokeInvite cancels an unaccepted invite.
func (s *TeamService) RevokeInvite(ctx context.Context, tenantID, actorID, inviteID string) (err error) {
	ctx, span := startSpan(ctx, "TeamService.RevokeInvite", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, actorID, auth.ManagerRoles...); err != nil {
		return err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		invite, err := s.invites.GetByID(ctx, tenantID, inviteID)
		if err != nil {
			return apperrors.NotFoundOr(err, "invite", map[string]any{"id": inviteID})
		}
		if invite.RevokedAt != nil {
			return apperrors.NewNotFound("invite", map[string]any{"id": inviteID})
		}
		if invite.AcceptedAt != nil {
			return apperrors.NewConflict("invite already accepted", nil)
		}
		if err := s.invites.Revoke(ctx, tenantID, invite.ID, s.now()); err != nil {
			return err
		}
		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &actorID,
			EntityType: domain.EntityInvite,
			EntityID:   invite.ID,
			EventType:  domain.ActivityInviteRevoked,
			Message:    fmt.Sprintf("Invite for %s revoked", invite.Email),
		})
		return err
	})
	return apperrors.MapError(err)
}

// ListInvites returns the tenant's unaccepted, unrevoked invites.
func (s *TeamService) ListInvites(ctx context.Context, tenantID, actorID string) ([]domain.TenantInvite, error) {
	if _, err := s.guard.RequireRole(ctx, tenantID, actorID, auth.ManagerRoles...); err != nil {
		return nil, err
	}
	invites, err := s.invites.ListOpen(ctx, tenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return invites, nil
}

// ListMembers returns active members, most senior first.
func (s *TeamService) ListMembers(ctx context.Context, tenantID, actorID string) ([]domain.Member, error) {
	if _, err := s.guard.RequireRole(ctx, tenantID, actorID, auth.AllRoles...); err != nil {
		return nil, err
	}
	members, err := s.memberships.ListMembers(ctx, tenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	domain.SortMembersByRank(members)
	return members, nil
}

// UpdateMemberRole changes another member's role. The last active owner cannot be demoted.
func (s *TeamService) UpdateMemberRole(ctx context.Context, tenantID, actorID, targetUserID string, role domain.Role) (membership *domain.Membership, err error) {
	ctx, span := startSpan(ctx, "TeamService.UpdateMemberRole", tenantID)
	defer func() { endSpan(span, err) }()

	actor, err := s.guard.RequireRole(ctx, tenantID, actorID, auth.OwnerOnly...)
	if err != nil {
		return nil, err
	}
	if actorID == targetUserID {
		return nil, apperrors.NewAccessDenied("cannot change your own role")
	}
	if !role.Valid() {
		return nil, apperrors.NewInvalidInput("unknown role", map[string]any{"role": role})
	}
	if role == domain.RoleOwner && actor.Role != domain.RoleOwner {
		return nil, apperrors.NewAccessDenied("only owners can assign the owner role")
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		target, err := s.activeMembership(ctx, tenantID, targetUserID)
		if err != nil {
			return err
		}
		from := target.Role
		if from == domain.RoleOwner && role != domain.RoleOwner {
			if err := s.ensureAnotherOwner(ctx, tenantID); err != nil {
				return err
			}
		}
		if err := s.memberships.UpdateRole(ctx, tenantID, targetUserID, role); err != nil {
			return err
		}
		target.Role = role
		membership = target

		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &actorID,
			EntityType: domain.EntityMembership,
			EntityID:   target.ID,
			EventType:  domain.ActivityMemberRoleChanged,
			Message:    fmt.Sprintf("Role changed from %s to %s", from, role),
			Metadata:   map[string]any{"userId": targetUserID, "from": from, "to": role},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return membership, nil
}

// RemoveMember archives another member's membership.
func (s *TeamService) RemoveMember(ctx context.Context, tenantID, actorID, targetUserID string) (err error) {
	ctx, span := startSpan(ctx, "TeamService.RemoveMember", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, actorID, auth.OwnerOnly...); err != nil {
		return err
	}
	if actorID == targetUserID {
		return apperrors.NewAccessDenied("cannot remove yourself")
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		target, err := s.activeMembership(ctx, tenantID, targetUserID)
		if err != nil {
			return err
		}
		if target.Role == domain.RoleOwner {
			if err := s.ensureAnotherOwner(ctx, tenantID); err != nil {
				return err
			}
		}
		if err := s.memberships.Archive(ctx, tenantID, targetUserID); err != nil {
			return err
		}
		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &actorID,
			EntityType: domain.EntityMembership,
			EntityID:   target.ID,
			EventType:  domain.ActivityMemberRemoved,
			Message:    "Member removed",
			Metadata:   map[string]any{"userId": targetUserID, "role": target.Role},
		})
		return err
	})
	return apperrors.MapError(err)
}

func (s *TeamService) activeMembership(ctx context.Context, tenantID, userID string) (*domain.Membership, error) {
	m, err := s.memberships.Get(ctx, tenantID, userID)
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "member", map[string]any{"userId": userID})
	}
	if !m.IsActive() {
		return nil, apperrors.NewNotFound("member", map[string]any{"userId": userID})
	}
	return m, nil
}

// ensureAnotherOwner reads the live owner count.
func (s *TeamService) ensureAnotherOwner(ctx context.Context, tenantID string) error {
	owners, err := s.memberships.CountActiveOwners(ctx, tenantID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return apperrors.NewAccessDenied("tenant must keep at least one owner")
	}
	return nil
}
