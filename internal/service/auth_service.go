package service

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/spec-kit/fieldops/internal/auth"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
	"github.com/spec-kit/fieldops/internal/repository"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// AuthService coordinates signup and login flows.
type AuthService struct {
	users       repository.UserRepository
	tenants     repository.TenantRepository
	memberships repository.MembershipRepository
	tx          persistence.TxManager
	tokenMgr    *auth.TokenManager
	bcryptCost  int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo       repository.UserRepository
	TenantRepo     repository.TenantRepository
	MembershipRepo repository.MembershipRepository
	Tx             persistence.TxManager
	Tokens         *auth.TokenManager
	BcryptCost     int
}

// SignupInput creates an account together with its first tenant.
type SignupInput struct {
	Email      string
	Password   string
	Name       string
	TenantName string
	TenantSlug string
}

// SignupResult is everything created by a signup plus a session token.
type SignupResult struct {
	User       *domain.User
	Tenant     *domain.Tenant
	Membership *domain.Membership
	Token      string
	ExpiresAt  time.Time
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:       deps.UserRepo,
		tenants:     deps.TenantRepo,
		memberships: deps.MembershipRepo,
		tx:          deps.Tx,
		tokenMgr:    deps.Tokens,
		bcryptCost:  deps.BcryptCost,
	}
}

// Signup registers a user, a tenant and the user's OWNER membership in one unit of work.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (result *SignupResult, err error) {
	ctx, span := startSpan(ctx, "AuthService.Signup", "")
	defer func() { endSpan(span, err) }()

	email := normalizeEmail(input.Email)
	if _, perr := mail.ParseAddress(email); email == "" || perr != nil {
		return nil, apperrors.NewInvalidInput("a valid email is required", nil)
	}
	name := strings.TrimSpace(input.Name)
	tenantName := strings.TrimSpace(input.TenantName)
	slug := strings.ToLower(strings.TrimSpace(input.TenantSlug))
	if name == "" || tenantName == "" {
		return nil, apperrors.NewInvalidInput("name and tenant name are required", nil)
	}
	if !slugPattern.MatchString(slug) {
		return nil, apperrors.NewInvalidInput("tenant slug must be lowercase letters, digits and dashes", map[string]any{"slug": slug})
	}
	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, apperrors.NewInvalidInput("password must be at least 8 characters", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	result = &SignupResult{}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return apperrors.NewConflict("email already registered", nil)
		} else if !apperrors.IsNoRows(err) {
			return err
		}

		user := &domain.User{Email: email, Name: name, PasswordHash: hash, Enabled: true}
		if err := s.users.Create(ctx, user); err != nil {
			if apperrors.IsUniqueViolation(err) {
				return apperrors.NewConflict("email already registered", nil)
			}
			return err
		}
		tenant := &domain.Tenant{Name: tenantName, Slug: slug}
		if err := s.tenants.Create(ctx, tenant); err != nil {
			if apperrors.IsUniqueViolation(err) {
				return apperrors.NewConflict("tenant slug already taken", map[string]any{"slug": slug})
			}
			return err
		}
		membership := &domain.Membership{TenantID: tenant.ID, UserID: user.ID, Role: domain.RoleOwner}
		if err := s.memberships.Create(ctx, membership); err != nil {
			return err
		}
		result.User, result.Tenant, result.Membership = user, tenant, membership
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	result.Token, result.ExpiresAt, err = s.tokenMgr.GenerateToken(result.User.ID, result.User.Email)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return result, nil
}

// Login authenticates a user by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperrors.IsNoRows(err) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Enabled {
		return nil, "", time.Time{}, apperrors.NewAccessDenied("user is disabled")
	}
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperrors.NotFoundOr(err, "user", map[string]any{"userId": userID})
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return apperrors.NewInvalidInput("password must be at least 8 characters", nil)
		}
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	return apperrors.MapError(s.users.Update(ctx, user))
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
