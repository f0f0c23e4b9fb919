package repository

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
)

// InviteRepository persists tenant invites.
type InviteRepository interface {
	Create(ctx context.Context, invite *domain.TenantInvite) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.TenantInvite, error)
	GetByToken(ctx context.Context, token string) (*domain.TenantInvite, error)
	// FindOpen returns the unaccepted, unrevoked invite for (tenant, email).
	FindOpen(ctx context.Context, tenantID, email string) (*domain.TenantInvite, error)
	MarkAccepted(ctx context.Context, id, userID string, at time.Time) error
	Revoke(ctx context.Context, tenantID, id string, at time.Time) error
	ListOpen(ctx context.Context, tenantID string) ([]domain.TenantInvite, error)
}

type inviteRepository struct {
	pool *pgxpool.Pool
}

// NewInviteRepository returns a Postgres-backed implementation.
func NewInviteRepository(pool *pgxpool.Pool) InviteRepository {
	return &inviteRepository{pool: pool}
}

const inviteColumns = `id, tenant_id, email, role, token, invited_by, expires_at, accepted_at, accepted_by, revoked_at, created_at`

func (r *inviteRepository) Create(ctx context.Context, invite *domain.TenantInvite) error {
	const query = `
        INSERT INTO tenant_invites (tenant_id, email, role, token, invited_by, expires_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		invite.TenantID,
		invite.Email,
		invite.Role,
		invite.Token,
		invite.InvitedBy,
		invite.ExpiresAt,
	).Scan(&invite.ID, &invite.CreatedAt)
}

func (r *inviteRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.TenantInvite, error) {
	query := `SELECT ` + inviteColumns + ` FROM tenant_invites WHERE tenant_id=$1 AND id=$2`
	return r.get(ctx, query, tenantID, id)
}

func (r *inviteRepository) GetByToken(ctx context.Context, token string) (*domain.TenantInvite, error) {
	query := `SELECT ` + inviteColumns + ` FROM tenant_invites WHERE token=$1`
	return r.get(ctx, query, token)
}

func (r *inviteRepository) FindOpen(ctx context.Context, tenantID, email string) (*domain.TenantInvite, error) {
	query := `SELECT ` + inviteColumns + ` FROM tenant_invites
        WHERE tenant_id=$1 AND email=$2 AND accepted_at IS NULL AND revoked_at IS NULL`
	return r.get(ctx, query, tenantID, email)
}

func (r *inviteRepository) get(ctx context.Context, query string, args ...any) (*domain.TenantInvite, error) {
	var invite domain.TenantInvite
	if err := pgxscan.Get(ctx, persistence.Conn(ctx, r.pool), &invite, query, args...); err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *inviteRepository) MarkAccepted(ctx context.Context, id, userID string, at time.Time) error {
	const query = `
        UPDATE tenant_invites SET accepted_at=$1, accepted_by=$2
        WHERE id=$3 AND accepted_at IS NULL AND revoked_at IS NULL`
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, query, at, userID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *inviteRepository) Revoke(ctx context.Context, tenantID, id string, at time.Time) error {
	const query = `
        UPDATE tenant_invites SET revoked_at=$1
        WHERE tenant_id=$2 AND id=$3 AND accepted_at IS NULL AND revoked_at IS NULL`
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, query, at, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *inviteRepository) ListOpen(ctx context.Context, tenantID string) ([]domain.TenantInvite, error) {
	query := `SELECT ` + inviteColumns + ` FROM tenant_invites
        WHERE tenant_id=$1 AND accepted_at IS NULL AND revoked_at IS NULL
        ORDER BY created_at DESC`
	var invites []domain.TenantInvite
	if err := pgxscan.Select(ctx, persistence.Conn(ctx, r.pool), &invites, query, tenantID); err != nil {
		return nil, err
	}
	return invites, nil
}
