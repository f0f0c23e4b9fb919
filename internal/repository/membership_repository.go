package repository

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
)

// MembershipRepository persists tenant memberships.
type MembershipRepository interface {
	Create(ctx context.Context, m *domain.Membership) error
	Get(ctx context.Context, tenantID, userID string) (*domain.Membership, error)
	UpdateRole(ctx context.Context, tenantID, userID string, role domain.Role) error
	Archive(ctx context.Context, tenantID, userID string) error
	Reactivate(ctx context.Context, tenantID, userID string, role domain.Role) error
	CountActiveOwners(ctx context.Context, tenantID string) (int, error)
	ActiveMemberWithEmail(ctx context.Context, tenantID, email string) (bool, error)
	ListMembers(ctx context.Context, tenantID string) ([]domain.Member, error)
}

type membershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository returns a Postgres-backed implementation.
func NewMembershipRepository(pool *pgxpool.Pool) MembershipRepository {
	return &membershipRepository{pool: pool}
}

func (r *membershipRepository) Create(ctx context.Context, m *domain.Membership) error {
	const query = `
        INSERT INTO memberships (tenant_id, user_id, role)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`
	return persistence.Conn(ctx, r.pool).QueryRow(ctx, query, m.TenantID, m.UserID, m.Role).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (r *membershipRepository) Get(ctx context.Context, tenantID, userID string) (*domain.Membership, error) {
	const query = `
        SELECT id, tenant_id, user_id, role, created_at, updated_at, archived_at
        FROM memberships WHERE tenant_id=$1 AND user_id=$2`
	var m domain.Membership
	if err := pgxscan.Get(ctx, persistence.Conn(ctx, r.pool), &m, query, tenantID, userID); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepository) UpdateRole(ctx context.Context, tenantID, userID string, role domain.Role) error {
	const query = `
        UPDATE memberships SET role=$1, updated_at=NOW()
        WHERE tenant_id=$2 AND user_id=$3 AND archived_at IS NULL`
	return r.execOne(ctx, query, role, tenantID, userID)
}

func (r *membershipRepository) Archive(ctx context.Context, tenantID, userID string) error {
	const query = `
        UPDATE memberships SET archived_at=NOW(), updated_at=NOW()
        WHERE tenant_id=$1 AND user_id=$2 AND archived_at IS NULL`
	return r.execOne(ctx, query, tenantID, userID)
}

func (r *membershipRepository) Reactivate(ctx context.Context, tenantID, userID string, role domain.Role) error {
	const query = `
        UPDATE memberships SET role=$1, archived_at=NULL, updated_at=NOW()
        WHERE tenant_id=$2 AND user_id=$3`
	return r.execOne(ctx, query, role, tenantID, userID)
}

func (r *membershipRepository) CountActiveOwners(ctx context.Context, tenantID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM memberships
        WHERE tenant_id=$1 AND role=$2 AND archived_at IS NULL`
	var count int
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, query, tenantID, domain.RoleOwner).Scan(&count)
	return count, err
}

func (r *membershipRepository) ActiveMemberWithEmail(ctx context.Context, tenantID, email string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM memberships m JOIN users u ON u.id = m.user_id
            WHERE m.tenant_id=$1 AND u.email=$2 AND m.archived_at IS NULL
        )`
	var exists bool
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, query, tenantID, email).Scan(&exists)
	return exists, err
}

func (r *membershipRepository) ListMembers(ctx context.Context, tenantID string) ([]domain.Member, error) {
	const query = `
        SELECT m.id, m.tenant_id, m.user_id, m.role, m.created_at, m.updated_at, m.archived_at,
               u.email, u.name
        FROM memberships m JOIN users u ON u.id = m.user_id
        WHERE m.tenant_id=$1 AND m.archived_at IS NULL`
	var members []domain.Member
	if err := pgxscan.Select(ctx, persistence.Conn(ctx, r.pool), &members, query, tenantID); err != nil {
		return nil, err
	}
	domain.SortMembersByRank(members)
	return members, nil
}

func (r *membershipRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
