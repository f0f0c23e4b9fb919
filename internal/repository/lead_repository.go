package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
)

// LeadFilter captures lead search parameters.
type LeadFilter struct {
	TenantID    string
	Statuses    []domain.LeadStatus
	AssigneeID  *string
	CustomerID  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Search      string
	Limit       int
	Offset      int
}

// LeadRepository persists leads.
type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	Update(ctx context.Context, lead *domain.Lead) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Lead, error)
	List(ctx context.Context, filter LeadFilter) ([]domain.Lead, error)
}

type leadRepository struct {
	pool *pgxpool.Pool
}

// NewLeadRepository returns a Postgres-backed implementation.
func NewLeadRepository(pool *pgxpool.Pool) LeadRepository {
	return &leadRepository{pool: pool}
}

const leadColumns = `id, tenant_id, customer_id, assignee_user_id, converted_job_id, title, source, notes,
               status, created_at, updated_at, archived_at`

func (r *leadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	const query = `
        INSERT INTO leads (tenant_id, customer_id, assignee_user_id, title, source, notes, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		lead.TenantID,
		lead.CustomerID,
		lead.AssigneeID,
		lead.Title,
		lead.Source,
		lead.Notes,
		lead.Status,
	).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
}

func (r *leadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	const query = `
        UPDATE leads SET customer_id=$1, assignee_user_id=$2, converted_job_id=$3, title=$4, source=$5,
            notes=$6, status=$7, archived_at=$8, updated_at=NOW()
        WHERE tenant_id=$9 AND id=$10
        RETURNING updated_at`
	return persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		lead.CustomerID,
		lead.AssigneeID,
		lead.ConvertedJobID,
		lead.Title,
		lead.Source,
		lead.Notes,
		lead.Status,
		lead.ArchivedAt,
		lead.TenantID,
		lead.ID,
	).Scan(&lead.UpdatedAt)
}

func (r *leadRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id=$1 AND id=$2`
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, query, tenantID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	leads, err := scanLeads(rows)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &leads[0], nil
}

func (r *leadRepository) List(ctx context.Context, filter LeadFilter) ([]domain.Lead, error) {
	where := newWhere("archived_at IS NULL")
	where.eq("tenant_id", filter.TenantID)
	in(where, "status", filter.Statuses)
	if filter.AssigneeID != nil {
		where.eq("assignee_user_id", *filter.AssigneeID)
	}
	if filter.CustomerID != nil {
		where.eq("customer_id", *filter.CustomerID)
	}
	if filter.CreatedFrom != nil {
		where.cmp("created_at", ">=", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		where.cmp("created_at", "<=", *filter.CreatedTo)
	}
	where.search(filter.Search, "title", "notes")

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		leadColumns, where.sql(), limit, offset)

	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeads(rows)
}

func scanLeads(rows pgx.Rows) ([]domain.Lead, error) {
	var result []domain.Lead
	for rows.Next() {
		var l domain.Lead
		if err := rows.Scan(
			&l.ID,
			&l.TenantID,
			&l.CustomerID,
			&l.AssigneeID,
			&l.ConvertedJobID,
			&l.Title,
			&l.Source,
			&l.Notes,
			&l.Status,
			&l.CreatedAt,
			&l.UpdatedAt,
			&l.ArchivedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
