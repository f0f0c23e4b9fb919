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

// JobFilter captures job search parameters.
type JobFilter struct {
	TenantID      string
	Statuses      []domain.JobStatus
	AssigneeID    *string
	CustomerID    *string
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time
	Search        string
	Limit         int
	Offset        int
}

// JobRepository persists jobs.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	Update(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Job, error)
	List(ctx context.Context, filter JobFilter) ([]domain.Job, error)
}

type jobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository returns a Postgres-backed implementation.
func NewJobRepository(pool *pgxpool.Pool) JobRepository {
	return &jobRepository{pool: pool}
}

const jobColumns = `id, tenant_id, customer_id, lead_id, assignee_user_id, title, description, status,
               scheduled_for, created_at, updated_at, archived_at`

func (r *jobRepository) Create(ctx context.Context, job *domain.Job) error {
	const query = `
        INSERT INTO jobs (tenant_id, customer_id, lead_id, assignee_user_id, title, description, status, scheduled_for)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		job.TenantID,
		job.CustomerID,
		job.LeadID,
		job.AssigneeID,
		job.Title,
		job.Description,
		job.Status,
		job.ScheduledFor,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

func (r *jobRepository) Update(ctx context.Context, job *domain.Job) error {
	const query = `
        UPDATE jobs SET assignee_user_id=$1, title=$2, description=$3, status=$4, scheduled_for=$5,
            archived_at=$6, updated_at=NOW()
        WHERE tenant_id=$7 AND id=$8
        RETURNING updated_at`
	return persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		job.AssigneeID,
		job.Title,
		job.Description,
		job.Status,
		job.ScheduledFor,
		job.ArchivedAt,
		job.TenantID,
		job.ID,
	).Scan(&job.UpdatedAt)
}

func (r *jobRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE tenant_id=$1 AND id=$2`
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, query, tenantID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &jobs[0], nil
}

func (r *jobRepository) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	where := newWhere("archived_at IS NULL")
	where.eq("tenant_id", filter.TenantID)
	in(where, "status", filter.Statuses)
	if filter.AssigneeID != nil {
		where.eq("assignee_user_id", *filter.AssigneeID)
	}
	if filter.CustomerID != nil {
		where.eq("customer_id", *filter.CustomerID)
	}
	if filter.ScheduledFrom != nil {
		where.cmp("scheduled_for", ">=", *filter.ScheduledFrom)
	}
	if filter.ScheduledTo != nil {
		where.cmp("scheduled_for", "<=", *filter.ScheduledTo)
	}
	where.search(filter.Search, "title", "description")

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE %s ORDER BY COALESCE(scheduled_for, created_at) DESC LIMIT %d OFFSET %d`,
		jobColumns, where.sql(), limit, offset)

	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJobs(rows pgx.Rows) ([]domain.Job, error) {
	var result []domain.Job
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(
			&j.ID,
			&j.TenantID,
			&j.CustomerID,
			&j.LeadID,
			&j.AssigneeID,
			&j.Title,
			&j.Description,
			&j.Status,
			&j.ScheduledFor,
			&j.CreatedAt,
			&j.UpdatedAt,
			&j.ArchivedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, j)
	}
	return result, rows.Err()
}
