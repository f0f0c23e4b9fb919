package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
)

// EstimateFilter captures estimate search parameters.
type EstimateFilter struct {
	TenantID    string
	JobID       *string
	Statuses    []domain.EstimateStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// Decision carries the fields written once by the public decision flow.
type Decision struct {
	Status      domain.EstimateStatus
	DecidedAt   time.Time
	SignerName  string
	SignerEmail *string
}

// EstimateRepository persists estimates and their items.
type EstimateRepository interface {
	NextNumber(ctx context.Context, tenantID string) (int, error)
	Create(ctx context.Context, est *domain.Estimate) error
	// Update writes status, notes and totals only while the stored status is still from.
	Update(ctx context.Context, est *domain.Estimate, from domain.EstimateStatus) (bool, error)
	ReplaceItems(ctx context.Context, est *domain.Estimate) error
	// SharePublic rotates the public token. It never touches status or decision columns.
	SharePublic(ctx context.Context, est *domain.Estimate) error
	RevokePublic(ctx context.Context, tenantID, id string) error
	Archive(ctx context.Context, tenantID, id string, at time.Time) error
	// Decide applies d only while the estimate is still undecided and reports whether it did.
	Decide(ctx context.Context, tenantID, id string, d Decision) (bool, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.Estimate, error)
	GetByToken(ctx context.Context, token string) (*domain.Estimate, error)
	List(ctx context.Context, filter EstimateFilter) ([]domain.Estimate, error)
}

type estimateRepository struct {
	pool *pgxpool.Pool
}

// NewEstimateRepository returns a Postgres-backed implementation.
func NewEstimateRepository(pool *pgxpool.Pool) EstimateRepository {
	return &estimateRepository{pool: pool}
}

const estimateColumns = `id, tenant_id, job_id, number, status, notes, subtotal, total,
               public_token, public_enabled, public_expires_at, last_shared_at,
               decided_at, signer_name, signer_email, created_by, created_at, updated_at, archived_at`

func (r *estimateRepository) NextNumber(ctx context.Context, tenantID string) (int, error) {
	const query = `
        SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM 5) AS INTEGER)), 0) + 1
        FROM estimates WHERE tenant_id=$1`
	var next int
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, query, tenantID).Scan(&next)
	return next, err
}

func (r *estimateRepository) Create(ctx context.Context, est *domain.Estimate) error {
	const query = `
        INSERT INTO estimates (tenant_id, job_id, number, status, notes, subtotal, total, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	db := persistence.Conn(ctx, r.pool)
	if err := db.QueryRow(ctx, query,
		est.TenantID,
		est.JobID,
		est.Number,
		est.Status,
		est.Notes,
		est.Subtotal,
		est.Total,
		est.CreatedBy,
	).Scan(&est.ID, &est.CreatedAt, &est.UpdatedAt); err != nil {
		return err
	}
	return insertEstimateItems(ctx, db, est)
}

func (r *estimateRepository) Update(ctx context.Context, est *domain.Estimate, from domain.EstimateStatus) (bool, error) {
	const query = `
        UPDATE estimates SET status=$1, notes=$2, subtotal=$3, total=$4, updated_at=NOW()
        WHERE tenant_id=$5 AND id=$6 AND status=$7 AND archived_at IS NULL
        RETURNING updated_at`
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		est.Status,
		est.Notes,
		est.Subtotal,
		est.Total,
		est.TenantID,
		est.ID,
		from,
	).Scan(&est.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *estimateRepository) SharePublic(ctx context.Context, est *domain.Estimate) error {
	const query = `
        UPDATE estimates SET public_token=$1, public_enabled=TRUE, public_expires_at=$2, last_shared_at=$3, updated_at=NOW()
        WHERE tenant_id=$4 AND id=$5 AND archived_at IS NULL
        RETURNING updated_at`
	return persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		est.PublicToken,
		est.PublicExpiresAt,
		est.LastSharedAt,
		est.TenantID,
		est.ID,
	).Scan(&est.UpdatedAt)
}

func (r *estimateRepository) RevokePublic(ctx context.Context, tenantID, id string) error {
	const query = `
        UPDATE estimates SET public_token=NULL, public_enabled=FALSE, public_expires_at=NULL, updated_at=NOW()
        WHERE tenant_id=$1 AND id=$2 AND archived_at IS NULL`
	return execOne(ctx, persistence.Conn(ctx, r.pool), query, tenantID, id)
}

func (r *estimateRepository) Archive(ctx context.Context, tenantID, id string, at time.Time) error {
	const query = `
        UPDATE estimates SET archived_at=$3, public_enabled=FALSE, updated_at=NOW()
        WHERE tenant_id=$1 AND id=$2 AND archived_at IS NULL`
	return execOne(ctx, persistence.Conn(ctx, r.pool), query, tenantID, id, at)
}

func (r *estimateRepository) ReplaceItems(ctx context.Context, est *domain.Estimate) error {
	db := persistence.Conn(ctx, r.pool)
	if _, err := db.Exec(ctx, `DELETE FROM estimate_items WHERE estimate_id=$1`, est.ID); err != nil {
		return err
	}
	return insertEstimateItems(ctx, db, est)
}

func insertEstimateItems(ctx context.Context, db persistence.DBTX, est *domain.Estimate) error {
	if len(est.Items) == 0 {
		return nil
	}
	const query = `
        INSERT INTO estimate_items (estimate_id, name, quantity, unit_price, line_total, sort_order)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	batch := &pgx.Batch{}
	for _, item := range est.Items {
		batch.Queue(query, est.ID, item.Name, item.Quantity, item.UnitPrice, item.LineTotal, item.SortOrder)
	}
	results := db.SendBatch(ctx, batch)
	defer results.Close()
	for i := range est.Items {
		if err := results.QueryRow().Scan(&est.Items[i].ID); err != nil {
			return err
		}
		est.Items[i].EstimateID = est.ID
	}
	return results.Close()
}

func (r *estimateRepository) Decide(ctx context.Context, tenantID, id string, d Decision) (bool, error) {
	const query = `
        UPDATE estimates SET status=$1, decided_at=$2, signer_name=$3, signer_email=$4, updated_at=NOW()
        WHERE tenant_id=$5 AND id=$6 AND status NOT IN ('ACCEPTED','REJECTED')
          AND decided_at IS NULL AND archived_at IS NULL`
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, query,
		d.Status,
		d.DecidedAt,
		d.SignerName,
		d.SignerEmail,
		tenantID,
		id,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *estimateRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Estimate, error) {
	query := `SELECT ` + estimateColumns + ` FROM estimates WHERE tenant_id=$1 AND id=$2`
	return r.fetchWithItems(ctx, query, tenantID, id)
}

func (r *estimateRepository) GetByToken(ctx context.Context, token string) (*domain.Estimate, error) {
	query := `SELECT ` + estimateColumns + ` FROM estimates WHERE public_token=$1`
	return r.fetchWithItems(ctx, query, token)
}

func (r *estimateRepository) fetchWithItems(ctx context.Context, query string, args ...any) (*domain.Estimate, error) {
	db := persistence.Conn(ctx, r.pool)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	estimates, err := scanEstimates(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(estimates) == 0 {
		return nil, pgx.ErrNoRows
	}
	est := &estimates[0]

	const itemsQuery = `
        SELECT id, estimate_id, name, quantity, unit_price, line_total, sort_order
        FROM estimate_items WHERE estimate_id=$1 ORDER BY sort_order ASC`
	itemRows, err := db.Query(ctx, itemsQuery, est.ID)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item domain.EstimateItem
		if err := itemRows.Scan(
			&item.ID,
			&item.EstimateID,
			&item.Name,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineTotal,
			&item.SortOrder,
		); err != nil {
			return nil, err
		}
		est.Items = append(est.Items, item)
	}
	return est, itemRows.Err()
}

func (r *estimateRepository) List(ctx context.Context, filter EstimateFilter) ([]domain.Estimate, error) {
	where := newWhere("archived_at IS NULL")
	where.eq("tenant_id", filter.TenantID)
	if filter.JobID != nil {
		where.eq("job_id", *filter.JobID)
	}
	in(where, "status", filter.Statuses)
	if filter.CreatedFrom != nil {
		where.cmp("created_at", ">=", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		where.cmp("created_at", "<=", *filter.CreatedTo)
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM estimates WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		estimateColumns, where.sql(), limit, offset)

	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEstimates(rows)
}

func scanEstimates(rows pgx.Rows) ([]domain.Estimate, error) {
	var result []domain.Estimate
	for rows.Next() {
		var e domain.Estimate
		if err := rows.Scan(
			&e.ID,
			&e.TenantID,
			&e.JobID,
			&e.Number,
			&e.Status,
			&e.Notes,
			&e.Subtotal,
			&e.Total,
			&e.PublicToken,
			&e.PublicEnabled,
			&e.PublicExpiresAt,
			&e.LastSharedAt,
			&e.DecidedAt,
			&e.SignerName,
			&e.SignerEmail,
			&e.CreatedBy,
			&e.CreatedAt,
			&e.UpdatedAt,
			&e.ArchivedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// execOne runs an UPDATE expected to touch one row; zero rows reads as pgx.ErrNoRows.
func execOne(ctx context.Context, db persistence.DBTX, query string, args ...any) error {
	cmd, err := db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
