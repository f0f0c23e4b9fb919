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

// InvoiceFilter captures invoice search parameters.
type InvoiceFilter struct {
	TenantID  string
	JobID     *string
	Statuses  []domain.InvoiceStatus
	DueBefore *time.Time
	Limit     int
	Offset    int
}

// InvoiceRepository persists invoices and their frozen items.
type InvoiceRepository interface {
	NextNumber(ctx context.Context, tenantID string) (int, error)
	Create(ctx context.Context, inv *domain.Invoice) error
	// UpdateStatus writes inv's status and timestamps only if the stored status is still from.
	UpdateStatus(ctx context.Context, inv *domain.Invoice, from domain.InvoiceStatus) (bool, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]domain.Invoice, error)
}

type invoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository returns a Postgres-backed implementation.
func NewInvoiceRepository(pool *pgxpool.Pool) InvoiceRepository {
	return &invoiceRepository{pool: pool}
}

const invoiceColumns = `id, tenant_id, job_id, estimate_id, number, status, notes, subtotal, total,
               issued_at, sent_at, due_at, paid_at, created_by, created_at, updated_at`

func (r *invoiceRepository) NextNumber(ctx context.Context, tenantID string) (int, error) {
	const query = `
        SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM 5) AS INTEGER)), 0) + 1
        FROM invoices WHERE tenant_id=$1`
	var next int
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, query, tenantID).Scan(&next)
	return next, err
}

func (r *invoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	const query = `
        INSERT INTO invoices (tenant_id, job_id, estimate_id, number, status, notes, subtotal, total,
            issued_at, due_at, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	db := persistence.Conn(ctx, r.pool)
	if err := db.QueryRow(ctx, query,
		inv.TenantID,
		inv.JobID,
		inv.EstimateID,
		inv.Number,
		inv.Status,
		inv.Notes,
		inv.Subtotal,
		inv.Total,
		inv.IssuedAt,
		inv.DueAt,
		inv.CreatedBy,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return err
	}
	if len(inv.Items) == 0 {
		return nil
	}

	const itemQuery = `
        INSERT INTO invoice_items (invoice_id, name, quantity, unit_price, line_total, sort_order)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	batch := &pgx.Batch{}
	for _, item := range inv.Items {
		batch.Queue(itemQuery, inv.ID, item.Name, item.Quantity, item.UnitPrice, item.LineTotal, item.SortOrder)
	}
	results := db.SendBatch(ctx, batch)
	defer results.Close()
	for i := range inv.Items {
		if err := results.QueryRow().Scan(&inv.Items[i].ID); err != nil {
			return err
		}
		inv.Items[i].InvoiceID = inv.ID
	}
	return results.Close()
}

func (r *invoiceRepository) UpdateStatus(ctx context.Context, inv *domain.Invoice, from domain.InvoiceStatus) (bool, error) {
	const query = `
        UPDATE invoices SET status=$1, sent_at=$2, paid_at=$3, updated_at=NOW()
        WHERE tenant_id=$4 AND id=$5 AND status=$6`
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, query,
		inv.Status,
		inv.SentAt,
		inv.PaidAt,
		inv.TenantID,
		inv.ID,
		from,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Invoice, error) {
	db := persistence.Conn(ctx, r.pool)
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id=$1 AND id=$2`
	rows, err := db.Query(ctx, query, tenantID, id)
	if err != nil {
		return nil, err
	}
	invoices, err := scanInvoices(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, pgx.ErrNoRows
	}
	inv := &invoices[0]

	const itemsQuery = `
        SELECT id, invoice_id, name, quantity, unit_price, line_total, sort_order
        FROM invoice_items WHERE invoice_id=$1 ORDER BY sort_order ASC`
	itemRows, err := db.Query(ctx, itemsQuery, inv.ID)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item domain.InvoiceItem
		if err := itemRows.Scan(
			&item.ID,
			&item.InvoiceID,
			&item.Name,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineTotal,
			&item.SortOrder,
		); err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, item)
	}
	return inv, itemRows.Err()
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceFilter) ([]domain.Invoice, error) {
	where := newWhere()
	where.eq("tenant_id", filter.TenantID)
	if filter.JobID != nil {
		where.eq("job_id", *filter.JobID)
	}
	in(where, "status", filter.Statuses)
	if filter.DueBefore != nil {
		where.cmp("due_at", "<", *filter.DueBefore)
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY issued_at DESC LIMIT %d OFFSET %d`,
		invoiceColumns, where.sql(), limit, offset)

	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoices(rows)
}

func scanInvoices(rows pgx.Rows) ([]domain.Invoice, error) {
	var result []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(
			&inv.ID,
			&inv.TenantID,
			&inv.JobID,
			&inv.EstimateID,
			&inv.Number,
			&inv.Status,
			&inv.Notes,
			&inv.Subtotal,
			&inv.Total,
			&inv.IssuedAt,
			&inv.SentAt,
			&inv.DueAt,
			&inv.PaidAt,
			&inv.CreatedBy,
			&inv.CreatedAt,
			&inv.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}
