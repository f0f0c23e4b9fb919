package memstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/repository"
)

// Estimates implements repository.EstimateRepository.
type Estimates struct{ s *Store }

func cloneEstimate(e domain.Estimate) domain.Estimate {
	e.Items = append([]domain.EstimateItem(nil), e.Items...)
	return e
}

func (r *Estimates) NextNumber(_ context.Context, tenantID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	highest := 0
	for _, e := range r.s.estimates {
		if e.TenantID == tenantID {
			highest = max(highest, numberSuffix(e.Number))
		}
	}
	return highest + 1, nil
}

func (r *Estimates) Create(ctx context.Context, e *domain.Estimate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.estimates {
		if existing.TenantID == e.TenantID && existing.Number == e.Number {
			return uniqueViolation("estimates_tenant_id_number_key")
		}
	}
	e.ID = newID()
	e.CreatedAt = r.s.now()
	e.UpdatedAt = e.CreatedAt
	for i := range e.Items {
		e.Items[i].ID = newID()
		e.Items[i].EstimateID = e.ID
	}
	journal(ctx, r.s, r.s.estimates, e.ID)
	r.s.estimates[e.ID] = cloneEstimate(*e)
	return nil
}

func (r *Estimates) Update(ctx context.Context, e *domain.Estimate, from domain.EstimateStatus) (bool, error) {
	return r.apply(ctx, e.TenantID, e.ID, func(existing *domain.Estimate) (bool, error) {
		if existing.Status != from {
			return false, nil
		}
		existing.Status = e.Status
		existing.Notes = e.Notes
		existing.Subtotal = e.Subtotal
		existing.Total = e.Total
		return true, nil
	})
}

func (r *Estimates) SharePublic(ctx context.Context, e *domain.Estimate) error {
	return r.applyOrMissing(ctx, e.TenantID, e.ID, func(existing *domain.Estimate) error {
		for id, other := range r.s.estimates {
			if id != e.ID && other.PublicToken != nil && e.PublicToken != nil && *other.PublicToken == *e.PublicToken {
				return uniqueViolation("estimates_public_token_key")
			}
		}
		existing.PublicToken = e.PublicToken
		existing.PublicEnabled = true
		existing.PublicExpiresAt = e.PublicExpiresAt
		existing.LastSharedAt = e.LastSharedAt
		return nil
	})
}

func (r *Estimates) RevokePublic(ctx context.Context, tenantID, id string) error {
	return r.applyOrMissing(ctx, tenantID, id, func(existing *domain.Estimate) error {
		existing.PublicToken = nil
		existing.PublicEnabled = false
		existing.PublicExpiresAt = nil
		return nil
	})
}

func (r *Estimates) Archive(ctx context.Context, tenantID, id string, at time.Time) error {
	return r.applyOrMissing(ctx, tenantID, id, func(existing *domain.Estimate) error {
		existing.ArchivedAt = &at
		existing.PublicEnabled = false
		return nil
	})
}

func (r *Estimates) applyOrMissing(ctx context.Context, tenantID, id string, fn func(*domain.Estimate) error) error {
	applied, err := r.apply(ctx, tenantID, id, func(e *domain.Estimate) (bool, error) {
		return true, fn(e)
	})
	if err != nil {
		return err
	}
	if !applied {
		return pgx.ErrNoRows
	}
	return nil
}

// apply runs fn under the store lock on a live, unarchived estimate and keeps the result
// when fn reports a change.
func (r *Estimates) apply(ctx context.Context, tenantID, id string, fn func(*domain.Estimate) (bool, error)) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.estimates[id]
	if !ok || existing.TenantID != tenantID || existing.ArchivedAt != nil {
		return false, nil
	}
	existing = cloneEstimate(existing)
	changed, err := fn(&existing)
	if err != nil || !changed {
		return false, err
	}
	existing.UpdatedAt = r.s.now()
	journal(ctx, r.s, r.s.estimates, id)
	r.s.estimates[id] = existing
	return true, nil
}

func (r *Estimates) ReplaceItems(ctx context.Context, e *domain.Estimate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.estimates[e.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	for i := range e.Items {
		e.Items[i].ID = newID()
		e.Items[i].EstimateID = e.ID
	}
	existing.Items = append([]domain.EstimateItem(nil), e.Items...)
	journal(ctx, r.s, r.s.estimates, e.ID)
	r.s.estimates[e.ID] = existing
	return nil
}

func (r *Estimates) Decide(ctx context.Context, tenantID, id string, d repository.Decision) (bool, error) {
	return r.apply(ctx, tenantID, id, func(existing *domain.Estimate) (bool, error) {
		if existing.Status.Decided() || existing.DecidedAt != nil {
			return false, nil
		}
		existing.Status = d.Status
		decidedAt := d.DecidedAt
		existing.DecidedAt = &decidedAt
		name := d.SignerName
		existing.SignerName = &name
		existing.SignerEmail = d.SignerEmail
		return true, nil
	})
}

func (r *Estimates) GetByID(_ context.Context, tenantID, id string) (*domain.Estimate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.estimates[id]
	if !ok || e.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	e = cloneEstimate(e)
	return &e, nil
}

func (r *Estimates) GetByToken(_ context.Context, token string) (*domain.Estimate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.estimates {
		if e.PublicToken != nil && *e.PublicToken == token {
			e = cloneEstimate(e)
			return &e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *Estimates) List(_ context.Context, f repository.EstimateFilter) ([]domain.Estimate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.Estimate
	for _, e := range r.s.estimates {
		if e.TenantID != f.TenantID || e.ArchivedAt != nil || !containsStatus(f.Statuses, e.Status) {
			continue
		}
		if f.JobID != nil && e.JobID != *f.JobID {
			continue
		}
		if f.CreatedFrom != nil && e.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && e.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		result = append(result, cloneEstimate(e))
	}
	sortByCreatedDesc(result, func(e domain.Estimate) time.Time { return e.CreatedAt })
	return page(result, f.Limit, f.Offset), nil
}

// Invoices implements repository.InvoiceRepository.
type Invoices struct{ s *Store }

func cloneInvoice(inv domain.Invoice) domain.Invoice {
	inv.Items = append([]domain.InvoiceItem(nil), inv.Items...)
	return inv
}

func (r *Invoices) NextNumber(_ context.Context, tenantID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	highest := 0
	for _, inv := range r.s.invoices {
		if inv.TenantID == tenantID {
			highest = max(highest, numberSuffix(inv.Number))
		}
	}
	return highest + 1, nil
}

func (r *Invoices) Create(ctx context.Context, inv *domain.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.invoices {
		if existing.TenantID == inv.TenantID && existing.Number == inv.Number {
			return uniqueViolation("invoices_tenant_id_number_key")
		}
	}
	inv.ID = newID()
	inv.CreatedAt = r.s.now()
	inv.UpdatedAt = inv.CreatedAt
	for i := range inv.Items {
		inv.Items[i].ID = newID()
		inv.Items[i].InvoiceID = inv.ID
	}
	journal(ctx, r.s, r.s.invoices, inv.ID)
	r.s.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}

func (r *Invoices) UpdateStatus(ctx context.Context, inv *domain.Invoice, from domain.InvoiceStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.invoices[inv.ID]
	if !ok || existing.TenantID != inv.TenantID || existing.Status != from {
		return false, nil
	}
	existing.Status = inv.Status
	existing.SentAt = inv.SentAt
	existing.PaidAt = inv.PaidAt
	existing.UpdatedAt = r.s.now()
	inv.UpdatedAt = existing.UpdatedAt
	journal(ctx, r.s, r.s.invoices, inv.ID)
	r.s.invoices[inv.ID] = existing
	return true, nil
}

func (r *Invoices) GetByID(_ context.Context, tenantID, id string) (*domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	inv = cloneInvoice(inv)
	return &inv, nil
}

func (r *Invoices) List(_ context.Context, f repository.InvoiceFilter) ([]domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.Invoice
	for _, inv := range r.s.invoices {
		if inv.TenantID != f.TenantID || !containsStatus(f.Statuses, inv.Status) {
			continue
		}
		if f.JobID != nil && inv.JobID != *f.JobID {
			continue
		}
		if f.DueBefore != nil && (inv.DueAt == nil || !inv.DueAt.Before(*f.DueBefore)) {
			continue
		}
		result = append(result, cloneInvoice(inv))
	}
	sortByCreatedDesc(result, func(inv domain.Invoice) time.Time { return inv.IssuedAt })
	return page(result, f.Limit, f.Offset), nil
}
