package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/repository"
)

// Customers implements repository.CustomerRepository.
type Customers struct{ s *Store }

func (r *Customers) Create(ctx context.Context, c *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = newID()
	c.CreatedAt = r.s.now()
	c.UpdatedAt = c.CreatedAt
	journal(ctx, r.s, r.s.customers, c.ID)
	r.s.customers[c.ID] = *c
	return nil
}

func (r *Customers) GetByID(_ context.Context, tenantID, id string) (*domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok || c.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (r *Customers) List(_ context.Context, f repository.CustomerFilter) ([]domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(f.Search))
	var result []domain.Customer
	for _, c := range r.s.customers {
		if c.TenantID != f.TenantID || (!f.IncludeArchived && c.ArchivedAt != nil) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(c.Name), term) {
			continue
		}
		result = append(result, c)
	}
	sortByCreatedDesc(result, func(c domain.Customer) time.Time { return c.CreatedAt })
	return page(result, f.Limit, f.Offset), nil
}

// Leads implements repository.LeadRepository.
type Leads struct{ s *Store }

func (r *Leads) Create(ctx context.Context, l *domain.Lead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.ID = newID()
	l.CreatedAt = r.s.now()
	l.UpdatedAt = l.CreatedAt
	journal(ctx, r.s, r.s.leads, l.ID)
	r.s.leads[l.ID] = *l
	return nil
}

func (r *Leads) Update(ctx context.Context, l *domain.Lead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.leads[l.ID]
	if !ok || existing.TenantID != l.TenantID {
		return pgx.ErrNoRows
	}
	l.UpdatedAt = r.s.now()
	journal(ctx, r.s, r.s.leads, l.ID)
	r.s.leads[l.ID] = *l
	return nil
}

func (r *Leads) GetByID(_ context.Context, tenantID, id string) (*domain.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[id]
	if !ok || l.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &l, nil
}

func (r *Leads) List(_ context.Context, f repository.LeadFilter) ([]domain.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(f.Search))
	var result []domain.Lead
	for _, l := range r.s.leads {
		if l.TenantID != f.TenantID || l.ArchivedAt != nil || !containsStatus(f.Statuses, l.Status) {
			continue
		}
		if f.AssigneeID != nil && (l.AssigneeID == nil || *l.AssigneeID != *f.AssigneeID) {
			continue
		}
		if f.CustomerID != nil && (l.CustomerID == nil || *l.CustomerID != *f.CustomerID) {
			continue
		}
		if f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(l.Title+" "+l.Notes), term) {
			continue
		}
		result = append(result, l)
	}
	sortByCreatedDesc(result, func(l domain.Lead) time.Time { return l.CreatedAt })
	return page(result, f.Limit, f.Offset), nil
}

// Jobs implements repository.JobRepository.
type Jobs struct{ s *Store }

func (r *Jobs) Create(ctx context.Context, j *domain.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if j.LeadID != nil {
		for _, existing := range r.s.jobs {
			if existing.LeadID != nil && *existing.LeadID == *j.LeadID {
				return uniqueViolation("jobs_lead_id_key")
			}
		}
	}
	j.ID = newID()
	j.CreatedAt = r.s.now()
	j.UpdatedAt = j.CreatedAt
	journal(ctx, r.s, r.s.jobs, j.ID)
	r.s.jobs[j.ID] = *j
	return nil
}

func (r *Jobs) Update(ctx context.Context, j *domain.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.jobs[j.ID]
	if !ok || existing.TenantID != j.TenantID {
		return pgx.ErrNoRows
	}
	j.UpdatedAt = r.s.now()
	journal(ctx, r.s, r.s.jobs, j.ID)
	r.s.jobs[j.ID] = *j
	return nil
}

func (r *Jobs) GetByID(_ context.Context, tenantID, id string) (*domain.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok || j.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &j, nil
}

func (r *Jobs) List(_ context.Context, f repository.JobFilter) ([]domain.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(f.Search))
	var result []domain.Job
	for _, j := range r.s.jobs {
		if j.TenantID != f.TenantID || j.ArchivedAt != nil || !containsStatus(f.Statuses, j.Status) {
			continue
		}
		if f.AssigneeID != nil && (j.AssigneeID == nil || *j.AssigneeID != *f.AssigneeID) {
			continue
		}
		if f.CustomerID != nil && j.CustomerID != *f.CustomerID {
			continue
		}
		if f.ScheduledFrom != nil && (j.ScheduledFor == nil || j.ScheduledFor.Before(*f.ScheduledFrom)) {
			continue
		}
		if f.ScheduledTo != nil && (j.ScheduledFor == nil || j.ScheduledFor.After(*f.ScheduledTo)) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(j.Title+" "+j.Description), term) {
			continue
		}
		result = append(result, j)
	}
	sortByCreatedDesc(result, func(j domain.Job) time.Time { return j.CreatedAt })
	return page(result, f.Limit, f.Offset), nil
}
