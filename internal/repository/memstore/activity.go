package memstore

import (
	"context"
	"maps"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/fieldops/internal/domain"
)

// Activity implements repository.ActivityRepository.
type Activity struct{ s *Store }

func (r *Activity) Create(ctx context.Context, e *domain.ActivityEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = newID()
	e.CreatedAt = r.s.now()
	stored := *e
	stored.Metadata = maps.Clone(e.Metadata)
	journalActivity(ctx, r.s, stored.ID)
	r.s.activity = append(r.s.activity, stored)
	return nil
}

func (r *Activity) GetByID(_ context.Context, tenantID, id string) (*domain.ActivityEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.activity {
		if e.ID == id && e.TenantID == tenantID {
			return &e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// ListForEntity returns newest first; ties keep reverse insertion order.
func (r *Activity) ListForEntity(_ context.Context, tenantID string, entityType domain.EntityType, entityID string, limit, offset int) ([]domain.ActivityEvent, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []domain.ActivityEvent
	for i := len(r.s.activity) - 1; i >= 0; i-- {
		e := r.s.activity[i]
		if e.TenantID == tenantID && e.EntityType == entityType && e.EntityID == entityID && e.ArchivedAt == nil {
			matched = append(matched, e)
		}
	}
	return page(matched, limit, offset), len(matched), nil
}

func (r *Activity) Archive(ctx context.Context, tenantID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, e := range r.s.activity {
		if e.ID == id && e.TenantID == tenantID && e.ArchivedAt == nil {
			at := r.s.now()
			journalActivity(ctx, r.s, id)
			r.s.activity[i].ArchivedAt = &at
			return nil
		}
	}
	return pgx.ErrNoRows
}

// All returns every stored event in insertion order.
func (r *Activity) All() []domain.ActivityEvent {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.ActivityEvent(nil), r.s.activity...)
}
