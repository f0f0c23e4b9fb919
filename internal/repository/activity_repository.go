package repository

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
)

// ActivityRepository appends and reads the audit log.
type ActivityRepository interface {
	Create(ctx context.Context, event *domain.ActivityEvent) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.ActivityEvent, error)
	// ListForEntity returns unarchived events newest first together with the unpaged total.
	ListForEntity(ctx context.Context, tenantID string, entityType domain.EntityType, entityID string, limit, offset int) ([]domain.ActivityEvent, int, error)
	Archive(ctx context.Context, tenantID, id string) error
}

type activityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository returns a Postgres-backed implementation.
func NewActivityRepository(pool *pgxpool.Pool) ActivityRepository {
	return &activityRepository{pool: pool}
}

func (r *activityRepository) Create(ctx context.Context, event *domain.ActivityEvent) error {
	const query = `
        INSERT INTO activity_events (tenant_id, actor_user_id, entity_type, entity_id, event_type, message, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return persistence.Conn(ctx, r.pool).QueryRow(ctx, query,
		event.TenantID,
		event.ActorID,
		event.EntityType,
		event.EntityID,
		event.EventType,
		event.Message,
		metadata,
	).Scan(&event.ID, &event.CreatedAt)
}

func (r *activityRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.ActivityEvent, error) {
	const query = `
        SELECT id, tenant_id, actor_user_id, entity_type, entity_id, event_type, message, metadata, created_at, archived_at
        FROM activity_events WHERE tenant_id=$1 AND id=$2`
	var event domain.ActivityEvent
	if err := pgxscan.Get(ctx, persistence.Conn(ctx, r.pool), &event, query, tenantID, id); err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *activityRepository) ListForEntity(ctx context.Context, tenantID string, entityType domain.EntityType, entityID string, limit, offset int) ([]domain.ActivityEvent, int, error) {
	const countQuery = `
        SELECT COUNT(*) FROM activity_events
        WHERE tenant_id=$1 AND entity_type=$2 AND entity_id=$3 AND archived_at IS NULL`
	const listQuery = `
        SELECT id, tenant_id, actor_user_id, entity_type, entity_id, event_type, message, metadata, created_at, archived_at
        FROM activity_events
        WHERE tenant_id=$1 AND entity_type=$2 AND entity_id=$3 AND archived_at IS NULL
        ORDER BY created_at DESC, id DESC
        LIMIT $4 OFFSET $5`

	db := persistence.Conn(ctx, r.pool)
	var total int
	if err := db.QueryRow(ctx, countQuery, tenantID, entityType, entityID).Scan(&total); err != nil {
		return nil, 0, err
	}

	var events []domain.ActivityEvent
	if err := pgxscan.Select(ctx, db, &events, listQuery, tenantID, entityType, entityID, limit, offset); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *activityRepository) Archive(ctx context.Context, tenantID, id string) error {
	const query = `
        UPDATE activity_events SET archived_at=NOW()
        WHERE tenant_id=$1 AND id=$2 AND archived_at IS NULL`
	return execOne(ctx, persistence.Conn(ctx, r.pool), query, tenantID, id)
}
