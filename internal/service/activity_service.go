package service

import (
	"context"
	"strings"

	"github.com/spec-kit/fieldops/internal/auth"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/events"
	"github.com/spec-kit/fieldops/internal/persistence"
	"github.com/spec-kit/fieldops/internal/repository"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// NotificationQueue accepts notifications for asynchronous delivery.
type NotificationQueue interface {
	Enqueue(n events.Notification) bool
}

// ActivityService appends audit events and schedules their notification after commit.
type ActivityService struct {
	activity repository.ActivityRepository
	guard    *auth.Guard
	queue    NotificationQueue
}

// ActivityDependencies bundles collaborators for the activity service.
type ActivityDependencies struct {
	ActivityRepo repository.ActivityRepository
	Guard        *auth.Guard
	Queue        NotificationQueue
}

// RecordInput describes one audit event.
type RecordInput struct {
	TenantID   string
	ActorID    *string
	EntityType domain.EntityType
	EntityID   string
	EventType  domain.ActivityType
	Message    string
	Metadata   map[string]any
}

// NewActivityService constructs the service.
func NewActivityService(deps ActivityDependencies) *ActivityService {
	return &ActivityService{
		activity: deps.ActivityRepo,
		guard:    deps.Guard,
		queue:    deps.Queue,
	}
}

// Record persists the event in the caller's unit of work. Its notification is queued
// only once that unit of work commits and is dropped if it rolls back.
func (s *ActivityService) Record(ctx context.Context, input RecordInput) (*domain.ActivityEvent, error) {
	if strings.TrimSpace(input.TenantID) == "" || strings.TrimSpace(input.EntityID) == "" {
		return nil, apperrors.NewInvalidInput("tenant and entity are required", nil)
	}
	if !input.EntityType.Valid() {
		return nil, apperrors.NewInvalidInput("unknown entity type", map[string]any{"entityType": input.EntityType})
	}
	if strings.TrimSpace(string(input.EventType)) == "" {
		return nil, apperrors.NewInvalidInput("event type is required", nil)
	}

	event := &domain.ActivityEvent{
		TenantID:   input.TenantID,
		ActorID:    input.ActorID,
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		EventType:  input.EventType,
		Message:    input.Message,
		Metadata:   input.Metadata,
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if err := s.activity.Create(ctx, event); err != nil {
		return nil, err
	}

	if s.queue != nil {
		n := events.Notification{
			TenantID:        event.TenantID,
			EntityType:      event.EntityType,
			EntityID:        event.EntityID,
			ActivityEventID: event.ID,
		}
		persistence.AfterCommit(ctx, func(context.Context) {
			s.queue.Enqueue(n)
		})
	}
	return event, nil
}

// List returns the entity's unarchived events, newest first.
func (s *ActivityService) List(ctx context.Context, tenantID, userID string, entityType domain.EntityType, entityID string, req PageRequest) (page *Page[domain.ActivityEvent], err error) {
	ctx, span := startSpan(ctx, "ActivityService.List", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.AllRoles...); err != nil {
		return nil, err
	}
	if !entityType.Valid() {
		return nil, apperrors.NewInvalidInput("unknown entity type", map[string]any{"entityType": entityType})
	}

	req = req.normalize()
	items, total, err := s.activity.ListForEntity(ctx, tenantID, entityType, entityID, req.Limit, req.Offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if items == nil {
		items = []domain.ActivityEvent{}
	}
	return &Page[domain.ActivityEvent]{Items: items, Total: total, Limit: req.Limit, Offset: req.Offset}, nil
}

// Archive hides an event from listings. The row itself is never modified otherwise.
func (s *ActivityService) Archive(ctx context.Context, tenantID, userID, eventID string) (err error) {
	ctx, span := startSpan(ctx, "ActivityService.Archive", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.ManagerRoles...); err != nil {
		return err
	}
	if err := s.activity.Archive(ctx, tenantID, eventID); err != nil {
		return apperrors.NotFoundOr(err, "activity event", map[string]any{"id": eventID})
	}
	return nil
}
