package events

import (
	"context"
	"fmt"

	"github.com/spec-kit/fieldops/internal/domain"
)

// Notification announces a committed activity event. Subscribers fetch the payload separately.
type Notification struct {
	TenantID        string            `json:"tenantId"`
	EntityType      domain.EntityType `json:"entityType"`
	EntityID        string            `json:"entityId"`
	ActivityEventID string            `json:"activityEventId"`
}

// Topic is the address subscribers use for one tenant entity.
func (n Notification) Topic() string {
	return Topic(n.TenantID, n.EntityType, n.EntityID)
}

// Subject is the NATS subject for the notification.
func (n Notification) Subject() string {
	return fmt.Sprintf("tenant.%s.activity.%s.%s", n.TenantID, n.EntityType, n.EntityID)
}

// Topic builds tenant/{tenantId}/activity/{entityType}/{entityId}.
func Topic(tenantID string, entityType domain.EntityType, entityID string) string {
	return fmt.Sprintf("tenant/%s/activity/%s/%s", tenantID, entityType, entityID)
}

// Publisher delivers notifications to a transport.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}
