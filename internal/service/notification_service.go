package service

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/fieldops/internal/events"
	"github.com/spec-kit/fieldops/internal/observability"
)

// NotificationService fans committed activity out to subscribers.
type NotificationService struct {
	primary   events.Publisher
	transport string
	breaker   *gobreaker.CircuitBreaker
	exporters []exporter
	metrics   *observability.Metrics
	logger    *zap.Logger
}

type exporter struct {
	name      string
	publisher events.Publisher
	breaker   *gobreaker.CircuitBreaker
}

// NotificationDependencies configures delivery. Primary is either the local dispatcher
// or a Redis publisher whose relay feeds every instance's dispatcher.
type NotificationDependencies struct {
	Primary   events.Publisher
	Transport string
	External  bool
	Exporters map[string]events.Publisher
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &NotificationService{
		primary:   deps.Primary,
		transport: deps.Transport,
		metrics:   deps.Metrics,
		logger:    logger,
	}
	if deps.External {
		n.breaker = newCircuitBreaker("notify-" + deps.Transport)
	}
	for name, pub := range deps.Exporters {
		if pub == nil {
			continue
		}
		n.exporters = append(n.exporters, exporter{name: name, publisher: pub, breaker: newCircuitBreaker("notify-" + name)})
	}
	return n
}

// Broadcast delivers n to the primary transport and then to any exporters.
// Exporter failures are logged and counted but do not fail the broadcast.
func (n *NotificationService) Broadcast(ctx context.Context, note events.Notification) error {
	if err := n.publish(ctx, n.transport, n.primary, n.breaker, note); err != nil {
		return err
	}
	for _, exp := range n.exporters {
		_ = n.publish(ctx, exp.name, exp.publisher, exp.breaker, note)
	}
	return nil
}

func (n *NotificationService) publish(ctx context.Context, name string, pub events.Publisher, cb *gobreaker.CircuitBreaker, note events.Notification) error {
	if pub == nil {
		return nil
	}
	var err error
	if cb != nil {
		_, err = cb.Execute(func() (interface{}, error) {
			return nil, pub.Publish(ctx, note)
		})
	} else {
		err = pub.Publish(ctx, note)
	}
	if err != nil {
		n.metrics.NotificationDropped(name)
		n.logger.Warn("notification delivery failed",
			zap.String("transport", name),
			zap.String("topic", note.Topic()),
			zap.String("activity_event_id", note.ActivityEventID),
			zap.Error(err))
		return err
	}
	n.metrics.NotificationPublished(name)
	return nil
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	})
}
