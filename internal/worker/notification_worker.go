package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/fieldops/internal/events"
	"github.com/spec-kit/fieldops/internal/observability"
)

// Broadcaster delivers a notification to subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, n events.Notification) error
}

// NotificationRelay drains committed notifications in enqueue order on a single goroutine.
type NotificationRelay struct {
	queue       chan events.Notification
	broadcaster Broadcaster
	metrics     *observability.Metrics
	logger      *zap.Logger

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

// NewNotificationRelay creates a relay with a bounded queue.
func NewNotificationRelay(broadcaster Broadcaster, size int, metrics *observability.Metrics, logger *zap.Logger) *NotificationRelay {
	if size <= 0 {
		size = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationRelay{
		queue:       make(chan events.Notification, size),
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Enqueue schedules n for delivery without blocking the committing request.
// It reports false when the relay is stopped or the queue is full.
func (r *NotificationRelay) Enqueue(n events.Notification) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		r.metrics.NotificationDropped("queue")
		return false
	}
	select {
	case r.queue <- n:
		return true
	default:
		r.metrics.NotificationDropped("queue")
		r.logger.Warn("notification queue full", zap.String("topic", n.Topic()))
		return false
	}
}

// Run delivers queued notifications until ctx is cancelled, then drains what is left.
func (r *NotificationRelay) Run(ctx context.Context) error {
	defer close(r.done)
	r.logger.Info("notification relay started", zap.Int("capacity", cap(r.queue)))
	for {
		select {
		case <-ctx.Done():
			r.stop()
			r.drain(context.WithoutCancel(ctx))
			r.logger.Info("notification relay stopped")
			return nil
		case n := <-r.queue:
			r.deliver(ctx, n)
		}
	}
}

// Done is closed once Run has returned.
func (r *NotificationRelay) Done() <-chan struct{} {
	return r.done
}

func (r *NotificationRelay) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
}

func (r *NotificationRelay) drain(ctx context.Context) {
	for {
		select {
		case n := <-r.queue:
			r.deliver(ctx, n)
		default:
			return
		}
	}
}

func (r *NotificationRelay) deliver(ctx context.Context, n events.Notification) {
	if err := r.broadcaster.Broadcast(ctx, n); err != nil {
		r.logger.Warn("broadcast failed",
			zap.String("topic", n.Topic()),
			zap.String("activity_event_id", n.ActivityEventID),
			zap.Error(err))
	}
}
