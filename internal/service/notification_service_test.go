package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sony/gobreaker"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/events"
)

type flakyPublisher struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *flakyPublisher) Publish(context.Context, events.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func TestBroadcastDeliversToLocalSubscribers(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	note := events.Notification{TenantID: "t1", EntityType: domain.EntityJob, EntityID: "j1", ActivityEventID: "a1"}

	var got []events.Notification
	unsubscribe := dispatcher.Subscribe(note.Topic(), func(_ context.Context, n events.Notification) {
		got = append(got, n)
	})
	defer unsubscribe()
	other := 0
	dispatcher.Subscribe(events.Topic("t2", domain.EntityJob, "j1"), func(context.Context, events.Notification) { other++ })

	svc := NewNotificationService(NotificationDependencies{Primary: dispatcher, Transport: "local"})
	if err := svc.Broadcast(context.Background(), note); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(got) != 1 || got[0] != note {
		t.Fatalf("expected exactly one delivery, got %+v", got)
	}
	if other != 0 {
		t.Fatal("notification leaked to another tenant")
	}
}

func TestBroadcastExporterFailureDoesNotFailPrimary(t *testing.T) {
	primary := &flakyPublisher{}
	exporter := &flakyPublisher{err: errors.New("nats down")}
	svc := NewNotificationService(NotificationDependencies{
		Primary:   primary,
		Transport: "local",
		Exporters: map[string]events.Publisher{"nats": exporter},
	})
	note := events.Notification{TenantID: "t1", EntityType: domain.EntityJob, EntityID: "j1", ActivityEventID: "a1"}

	for i := 0; i < 10; i++ {
		if err := svc.Broadcast(context.Background(), note); err != nil {
			t.Fatalf("Broadcast %d: %v", i, err)
		}
	}
	if primary.calls != 10 {
		t.Fatalf("primary calls = %d, want 10", primary.calls)
	}
	// the breaker opens after 5 requests at a 60% failure ratio
	if exporter.calls != 5 {
		t.Fatalf("exporter calls = %d, want 5", exporter.calls)
	}
}

func TestBroadcastExternalPrimaryTripsBreaker(t *testing.T) {
	primary := &flakyPublisher{err: errors.New("redis down")}
	svc := NewNotificationService(NotificationDependencies{Primary: primary, Transport: "redis", External: true})
	note := events.Notification{TenantID: "t1", EntityType: domain.EntityJob, EntityID: "j1", ActivityEventID: "a1"}

	var last error
	for i := 0; i < 6; i++ {
		last = svc.Broadcast(context.Background(), note)
	}
	if !errors.Is(last, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", last)
	}
}
