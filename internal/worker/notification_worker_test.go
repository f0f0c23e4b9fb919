package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/events"
)

type recordingBroadcaster struct {
	mu  sync.Mutex
	ids []string
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, n events.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = append(b.ids, n.ActivityEventID)
	return nil
}

func (b *recordingBroadcaster) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.ids...)
}

func note(id string) events.Notification {
	return events.Notification{TenantID: "t1", EntityType: domain.EntityJob, EntityID: "j1", ActivityEventID: id}
}

func TestRelayDeliversInEnqueueOrder(t *testing.T) {
	b := &recordingBroadcaster{}
	relay := NewNotificationRelay(b, 8, nil, nil)

	for _, id := range []string{"1", "2", "3"} {
		if !relay.Enqueue(note(id)) {
			t.Fatalf("enqueue %s rejected", id)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = relay.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(b.snapshot()) < 3 {
		select {
		case <-deadline:
			t.Fatalf("timed out, delivered %v", b.snapshot())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-relay.Done()

	got := b.snapshot()
	if got[0] != "1" || got[1] != "2" || got[2] != "3" {
		t.Fatalf("delivery order = %v", got)
	}
	if relay.Enqueue(note("4")) {
		t.Fatal("enqueue after stop should be rejected")
	}
}

func TestRelayRejectsWhenFull(t *testing.T) {
	relay := NewNotificationRelay(&recordingBroadcaster{}, 1, nil, nil)
	if !relay.Enqueue(note("1")) {
		t.Fatal("first enqueue rejected")
	}
	if relay.Enqueue(note("2")) {
		t.Fatal("second enqueue should overflow")
	}
}

func TestRelayDrainsOnShutdown(t *testing.T) {
	b := &recordingBroadcaster{}
	relay := NewNotificationRelay(b, 4, nil, nil)
	relay.Enqueue(note("1"))
	relay.Enqueue(note("2"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := relay.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := b.snapshot(); len(got) != 2 {
		t.Fatalf("drained %v, want 2 notifications", got)
	}
}
