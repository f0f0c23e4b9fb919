package events

import (
	"context"
	"sync"
)

// Handler receives notifications for a subscribed topic.
type Handler func(context.Context, Notification)

// Dispatcher interface allows notification publication/subscription.
type Dispatcher interface {
	Publisher
	Subscribe(topic string, handler Handler) (unsubscribe func())
	Subscribers(topic string) int
}

type subscriber struct {
	id      uint64
	handler Handler
}

// inMemoryDispatcher is a synchronous topic-keyed hub.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	publishMu sync.Mutex
	nextID    uint64
	listeners map[string][]subscriber
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[string][]subscriber),
	}
}

// Publish invokes every handler subscribed to the notification topic once, in subscription order.
// Concurrent publishers are serialized so each subscriber observes publish order.
func (d *inMemoryDispatcher) Publish(ctx context.Context, n Notification) error {
	d.publishMu.Lock()
	defer d.publishMu.Unlock()

	d.mu.RLock()
	subs := append([]subscriber(nil), d.listeners[n.Topic()]...)
	d.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(ctx, n)
	}
	return nil
}

// Subscribe registers a handler for topic and returns a func that removes it.
func (d *inMemoryDispatcher) Subscribe(topic string, handler Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.listeners[topic] = append(d.listeners[topic], subscriber{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(topic, id) })
	}
}

// Subscribers reports how many handlers listen on topic.
func (d *inMemoryDispatcher) Subscribers(topic string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[topic])
}

func (d *inMemoryDispatcher) remove(topic string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.listeners[topic]
	for i, sub := range subs {
		if sub.id == id {
			d.listeners[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(d.listeners[topic]) == 0 {
		delete(d.listeners, topic)
	}
}
