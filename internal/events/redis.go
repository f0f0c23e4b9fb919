package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher publishes notifications on a Redis channel named after the topic.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish encodes n as JSON and publishes it on n.Topic().
func (p *RedisPublisher) Publish(ctx context.Context, n Notification) error {
	if p == nil || p.client == nil {
		return errors.New("redis publisher not configured")
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, n.Topic(), data).Err()
}

// RedisRelay feeds notifications received from Redis into the local dispatcher.
type RedisRelay struct {
	client     *redis.Client
	pattern    string
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewRedisRelay creates a relay listening on pattern, e.g. "tenant/*".
func NewRedisRelay(client *redis.Client, pattern string, dispatcher Dispatcher, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{client: client, pattern: pattern, dispatcher: dispatcher, logger: logger}
}

// Run subscribes and blocks until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, r.pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info("redis notification relay subscribed", zap.String("pattern", r.pattern))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				r.logger.Warn("discarding malformed notification", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			_ = r.dispatcher.Publish(ctx, n)
		}
	}
}
