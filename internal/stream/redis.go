package stream

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const channelPrefix = "conv."

// RedisNotifier fans invalidations out over Redis pub/sub so that writes on
// one instance invalidate subscribers on every instance. It mirrors the
// LocalNotifier contract: coalescing, payload-free signals.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier pings the server and returns a notifier bound to it.
func NewRedisNotifier(ctx context.Context, addr string) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisNotifier{client: client}, nil
}

// Notify publishes an invalidation on the topic channel.
func (n *RedisNotifier) Notify(ctx context.Context, topic string) {
	if err := n.client.Publish(ctx, channelPrefix+topic, "1").Err(); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("redis notify failed")
	}
}

// Subscribe opens a pub/sub subscription for the topic. Cancel closes the
// subscription and stops delivery.
func (n *RedisNotifier) Subscribe(topic string) (<-chan struct{}, func()) {
	sub := n.client.Subscribe(context.Background(), channelPrefix+topic)
	out := make(chan struct{}, 1)

	go func() {
		for range sub.Channel() {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	cancel := func() {
		if err := sub.Close(); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("redis unsubscribe failed")
		}
	}
	return out, cancel
}

// Close releases the underlying client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
