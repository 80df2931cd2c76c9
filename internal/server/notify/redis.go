package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/passshare/internal/logging"
	"github.com/redis/go-redis/v9"
)

// RedisChannel is the pub/sub channel shared by all server instances.
const RedisChannel = "passshare:session-events"

// RedisHub fans events out through Redis PUBLISH/SUBSCRIBE so that a client
// subscribed on one instance hears uploads handled by another.
type RedisHub struct {
	client *redis.Client
	log    logging.Logger
}

func NewRedisHub(client *redis.Client, log logging.Logger) *RedisHub {
	if log == nil {
		log = logging.Nop()
	}
	return &RedisHub{client: client, log: log}
}

// NewRedisClient connects to addr and checks it answers PING.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (h *RedisHub) Publish(ctx context.Context, passkey string) error {
	if err := h.client.Publish(ctx, RedisChannel, passkey).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (h *RedisHub) Subscribe(ctx context.Context) (<-chan string, func()) {
	ctx, stop := context.WithCancel(ctx)
	pubsub := h.client.Subscribe(ctx, RedisChannel)
	// Wait for the subscription so events published after return are seen.
	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.Error(ctx, "redis subscribe failed", "error", err)
	}
	out := make(chan string, subscriberBuffer)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					h.log.Warn(ctx, "subscriber lagging, event dropped", "passkey", msg.Payload)
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			_ = pubsub.Close()
			wg.Wait()
		})
	}
	return out, cancel
}
