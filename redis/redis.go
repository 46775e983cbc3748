package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to addr and verifies the connection with a PING.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", addr, err)
	}
	return client, nil
}

// ReminderCache records which reminders were already sent so a sweep that
// runs twice, or on two instances, notifies at most once per key.
type ReminderCache struct {
	client *redis.Client
}

func NewReminderCache(client *redis.Client) *ReminderCache {
	return &ReminderCache{client: client}
}

// MarkOnce returns true the first time key is seen within ttl.
func (c *ReminderCache) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: mark %s: %w", key, err)
	}
	return ok, nil
}
