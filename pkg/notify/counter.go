package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Counter tracks unread events per user independently of delivery.
type Counter interface {
	Incr(ctx context.Context, userID string) (int64, error)
	Get(ctx context.Context, userID string) (int64, error)
	Reset(ctx context.Context, userID string) error
}

const unreadKey = "notify:unread"

type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, userID string) (int64, error) {
	n, err := c.client.HIncrBy(ctx, unreadKey, userID, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("incr unread %s: %w", userID, err)
	}
	return n, nil
}

func (c *RedisCounter) Get(ctx context.Context, userID string) (int64, error) {
	n, err := c.client.HGet(ctx, unreadKey, userID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get unread %s: %w", userID, err)
	}
	return n, nil
}

func (c *RedisCounter) Reset(ctx context.Context, userID string) error {
	if err := c.client.HDel(ctx, unreadKey, userID).Err(); err != nil {
		return fmt.Errorf("reset unread %s: %w", userID, err)
	}
	return nil
}

type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64)}
}

func (c *MemoryCounter) Incr(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[userID]++
	return c.counts[userID], nil
}

func (c *MemoryCounter) Get(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[userID], nil
}

func (c *MemoryCounter) Reset(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, userID)
	return nil
}
