package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterTTL keeps daily counter keys around slightly past the day boundary
// so a send racing midnight still counts against the correct day.
const counterTTL = 26 * time.Hour

// SendCounter tracks per-day send volume for daily-cap enforcement. Count is
// checked before a send; Incr is called after a successful one, so the cap is
// on successful sends, not attempts.
type SendCounter interface {
	Count(ctx context.Context, tenantID, recipientID string, channel Channel, day time.Time) (int, error)
	Incr(ctx context.Context, tenantID, recipientID string, channel Channel, day time.Time) error
}

func counterKey(tenantID, recipientID string, channel Channel, day time.Time) string {
	return fmt.Sprintf("notify:sent:%s:%s:%s:%s", tenantID, recipientID, channel, day.Format("2006-01-02"))
}

// RedisSendCounter counts sends in Redis with a per-day key and a TTL, so
// counters expire on their own and survive process restarts.
type RedisSendCounter struct {
	client redis.UniversalClient
}

// NewRedisSendCounter creates a SendCounter backed by the given Redis client.
func NewRedisSendCounter(client redis.UniversalClient) *RedisSendCounter {
	return &RedisSendCounter{client: client}
}

func (c *RedisSendCounter) Count(ctx context.Context, tenantID, recipientID string, channel Channel, day time.Time) (int, error) {
	n, err := c.client.Get(ctx, counterKey(tenantID, recipientID, channel, day)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read send counter: %w", err)
	}
	return n, nil
}

func (c *RedisSendCounter) Incr(ctx context.Context, tenantID, recipientID string, channel Channel, day time.Time) error {
	key := counterKey(tenantID, recipientID, channel, day)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment send counter: %w", err)
	}
	return nil
}

// MemorySendCounter is an in-memory SendCounter for development and testing.
// Counters are never expired; a long-lived process should use the Redis
// implementation instead.
type MemorySendCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemorySendCounter creates an empty in-memory send counter.
func NewMemorySendCounter() *MemorySendCounter {
	return &MemorySendCounter{counts: make(map[string]int)}
}

func (c *MemorySendCounter) Count(ctx context.Context, tenantID, recipientID string, channel Channel, day time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[counterKey(tenantID, recipientID, channel, day)], nil
}

func (c *MemorySendCounter) Incr(ctx context.Context, tenantID, recipientID string, channel Channel, day time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[counterKey(tenantID, recipientID, channel, day)]++
	return nil
}
