package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter counts requests per key in fixed one-minute windows
type RateLimiter struct {
	client            *Client
	requestsPerMinute int
	burst             int
}

// NewRateLimiter allows requestsPerMinute+burst requests per key per minute
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client:            client,
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
	}
}

// Limit is the outcome of one rate limit check
type Limit struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allow counts one request against key, typically a session ID. The
// window counter expires on its own a minute after the first hit.
func (r *RateLimiter) Allow(ctx context.Context, key string) (Limit, error) {
	window := time.Now().Truncate(time.Minute)
	counterKey := fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, window.Unix())

	var hits *redis.IntCmd
	_, err := r.client.rdb.TxPipelined(ctx, func(tx redis.Pipeliner) error {
		hits = tx.Incr(ctx, counterKey)
		tx.ExpireNX(ctx, counterKey, time.Minute)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Limit{}, fmt.Errorf("failed to count request for %s: %w", key, err)
	}

	capacity := r.requestsPerMinute + r.burst
	used := int(hits.Val())

	return Limit{
		Allowed:   used <= capacity,
		Limit:     capacity,
		Remaining: max(capacity-used, 0),
		ResetAt:   window.Add(time.Minute),
	}, nil
}

// Reset clears every window counted for key
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	_, err := r.client.purge(ctx, fmt.Sprintf("%s%s:*", rateLimitPrefix, key))
	return err
}
