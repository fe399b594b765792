package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kycproxy/internal/ratelimit/models"
)

const redisKeyPrefix = "kycproxy:ratelimit:"

// Pipeliner is the subset of *redis.Client used by the store.
type Pipeliner interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// RedisBucketStore is a fixed-window counter shared by every replica. The
// window starts at the first request for a key.
type RedisBucketStore struct {
	client Pipeliner
	now    func() time.Time
}

// NewRedisBucketStore creates a store on client. Requires Redis 7 for EXPIRE NX.
func NewRedisBucketStore(client Pipeliner) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

// Allow increments key's counter in a MULTI block and reports whether the
// count is still within limit.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	k := redisKeyPrefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, window)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit counter %s: %w", key, err)
	}

	now := s.now()
	wait := ttl.Val()
	if wait <= 0 {
		wait = window
	}
	resetAt := now.Add(wait)

	count := int(incr.Val())
	allowed := count <= limit
	return &models.Result{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  max(limit-count, 0),
		ResetAt:    resetAt,
		RetryAfter: models.RetryAfterSeconds(allowed, resetAt, now),
	}, nil
}
