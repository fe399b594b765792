// Package bucket stores per-key request counters for rate limiting.
package bucket

import (
	"context"
	"sync"
	"time"

	"kycproxy/internal/ratelimit/models"
)

// InMemoryBucketStore implements a sliding-window limiter for a single replica.
// Use RedisBucketStore when several replicas share a limit.
type InMemoryBucketStore struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

// tryConsume records one request if capacity remains.
func (sw *slidingWindow) tryConsume(limit int, now time.Time) (allowed bool, remaining int, resetAt time.Time) {
	sw.cleanupExpired(now)

	if len(sw.timestamps) >= limit {
		return false, 0, sw.timestamps[0].Add(sw.window)
	}
	sw.timestamps = append(sw.timestamps, now)
	return true, limit - len(sw.timestamps), sw.timestamps[0].Add(sw.window)
}

func (sw *slidingWindow) cleanupExpired(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// NewInMemoryBucketStore creates an empty in-memory store.
func NewInMemoryBucketStore() *InMemoryBucketStore {
	return &InMemoryBucketStore{
		buckets: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

// Allow consumes one request from key's window.
func (s *InMemoryBucketStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok {
		b = &slidingWindow{window: window}
		s.buckets[key] = b
	}
	allowed, remaining, resetAt := b.tryConsume(limit, now)

	return &models.Result{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		RetryAfter: models.RetryAfterSeconds(allowed, resetAt, now),
	}, nil
}

// Prune drops buckets with no requests left in their window and returns how
// many were removed.
func (s *InMemoryBucketStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, b := range s.buckets {
		b.cleanupExpired(now)
		if len(b.timestamps) == 0 {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// RunPruner prunes every interval until ctx is cancelled.
func (s *InMemoryBucketStore) RunPruner(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Prune()
		}
	}
}

// Len reports the number of tracked keys.
func (s *InMemoryBucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
