package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"kycproxy/internal/verification/metrics"
	"kycproxy/internal/verification/models"
	"kycproxy/pkg/domain"
	"kycproxy/pkg/platform/circuit"
)

const redisRecordKeyPrefix = "kycproxy:records:"

// CacheClient is the subset of *redis.Client used by the cache.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type cachedRecord struct {
	ID        string    `json:"id"`
	Age       int       `json:"age"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
}

// CachedStore is a read-through Redis cache in front of another Store.
// Records are immutable, so entries are never invalidated; only non-empty
// results are cached. Redis failures fall back to the wrapped store, and an
// optional breaker stops reads from reaching Redis while it is failing.
type CachedStore struct {
	next    Store
	client  CacheClient
	ttl     time.Duration
	breaker *circuit.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// CacheOption configures a CachedStore.
type CacheOption func(*CachedStore)

// WithBreaker guards Redis calls with b.
func WithBreaker(b *circuit.Breaker) CacheOption {
	return func(c *CachedStore) {
		c.breaker = b
	}
}

// NewCachedStore wraps next with a Redis cache. metrics and logger may be nil.
func NewCachedStore(next Store, client CacheClient, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger, opts ...CacheOption) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	c := &CachedStore{
		next:    next,
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Insert delegates to the wrapped store.
func (c *CachedStore) Insert(ctx context.Context, record models.Record) (models.Record, error) {
	return c.next.Insert(ctx, record)
}

// FindByHandle serves from cache when possible and populates it on a miss.
func (c *CachedStore) FindByHandle(ctx context.Context, handle domain.Handle) ([]models.Record, error) {
	key := recordKey(handle)
	useCache := c.breaker.Allow()

	if useCache {
		if records, ok := c.load(ctx, key, handle); ok {
			return records, nil
		}
	}

	records, err := c.next.FindByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if useCache && len(records) > 0 && c.breaker.State() != circuit.StateOpen {
		c.store(ctx, key, records)
	}
	return records, nil
}

func (c *CachedStore) load(ctx context.Context, key string, handle domain.Handle) ([]models.Record, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		c.breaker.Record(nil)
		records, decodeErr := decodeRecords(data)
		if decodeErr == nil {
			c.metrics.RecordCacheHit()
			return records, true
		}
		c.metrics.RecordCacheError()
		c.logger.WarnContext(ctx, "discarding undecodable cache entry", "handle", handle.String(), "error", decodeErr)
	case errors.Is(err, redis.Nil):
		c.breaker.Record(nil)
		c.metrics.RecordCacheMiss()
	default:
		c.breaker.Record(err)
		c.metrics.RecordCacheError()
		c.logger.WarnContext(ctx, "record cache read failed", "handle", handle.String(), "error", err)
	}
	return nil, false
}

func (c *CachedStore) store(ctx context.Context, key string, records []models.Record) {
	payload, err := encodeRecords(records)
	if err != nil {
		c.metrics.RecordCacheError()
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.breaker.Record(err)
		c.metrics.RecordCacheError()
		c.logger.WarnContext(ctx, "record cache write failed", "error", err)
	}
}

func recordKey(handle domain.Handle) string {
	return redisRecordKeyPrefix + handle.String()
}

func encodeRecords(records []models.Record) ([]byte, error) {
	out := make([]cachedRecord, 0, len(records))
	for _, r := range records {
		out = append(out, cachedRecord{
			ID:        r.ID.String(),
			Age:       r.Age,
			Handle:    r.Handle.String(),
			CreatedAt: r.CreatedAt,
		})
	}
	return json.Marshal(out)
}

func decodeRecords(data []byte) ([]models.Record, error) {
	var cached []cachedRecord
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	records := make([]models.Record, 0, len(cached))
	for _, c := range cached {
		id, err := uuid.Parse(c.ID)
		if err != nil {
			return nil, err
		}
		records = append(records, models.Record{
			ID:        domain.RecordID(id),
			Age:       c.Age,
			Handle:    domain.Handle(c.Handle),
			CreatedAt: c.CreatedAt,
		})
	}
	return records, nil
}
