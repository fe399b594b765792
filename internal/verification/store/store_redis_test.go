package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"kycproxy/internal/verification/metrics"
	"kycproxy/internal/verification/models"
	"kycproxy/pkg/domain"
	"kycproxy/pkg/platform/circuit"
)

// fakeCache is an in-process CacheClient that can be told to fail.
type fakeCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	ttls     map[string]time.Duration
	getErr   error
	setErr   error
	setCalls int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeCache) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = value.([]byte)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

// countingStore counts reads that reach the backing store.
type countingStore struct {
	*InMemoryStore
	reads int
}

func (c *countingStore) FindByHandle(ctx context.Context, handle domain.Handle) ([]models.Record, error) {
	c.reads++
	return c.InMemoryStore.FindByHandle(ctx, handle)
}

type CachedStoreSuite struct {
	suite.Suite
	backing *countingStore
	cache   *fakeCache
	metrics *metrics.Metrics
	store   *CachedStore
}

func TestCachedStoreSuite(t *testing.T) {
	suite.Run(t, new(CachedStoreSuite))
}

func (s *CachedStoreSuite) SetupTest() {
	s.backing = &countingStore{InMemoryStore: NewInMemoryStore()}
	s.cache = newFakeCache()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.store = NewCachedStore(s.backing, s.cache, 5*time.Minute, s.metrics, nil)
}

func (s *CachedStoreSuite) TestReadThrough() {
	ctx := context.Background()
	saved, err := s.store.Insert(ctx, models.Record{Age: 33, Handle: "abcd"})
	s.Require().NoError(err)

	first, err := s.store.FindByHandle(ctx, "abcd")
	s.Require().NoError(err)
	s.Require().Len(first, 1)
	s.Equal(1, s.backing.reads)
	s.Equal(5*time.Minute, s.cache.ttls[recordKey("abcd")])

	second, err := s.store.FindByHandle(ctx, "abcd")
	s.Require().NoError(err)
	s.Equal(1, s.backing.reads, "second read must be served from cache")
	s.Require().Len(second, 1)
	s.Equal(saved.ID, second[0].ID)
	s.Equal(saved.Age, second[0].Age)
	s.True(saved.CreatedAt.Equal(second[0].CreatedAt))

	s.InDelta(1, testutil.ToFloat64(s.metrics.CacheHitsTotal), 0)
	s.InDelta(1, testutil.ToFloat64(s.metrics.CacheMissesTotal), 0)
}

func (s *CachedStoreSuite) TestEmptyResultsAreNotCached() {
	ctx := context.Background()

	records, err := s.store.FindByHandle(ctx, "0000")
	s.Require().NoError(err)
	s.Empty(records)
	s.Zero(s.cache.setCalls)

	_, _ = s.store.FindByHandle(ctx, "0000")
	s.Equal(2, s.backing.reads)
}

func (s *CachedStoreSuite) TestCacheFailureFallsBack() {
	ctx := context.Background()
	_, err := s.store.Insert(ctx, models.Record{Age: 50, Handle: "beef"})
	s.Require().NoError(err)

	s.cache.getErr = errors.New("connection reset")
	s.cache.setErr = errors.New("connection reset")

	records, err := s.store.FindByHandle(ctx, "beef")
	s.Require().NoError(err)
	s.Len(records, 1)
	s.InDelta(2, testutil.ToFloat64(s.metrics.CacheErrorsTotal), 0)
}

func (s *CachedStoreSuite) TestCorruptEntryIsIgnored() {
	ctx := context.Background()
	_, err := s.store.Insert(ctx, models.Record{Age: 21, Handle: "f00d"})
	s.Require().NoError(err)
	s.cache.data[recordKey("f00d")] = []byte("{not json")

	records, err := s.store.FindByHandle(ctx, "f00d")
	s.Require().NoError(err)
	s.Len(records, 1)
	s.Equal(1, s.backing.reads)
}

func (s *CachedStoreSuite) TestOpenBreakerBypassesCache() {
	ctx := context.Background()
	breaker := circuit.New("record-cache", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))
	s.store = NewCachedStore(s.backing, s.cache, time.Minute, s.metrics, nil, WithBreaker(breaker))

	_, err := s.store.Insert(ctx, models.Record{Age: 40, Handle: "cafe"})
	s.Require().NoError(err)
	s.cache.getErr = errors.New("connection refused")

	_, err = s.store.FindByHandle(ctx, "cafe")
	s.Require().NoError(err)
	s.Equal(circuit.StateOpen, breaker.State())
	s.InDelta(1, testutil.ToFloat64(s.metrics.CacheErrorsTotal), 0)
	s.Zero(s.cache.setCalls, "no write while the read just failed")

	records, err := s.store.FindByHandle(ctx, "cafe")
	s.Require().NoError(err)
	s.Len(records, 1)
	s.Equal(2, s.backing.reads)
	s.InDelta(1, testutil.ToFloat64(s.metrics.CacheErrorsTotal), 0, "open circuit must not touch redis")
}
