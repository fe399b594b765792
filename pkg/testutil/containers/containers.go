//go:build integration

// Package containers starts the Postgres, Redis and Redpanda instances the
// integration tests run against. Each is started on first use and shared by
// every suite in the test binary; Ryuk removes them when the process exits.
package containers

import (
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
	kafka    *KafkaContainer
}

var manager = &Manager{}

func GetManager() *Manager { return manager }

// shared returns *slot, starting it with start on first use. Tests are
// skipped under -short or when no container runtime answers.
func shared[T any](t *testing.T, mu *sync.Mutex, slot **T, start func(*testing.T) *T) *T {
	t.Helper()
	if testing.Short() {
		t.Skip("container-backed test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	mu.Lock()
	defer mu.Unlock()
	if *slot == nil {
		*slot = start(t)
	}
	return *slot
}

// GetPostgres returns Postgres with the embedded migrations applied.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	return shared(t, &m.mu, &m.postgres, NewPostgresContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	return shared(t, &m.mu, &m.redis, NewRedisContainer)
}

// GetKafka returns a Redpanda broker speaking the Kafka protocol.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	return shared(t, &m.mu, &m.kafka, NewKafkaContainer)
}
