package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kycproxy/internal/verification/models"
	"kycproxy/pkg/domain"
	"kycproxy/pkg/platform/sentinel"
)

// InMemoryStore keeps records in insertion order. Intended for tests and
// local runs without DATABASE_URL.
type InMemoryStore struct {
	mu       sync.RWMutex
	records  []models.Record
	byHandle map[domain.Handle]int
	now      func() time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byHandle: make(map[domain.Handle]int),
		now:      time.Now,
	}
}

// Insert appends a record, assigning ID and CreatedAt when unset.
func (s *InMemoryStore) Insert(_ context.Context, record models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byHandle[record.Handle]; exists {
		return models.Record{}, fmt.Errorf("handle %s: %w", record.Handle, sentinel.ErrConflict)
	}
	if record.ID.IsNil() {
		record.ID = domain.NewRecordID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}
	s.byHandle[record.Handle] = len(s.records)
	s.records = append(s.records, record)
	return record, nil
}

// FindByHandle returns matching records, oldest first.
func (s *InMemoryStore) FindByHandle(_ context.Context, handle domain.Handle) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Record{}
	if idx, ok := s.byHandle[handle]; ok {
		out = append(out, s.records[idx])
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
