package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kycproxy/internal/verification/models"
	"kycproxy/pkg/domain"
	"kycproxy/pkg/platform/sentinel"
	"kycproxy/pkg/testutil"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) TestInsert() {
	ctx := context.Background()

	s.Run("assigns id and creation time", func() {
		saved, err := s.store.Insert(ctx, models.Record{Age: 25, Handle: "aa01"})
		s.Require().NoError(err)
		s.False(saved.ID.IsNil())
		s.False(saved.CreatedAt.IsZero())
		s.Equal(25, saved.Age)
	})

	s.Run("rejects duplicate handle with conflict", func() {
		_, err := s.store.Insert(ctx, models.Record{Age: 30, Handle: "aa01"})
		s.Require().Error(err)
		s.ErrorIs(err, sentinel.ErrConflict)
		s.Equal(1, s.store.Count())
	})
}

func (s *InMemoryStoreSuite) TestFindByHandle() {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.store.now = func() time.Time { return fixed }

	saved, err := s.store.Insert(ctx, models.Record{Age: 40, Handle: "bb02"})
	s.Require().NoError(err)

	s.Run("returns matching record", func() {
		records, err := s.store.FindByHandle(ctx, "bb02")
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal(saved, records[0])
		s.Equal(fixed, records[0].CreatedAt)
	})

	s.Run("returns empty non-nil slice when nothing matches", func() {
		records, err := s.store.FindByHandle(ctx, "ffff")
		s.Require().NoError(err)
		s.NotNil(records)
		s.Empty(records)
	})
}

func (s *InMemoryStoreSuite) TestConcurrentInserts() {
	ctx := context.Background()

	result := testutil.RunConcurrent(50, func(i int) error {
		_, err := s.store.Insert(ctx, models.Record{Age: 20, Handle: domain.Handle(fmt.Sprintf("%04x", i))})
		return err
	})

	s.EqualValues(50, result.Successes)
	s.Equal(50, s.store.Count())
}

func (s *InMemoryStoreSuite) TestConcurrentDuplicateHandle() {
	ctx := context.Background()

	result := testutil.RunConcurrent(20, func(int) error {
		_, err := s.store.Insert(ctx, models.Record{Age: 20, Handle: "cafe"})
		return err
	})

	s.EqualValues(1, result.Successes)
	s.EqualValues(19, result.Conflicts)
}
