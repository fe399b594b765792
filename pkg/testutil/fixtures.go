package testutil

import (
	"time"

	"github.com/google/uuid"

	"kycproxy/internal/verification/models"
	"kycproxy/pkg/domain"
)

// TestHandles are deterministic handles for table tests.
var TestHandles = struct {
	Handle1 domain.Handle
	Handle2 domain.Handle
}{
	Handle1: "0123456789abcdef0123456789abcdef",
	Handle2: "fedcba9876543210fedcba9876543210",
}

// FixedTime is a stable creation timestamp for records built in tests.
var FixedTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// RecordBuilder provides a fluent interface for building verification records.
type RecordBuilder struct {
	record models.Record
}

// NewRecordBuilder creates a RecordBuilder for an adult record with a fixed
// creation time.
func NewRecordBuilder() *RecordBuilder {
	return &RecordBuilder{
		record: models.Record{
			ID:        domain.RecordID(uuid.New()),
			Age:       25,
			Handle:    TestHandles.Handle1,
			CreatedAt: FixedTime,
		},
	}
}

func (b *RecordBuilder) WithID(id domain.RecordID) *RecordBuilder {
	b.record.ID = id
	return b
}

func (b *RecordBuilder) WithAge(age int) *RecordBuilder {
	b.record.Age = age
	return b
}

func (b *RecordBuilder) WithHandle(h domain.Handle) *RecordBuilder {
	b.record.Handle = h
	return b
}

func (b *RecordBuilder) WithCreatedAt(t time.Time) *RecordBuilder {
	b.record.CreatedAt = t
	return b
}

// Build returns a copy of the record.
func (b *RecordBuilder) Build() models.Record {
	return b.record
}
