// Package store persists verification records.
package store

import (
	"context"

	"kycproxy/internal/verification/models"
	"kycproxy/pkg/domain"
)

// Store is the persistence contract for verification records.
//
// Insert returns sentinel.ErrConflict (wrapped) when the handle is taken.
// FindByHandle returns an empty slice, not an error, when nothing matches.
type Store interface {
	Insert(ctx context.Context, record models.Record) (models.Record, error)
	FindByHandle(ctx context.Context, handle domain.Handle) ([]models.Record, error)
}
