package service

import (
	"context"

	"kycproxy/internal/platform/tracer"
	"kycproxy/internal/verification/models"
	"kycproxy/pkg/domain"
	dErrors "kycproxy/pkg/domain-errors"
)

// Lookup returns every record stored under handle, oldest first, with the
// shared user image URL. No match yields an empty result, not an error.
func (s *Service) Lookup(ctx context.Context, rawHandle string) (result *models.LookupResult, err error) {
	handle, err := domain.ParseHandle(rawHandle)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanLookup)
	defer func() { span.End(err) }()

	records, err := s.store.FindByHandle(ctx, handle)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load verification records", "handle", handle.String(), "error", err)
		return nil, dErrors.Reclassify(err, dErrors.CodeStorage, "could not load verification records")
	}
	if records == nil {
		records = []models.Record{}
	}
	span.Set(tracer.AttrRecordCount.Int(len(records)))

	return &models.LookupResult{
		Records:      records,
		UserImageURL: s.imageURL(),
	}, nil
}
