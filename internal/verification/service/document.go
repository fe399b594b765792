package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"kycproxy/internal/platform/tracer"
	"kycproxy/internal/verification/models"
	"kycproxy/internal/verification/providers"
	"kycproxy/internal/verification/providers/quickscan"
	dErrors "kycproxy/pkg/domain-errors"
	"kycproxy/pkg/platform/audit"
	"kycproxy/pkg/platform/sentinel"
)

const msgVerificationFailed = "verification failed"

// VerifyDocument runs the uploaded images through quickscan and persists a
// record when the extracted age meets the threshold. Ineligible subjects are
// a successful Result, not an error.
//
// Every uploaded file is removed before returning, whatever the outcome.
//
// Errors: CodeInvalidInput (no document), CodeVerificationFailed (read,
// transport, or vendor response failures), CodeStorage, CodeHandleExhausted.
func (s *Service) VerifyDocument(ctx context.Context, req models.VerifyRequest) (result *models.Result, err error) {
	defer s.cleanup(ctx, req.Uploads())

	ctx, span := s.tracer.Start(ctx, tracer.SpanVerifyDocument,
		tracer.AttrHasBackImage.Bool(req.DocumentBack != nil),
	)
	defer func() {
		outcome := outcomeLabel(result, err)
		span.Set(tracer.AttrOutcome.String(outcome))
		span.End(err)
		s.metrics.RecordOutcome(outcome)
		s.auditVerification(ctx, result, err)
	}()

	if req.Document == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document image is required")
	}

	scanReq, err := s.encode(req)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read uploaded document", "error", err)
		return nil, dErrors.Reclassify(err, dErrors.CodeVerificationFailed, msgVerificationFailed)
	}

	scan, err := s.scan(ctx, scanReq)
	if err != nil {
		s.logger.ErrorContext(ctx, "document scan failed",
			"provider", quickscan.ProviderID,
			"category", providers.CategoryOf(err),
			"error", err,
		)
		return nil, dErrors.Reclassify(err, dErrors.CodeVerificationFailed, msgVerificationFailed)
	}

	if scan.Age < s.cfg.MinAge {
		return &models.Result{
			Outcome: models.OutcomeIneligible,
			Age:     scan.Age,
			Message: models.IneligibleMessage,
		}, nil
	}

	record, err := s.persist(ctx, scan.Age)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "document verified", "handle", record.Handle.String())
	return &models.Result{
		Outcome:      models.OutcomeVerified,
		Age:          record.Age,
		Handle:       record.Handle,
		UserImageURL: s.imageURL(),
	}, nil
}

func (s *Service) encode(req models.VerifyRequest) (quickscan.ScanRequest, error) {
	front, err := s.readFile(req.Document.Path)
	if err != nil {
		return quickscan.ScanRequest{}, fmt.Errorf("read document: %w", err)
	}
	scanReq := quickscan.ScanRequest{Document: base64.StdEncoding.EncodeToString(front)}

	if req.DocumentBack != nil {
		back, err := s.readFile(req.DocumentBack.Path)
		if err != nil {
			return quickscan.ScanRequest{}, fmt.Errorf("read document back: %w", err)
		}
		scanReq.DocumentBack = base64.StdEncoding.EncodeToString(back)
	}
	return scanReq, nil
}

func (s *Service) scan(ctx context.Context, req quickscan.ScanRequest) (result *quickscan.ScanResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanQuickscanCall,
		tracer.AttrProvider.String(quickscan.ProviderID),
	)
	start := time.Now()
	defer func() {
		label := "ok"
		if err != nil {
			label = string(providers.CategoryOf(err))
		}
		s.metrics.ObserveProvider(quickscan.ProviderID, label, time.Since(start).Seconds())
		span.End(err)
	}()

	return s.scanner.Scan(ctx, req)
}

// persist inserts a record under a fresh handle, regenerating the handle when
// the store reports a collision.
func (s *Service) persist(ctx context.Context, age int) (record models.Record, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanPersistRecord)
	attempts := 0
	defer func() {
		span.Set(tracer.AttrHandleAttempt.Int(attempts))
		span.End(err)
	}()

	var lastConflict error
	for attempts < s.cfg.HandleMaxAttempts {
		attempts++

		handle, err := s.newHandle()
		if err != nil {
			return models.Record{}, err
		}

		record, err = s.store.Insert(ctx, models.Record{Age: age, Handle: handle})
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			s.logger.ErrorContext(ctx, "failed to persist verification record", "error", err)
			return models.Record{}, dErrors.Reclassify(err, dErrors.CodeStorage, "could not persist verification")
		}

		lastConflict = err
		s.metrics.RecordHandleCollision()
		span.Event(tracer.EventHandleCollision, tracer.AttrHandleAttempt.Int(attempts))
		s.logger.WarnContext(ctx, "handle collision, regenerating", "attempt", attempts)
	}

	return models.Record{}, dErrors.Reclassify(lastConflict, dErrors.CodeHandleExhausted, "could not allocate a unique handle")
}

// cleanup removes each upload exactly once. Failures are logged only.
func (s *Service) cleanup(ctx context.Context, uploads []*models.Upload) {
	for _, u := range uploads {
		if u == nil || u.Path == "" {
			continue
		}
		if err := s.removeFile(u.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.WarnContext(ctx, "failed to remove uploaded file", "path", u.Path, "error", err)
		}
	}
}

func outcomeLabel(result *models.Result, err error) string {
	if err != nil {
		var de *dErrors.Error
		if errors.As(err, &de) {
			return string(de.Code)
		}
		return string(dErrors.CodeInternal)
	}
	if result == nil {
		return "aborted"
	}
	return string(result.Outcome)
}

func (s *Service) auditVerification(ctx context.Context, result *models.Result, err error) {
	event := audit.Event{Outcome: outcomeLabel(result, err)}
	switch {
	case err != nil:
		event.Action = audit.ActionDocumentVerificationFailed
		event.Reason = err.Error()
	case result == nil:
		return
	case result.Outcome == models.OutcomeVerified:
		event.Action = audit.ActionDocumentVerified
		event.Subject = result.Handle.String()
	default:
		event.Action = audit.ActionDocumentIneligible
	}
	s.audit(ctx, event)
}
