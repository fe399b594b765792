package service

import (
	"context"
	"time"

	"kycproxy/internal/platform/tracer"
	"kycproxy/internal/verification/models"
	"kycproxy/internal/verification/providers"
	"kycproxy/internal/verification/providers/sessions"
	"kycproxy/pkg/domain"
	dErrors "kycproxy/pkg/domain-errors"
	"kycproxy/pkg/platform/audit"
	"kycproxy/pkg/requestcontext"
)

// CreateSession starts a hosted verification session. The configured
// callback is used when the request does not name one.
func (s *Service) CreateSession(ctx context.Context, req models.CreateSessionRequest) (session *models.Session, err error) {
	if s.sessions == nil {
		return nil, dErrors.New(dErrors.CodeUpstream, "session provider is not configured")
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanSessionCreate)
	defer func() { span.End(err) }()

	callback := req.CallbackURL
	if callback == "" {
		callback = s.cfg.DefaultCallbackURL
	}

	var created *sessions.Session
	err = s.callSessions(ctx, func(ctx context.Context) error {
		var callErr error
		created, callErr = s.sessions.CreateSession(ctx, sessions.CreateRequest{
			CallbackURL: callback,
			VendorData:  req.VendorData,
		})
		return callErr
	})
	if err != nil {
		return nil, s.translateSessionError(ctx, err)
	}

	s.audit(ctx, audit.Event{
		Action:  audit.ActionSessionCreated,
		Subject: created.ID,
		Outcome: created.Status,
	})
	return &models.Session{
		ID:     domain.SessionID(created.ID),
		URL:    created.URL,
		Status: created.Status,
	}, nil
}

// SessionDecision fetches the vendor verdict and applies the adult gate to
// the reported date of birth. A missing, malformed, or future date leaves
// Adult false with DateOfBirthValid false.
func (s *Service) SessionDecision(ctx context.Context, rawID string) (decision *models.SessionDecision, err error) {
	sessionID, err := domain.ParseSessionID(rawID)
	if err != nil {
		return nil, err
	}
	if s.sessions == nil {
		return nil, dErrors.New(dErrors.CodeUpstream, "session provider is not configured")
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanSessionDecision)
	defer func() { span.End(err) }()

	var vendor *sessions.Decision
	err = s.callSessions(ctx, func(ctx context.Context) error {
		var callErr error
		vendor, callErr = s.sessions.Decision(ctx, sessionID.String())
		return callErr
	})
	if err != nil {
		return nil, s.translateSessionError(ctx, err)
	}

	decision = &models.SessionDecision{
		SessionID:          sessionID,
		Status:             vendor.Status,
		VerificationStatus: vendor.VerificationStatus,
	}
	if vendor.DateOfBirth != "" {
		now := requestcontext.Now(ctx)
		if dob, parseErr := domain.ParseBirthDate(vendor.DateOfBirth, now); parseErr == nil {
			decision.DateOfBirthValid = true
			decision.Adult = domain.IsAdult(dob, now)
		} else {
			s.logger.WarnContext(ctx, "session decision has unusable date of birth", "session_id", sessionID.String())
		}
	}

	outcome := "not_adult"
	if decision.Adult {
		outcome = "adult"
	}
	span.Set(tracer.AttrOutcome.String(outcome))
	s.audit(ctx, audit.Event{
		Action:  audit.ActionDecisionRead,
		Subject: sessionID.String(),
		Outcome: outcome,
	})
	return decision, nil
}

func (s *Service) callSessions(ctx context.Context, call func(context.Context) error) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSessionsProvider,
		tracer.AttrProvider.String(sessions.ProviderID),
	)
	start := time.Now()
	defer func() {
		label := "ok"
		if err != nil {
			label = string(providers.CategoryOf(err))
		}
		s.metrics.ObserveProvider(sessions.ProviderID, label, time.Since(start).Seconds())
		span.End(err)
	}()
	return call(ctx)
}

func (s *Service) translateSessionError(ctx context.Context, err error) error {
	category := providers.CategoryOf(err)
	s.logger.ErrorContext(ctx, "session provider call failed", "category", category, "error", err)

	switch category {
	case providers.CategoryNotFound:
		return dErrors.Reclassify(err, dErrors.CodeNotFound, "verification session not found")
	case providers.CategoryTimeout:
		return dErrors.Reclassify(err, dErrors.CodeTimeout, "session provider timed out")
	default:
		return dErrors.Reclassify(err, dErrors.CodeUpstream, "session provider unavailable")
	}
}
