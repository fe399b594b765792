package service

import (
	"context"
	"time"

	"go.uber.org/mock/gomock"

	"kycproxy/internal/verification/models"
	"kycproxy/internal/verification/providers"
	"kycproxy/internal/verification/providers/sessions"
	dErrors "kycproxy/pkg/domain-errors"
	"kycproxy/pkg/platform/audit"
	"kycproxy/pkg/requestcontext"
)

func (s *ServiceSuite) TestCreateSession() {
	ctx := context.Background()

	s.Run("falls back to the configured callback", func() {
		s.mockSessions.EXPECT().
			CreateSession(gomock.Any(), sessions.CreateRequest{CallbackURL: "https://app.test/kyc/callback", VendorData: "u-1"}).
			Return(&sessions.Session{ID: "sess-1", URL: "https://vendor.test/sess-1", Status: "created"}, nil)
		s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e audit.Event) {
			s.Equal(audit.ActionSessionCreated, e.Action)
			s.Equal("sess-1", e.Subject)
		})

		session, err := s.service.CreateSession(ctx, models.CreateSessionRequest{VendorData: "u-1"})
		s.Require().NoError(err)
		s.Equal("sess-1", session.ID.String())
		s.Equal("https://vendor.test/sess-1", session.URL)
	})

	s.Run("request callback wins", func() {
		s.mockSessions.EXPECT().
			CreateSession(gomock.Any(), sessions.CreateRequest{CallbackURL: "https://other.test/cb"}).
			Return(&sessions.Session{ID: "sess-2", URL: "https://vendor.test/sess-2"}, nil)
		s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any())

		_, err := s.service.CreateSession(ctx, models.CreateSessionRequest{CallbackURL: "https://other.test/cb"})
		s.Require().NoError(err)
	})

	s.Run("provider failure maps to upstream", func() {
		s.mockSessions.EXPECT().CreateSession(gomock.Any(), gomock.Any()).
			Return(nil, providers.NewError(providers.CategoryAuth, sessions.ProviderID, "authentication failed: 401", nil))

		_, err := s.service.CreateSession(ctx, models.CreateSessionRequest{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
	})
}

func (s *ServiceSuite) TestSessionDecision() {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	tests := []struct {
		name      string
		dob       string
		wantValid bool
		wantAdult bool
		outcome   string
	}{
		{"18th birthday today counts", "2006-06-15", true, true, "adult"},
		{"18th birthday tomorrow does not", "2006-06-16", true, false, "not_adult"},
		{"well over 18", "1980-01-01", true, true, "adult"},
		{"future date of birth", "2030-01-01", false, false, "not_adult"},
		{"unparseable date of birth", "15/06/2006", false, false, "not_adult"},
		{"no date of birth yet", "", false, false, "not_adult"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.mockSessions.EXPECT().Decision(gomock.Any(), "sess-1").
				Return(&sessions.Decision{Status: "success", VerificationStatus: "approved", DateOfBirth: tt.dob}, nil)
			s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e audit.Event) {
				s.Equal(audit.ActionDecisionRead, e.Action)
				s.Equal(tt.outcome, e.Outcome)
			})

			decision, err := s.service.SessionDecision(ctx, "sess-1")
			s.Require().NoError(err)
			s.Equal(tt.wantValid, decision.DateOfBirthValid)
			s.Equal(tt.wantAdult, decision.Adult)
			s.Equal("approved", decision.VerificationStatus)
		})
	}
}

func (s *ServiceSuite) TestSessionDecision_Errors() {
	ctx := context.Background()

	s.Run("invalid session id", func() {
		_, err := s.service.SessionDecision(ctx, "a/b")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown session", func() {
		s.mockSessions.EXPECT().Decision(gomock.Any(), "missing").
			Return(nil, providers.NewError(providers.CategoryNotFound, sessions.ProviderID, "resource not found: 404", nil))

		_, err := s.service.SessionDecision(ctx, "missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("provider timeout", func() {
		s.mockSessions.EXPECT().Decision(gomock.Any(), "slow").
			Return(nil, providers.NewError(providers.CategoryTimeout, sessions.ProviderID, "request timeout", context.DeadlineExceeded))

		_, err := s.service.SessionDecision(ctx, "slow")
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	s.Run("provider not configured", func() {
		svc := New(s.mockScanner, s.mockStore, Config{})
		_, err := svc.SessionDecision(ctx, "sess-1")
		s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
	})
}
