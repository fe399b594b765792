package service

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/mock/gomock"

	"kycproxy/internal/platform/tracer"
	"kycproxy/internal/verification/models"
	"kycproxy/internal/verification/providers"
	"kycproxy/internal/verification/providers/quickscan"
	"kycproxy/internal/verification/store"
	"kycproxy/pkg/domain"
	dErrors "kycproxy/pkg/domain-errors"
	"kycproxy/pkg/platform/audit"
	"kycproxy/pkg/platform/sentinel"
	pkgtestutil "kycproxy/pkg/testutil"
)

func (s *ServiceSuite) TestVerifyDocument_Verified() {
	front := s.writeUpload("front.jpg", "front-bytes")

	s.mockScanner.EXPECT().
		Scan(gomock.Any(), quickscan.ScanRequest{Document: "ZnJvbnQtYnl0ZXM="}).
		Return(&quickscan.ScanResult{Age: 19}, nil)
	s.mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r models.Record) (models.Record, error) {
			s.Equal(19, r.Age)
			s.Len(r.Handle.String(), domain.HandleBytes*2)
			r.ID = domain.NewRecordID()
			return r, nil
		})
	s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e audit.Event) {
		s.Equal(audit.ActionDocumentVerified, e.Action)
		s.NotEmpty(e.Subject)
	})

	result, err := s.service.VerifyDocument(context.Background(), models.VerifyRequest{Document: front})
	s.Require().NoError(err)
	s.Equal(models.OutcomeVerified, result.Outcome)
	s.Equal(19, result.Age)
	s.NotEmpty(result.Handle)
	s.Equal(testImageBaseURL+"/user.png", result.UserImageURL)
	s.assertRemoved(front)
	s.InDelta(1, testutil.ToFloat64(s.metrics.VerificationsTotal.WithLabelValues("verified")), 0)
}

func (s *ServiceSuite) TestVerifyDocument_SendsBackImage() {
	front := s.writeUpload("front.jpg", "front")
	back := s.writeUpload("back.jpg", "back")

	s.mockScanner.EXPECT().
		Scan(gomock.Any(), quickscan.ScanRequest{Document: "ZnJvbnQ=", DocumentBack: "YmFjaw=="}).
		Return(&quickscan.ScanResult{Age: 40}, nil)
	s.mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r models.Record) (models.Record, error) { return r, nil })
	s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any())

	_, err := s.service.VerifyDocument(context.Background(), models.VerifyRequest{Document: front, DocumentBack: back})
	s.Require().NoError(err)
	s.assertRemoved(front, back)
}

func (s *ServiceSuite) TestVerifyDocument_Ineligible() {
	front := s.writeUpload("front.jpg", "x")

	s.mockScanner.EXPECT().Scan(gomock.Any(), gomock.Any()).Return(&quickscan.ScanResult{Age: 18}, nil)
	s.mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).Times(0)
	s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e audit.Event) {
		s.Equal(audit.ActionDocumentIneligible, e.Action)
		s.Empty(e.Subject)
	})

	result, err := s.service.VerifyDocument(context.Background(), models.VerifyRequest{Document: front})
	s.Require().NoError(err, "ineligibility is not an error")
	s.Equal(models.OutcomeIneligible, result.Outcome)
	s.Equal(models.IneligibleMessage, result.Message)
	s.Empty(result.Handle)
	s.Empty(result.UserImageURL)
	s.assertRemoved(front)
}

func (s *ServiceSuite) TestVerifyDocument_ProviderFailures() {
	tests := []struct {
		name string
		err  error
	}{
		{"missing age claim", providers.NewError(providers.CategoryBadData, quickscan.ProviderID, "response has no age claim", nil)},
		{"non-2xx", providers.NewError(providers.CategoryOutage, quickscan.ProviderID, "provider unavailable: 503", nil)},
		{"timeout", providers.NewError(providers.CategoryTimeout, quickscan.ProviderID, "request timeout", context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			front := s.writeUpload("front.jpg", "x")
			s.mockScanner.EXPECT().Scan(gomock.Any(), gomock.Any()).Return(nil, tt.err)
			s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e audit.Event) {
				s.Equal(audit.ActionDocumentVerificationFailed, e.Action)
			})

			result, err := s.service.VerifyDocument(context.Background(), models.VerifyRequest{Document: front})
			s.Nil(result)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeVerificationFailed))
			s.Equal("verification failed", err.Error())

			var pe *providers.Error
			s.Require().ErrorAs(err, &pe, "original cause must stay in the chain")
			s.Equal(tt.err, pe)
			s.assertRemoved(front)
		})
	}
}

func (s *ServiceSuite) TestVerifyDocument_UnreadableUpload() {
	missing := &models.Upload{Path: s.dir + "/gone.jpg", Filename: "gone.jpg"}
	s.mockScanner.EXPECT().Scan(gomock.Any(), gomock.Any()).Times(0)
	s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any())

	_, err := s.service.VerifyDocument(context.Background(), models.VerifyRequest{Document: missing})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeVerificationFailed))
}

func (s *ServiceSuite) TestVerifyDocument_MissingDocument() {
	back := s.writeUpload("back.jpg", "x")
	s.mockScanner.EXPECT().Scan(gomock.Any(), gomock.Any()).Times(0)
	s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any())

	_, err := s.service.VerifyDocument(context.Background(), models.VerifyRequest{DocumentBack: back})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.assertRemoved(back)
}

func (s *ServiceSuite) TestVerifyDocument_StorageFailure() {
	front := s.writeUpload("front.jpg", "x")
	s.mockScanner.EXPECT().Scan(gomock.Any(), gomock.Any()).Return(&quickscan.ScanResult{Age: 30}, nil)
	s.mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(models.Record{}, errors.New("connection refused"))
	s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any())

	_, err := s.service.VerifyDocument(context.Background(), models.VerifyRequest{Document: front})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStorage))
	s.assertRemoved(front)
}

func (s *ServiceSuite) TestVerifyDocument_HandleCollisions() {
	s.Run("retries with a fresh handle", func() {
		front := s.writeUpload("front.jpg", "x")
		var seen []domain.Handle

		s.mockScanner.EXPECT().Scan(gomock.Any(), gomock.Any()).Return(&quickscan.ScanResult{Age: 30}, nil)
		gomock.InOrder(
			s.mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, r models.Record) (models.Record, error) {
					seen = append(seen, r.Handle)
					return models.Record{}, sentinel.ErrConflict
				}),
			s.mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, r models.Record) (models.Record, error) {
					seen = append(seen, r.Handle)
					return r, nil
				}),
		)
		s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any())

		result, err := s.service.VerifyDocument(context.Background(), models.VerifyRequest{Document: front})
		s.Require().NoError(err)
		s.Require().Len(seen, 2)
		s.NotEqual(seen[0], seen[1])
		s.Equal(seen[1], result.Handle)

		persist := s.endedSpan(tracer.SpanPersistRecord)
		s.Contains(persist.Attributes(), tracer.AttrHandleAttempt.Int(2))
		s.Require().Len(persist.Events(), 1)
		s.Equal(tracer.EventHandleCollision, persist.Events()[0].Name)
	})

	s.Run("gives up after the configured attempts", func() {
		front := s.writeUpload("front.jpg", "x")
		s.mockScanner.EXPECT().Scan(gomock.Any(), gomock.Any()).Return(&quickscan.ScanResult{Age: 30}, nil)
		s.mockStore.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(models.Record{}, sentinel.ErrConflict).Times(3)
		s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any())

		_, err := s.service.VerifyDocument(context.Background(), models.VerifyRequest{Document: front})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeHandleExhausted))
		s.ErrorIs(err, sentinel.ErrConflict)
		s.assertRemoved(front)

		doc := s.endedSpan(tracer.SpanVerifyDocument)
		s.Equal(codes.Error, doc.Status().Code)
		s.Contains(doc.Attributes(), tracer.AttrErrorCode.String(string(dErrors.CodeHandleExhausted)))
	})
}

func (s *ServiceSuite) TestVerifyDocument_CleanupOnPanic() {
	front := s.writeUpload("front.jpg", "x")
	s.mockScanner.EXPECT().Scan(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, quickscan.ScanRequest) (*quickscan.ScanResult, error) {
			panic("vendor client bug")
		})
	s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).AnyTimes()

	s.Panics(func() {
		_, _ = s.service.VerifyDocument(context.Background(), models.VerifyRequest{Document: front})
	})
	s.assertRemoved(front)
}

func (s *ServiceSuite) TestVerifyDocument_RemovesEachFileOnce() {
	front := s.writeUpload("front.jpg", "x")
	back := s.writeUpload("back.jpg", "y")

	var mu sync.Mutex
	removed := map[string]int{}
	s.service.removeFile = func(path string) error {
		mu.Lock()
		defer mu.Unlock()
		removed[path]++
		return nil
	}

	s.mockScanner.EXPECT().Scan(gomock.Any(), gomock.Any()).Return(&quickscan.ScanResult{Age: 10}, nil)
	s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any())

	_, err := s.service.VerifyDocument(context.Background(), models.VerifyRequest{Document: front, DocumentBack: back})
	s.Require().NoError(err)
	s.Equal(map[string]int{front.Path: 1, back.Path: 1}, removed)
}

func (s *ServiceSuite) TestVerifyDocument_RemovalFailureDoesNotChangeOutcome() {
	front := s.writeUpload("front.jpg", "x")
	s.service.removeFile = func(string) error { return errors.New("read-only filesystem") }

	s.mockScanner.EXPECT().Scan(gomock.Any(), gomock.Any()).Return(&quickscan.ScanResult{Age: 10}, nil)
	s.mockAudit.EXPECT().Log(gomock.Any(), gomock.Any())

	result, err := s.service.VerifyDocument(context.Background(), models.VerifyRequest{Document: front})
	s.Require().NoError(err)
	s.Equal(models.OutcomeIneligible, result.Outcome)
	s.Contains(s.logs.String(), "failed to remove uploaded file")
}

func (s *ServiceSuite) TestVerifyDocument_ConcurrentCallsProduceDistinctHandles() {
	memory := store.NewInMemoryStore()
	svc := New(s.mockScanner, memory, Config{MinAge: 19, ImageBaseURL: testImageBaseURL})
	s.mockScanner.EXPECT().Scan(gomock.Any(), gomock.Any()).Return(&quickscan.ScanResult{Age: 25}, nil).Times(20)

	uploads := make([]*models.Upload, 20)
	for i := range uploads {
		uploads[i] = s.writeUpload("doc-"+string(rune('a'+i))+".jpg", "img")
	}

	var mu sync.Mutex
	handles := map[domain.Handle]struct{}{}
	result := pkgtestutil.RunConcurrent(20, func(i int) error {
		res, err := svc.VerifyDocument(context.Background(), models.VerifyRequest{Document: uploads[i]})
		if err != nil {
			return err
		}
		mu.Lock()
		handles[res.Handle] = struct{}{}
		mu.Unlock()
		return nil
	})

	s.EqualValues(20, result.Successes)
	s.Len(handles, 20)
	s.Equal(20, memory.Count())
	s.assertRemoved(uploads...)
}
