package service

import (
	"context"
	"errors"

	"go.uber.org/mock/gomock"

	"kycproxy/internal/verification/models"
	"kycproxy/pkg/domain"
	dErrors "kycproxy/pkg/domain-errors"
	"kycproxy/pkg/testutil"
)

func (s *ServiceSuite) TestLookup() {
	ctx := context.Background()

	s.Run("returns matching record with image url", func() {
		record := testutil.NewRecordBuilder().WithAge(22).WithHandle("c0ffee").Build()
		s.mockStore.EXPECT().FindByHandle(gomock.Any(), domain.Handle("c0ffee")).Return([]models.Record{record}, nil)

		result, err := s.service.Lookup(ctx, "C0FFEE")
		s.Require().NoError(err)
		s.Equal([]models.Record{record}, result.Records)
		s.Equal(testImageBaseURL+"/user.png", result.UserImageURL)
	})

	s.Run("no match is an empty collection", func() {
		s.mockStore.EXPECT().FindByHandle(gomock.Any(), gomock.Any()).Return(nil, nil)

		result, err := s.service.Lookup(ctx, "abcd")
		s.Require().NoError(err)
		s.NotNil(result.Records)
		s.Empty(result.Records)
	})

	s.Run("rejects malformed handle before touching the store", func() {
		_, err := s.service.Lookup(ctx, "not-a-handle")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("store failure is a storage error", func() {
		s.mockStore.EXPECT().FindByHandle(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

		_, err := s.service.Lookup(ctx, "abcd")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeStorage))
	})
}
