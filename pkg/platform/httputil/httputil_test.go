package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kycproxy/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		want       ErrorResponse
	}{
		{"provider timeout", dErrors.New(dErrors.CodeTimeout, "quickscan did not answer"), http.StatusGatewayTimeout,
			ErrorResponse{Error: "provider_timeout", Description: "quickscan did not answer"}},
		{"verification failure", dErrors.New(dErrors.CodeVerificationFailed, "document rejected"), http.StatusBadGateway,
			ErrorResponse{Error: "verification_failed", Description: "document rejected"}},
		{"exhausted handles", dErrors.New(dErrors.CodeHandleExhausted, ""), http.StatusServiceUnavailable,
			ErrorResponse{Error: "handle_exhausted"}},
		{"wrapped keeps only the domain message", fmt.Errorf("service: %w", dErrors.New(dErrors.CodeNotFound, "no records")), http.StatusNotFound,
			ErrorResponse{Error: "not_found", Description: "no records"}},
		{"cause is hidden", dErrors.Wrap(errors.New("pq: password authentication failed"), dErrors.CodeStorage, "store record"), http.StatusInternalServerError,
			ErrorResponse{Error: "storage_failed", Description: "store record"}},
		{"invalid input", dErrors.New(dErrors.CodeInvalidInput, "date of birth is in the future"), http.StatusBadRequest,
			ErrorResponse{Error: "bad_request", Description: "date of birth is in the future"}},
		{"upstream", dErrors.New(dErrors.CodeUpstream, ""), http.StatusBadGateway,
			ErrorResponse{Error: "upstream_unavailable"}},
		{"plain error", errors.New("secret detail"), http.StatusInternalServerError,
			ErrorResponse{Error: "internal_error"}},
		{"unknown code", dErrors.New("made_up", "x"), http.StatusInternalServerError,
			ErrorResponse{Error: "internal_error", Description: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var got ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, rec.Body.String(), "password")
			assert.NotContains(t, rec.Body.String(), "secret detail")
		})
	}
}
