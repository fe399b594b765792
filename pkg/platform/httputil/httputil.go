// Package httputil renders JSON responses and maps domain error codes onto
// HTTP statuses.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "kycproxy/pkg/domain-errors"
)

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

type rendering struct {
	status int
	slug   string
}

var renderings = map[dErrors.Code]rendering{
	dErrors.CodeBadRequest:         {http.StatusBadRequest, "bad_request"},
	dErrors.CodeInvalidInput:       {http.StatusBadRequest, "bad_request"},
	dErrors.CodeValidation:         {http.StatusBadRequest, "validation_error"},
	dErrors.CodeNotFound:           {http.StatusNotFound, "not_found"},
	dErrors.CodeConflict:           {http.StatusConflict, "conflict"},
	dErrors.CodeTimeout:            {http.StatusGatewayTimeout, "provider_timeout"},
	dErrors.CodeVerificationFailed: {http.StatusBadGateway, "verification_failed"},
	dErrors.CodeUpstream:           {http.StatusBadGateway, "upstream_unavailable"},
	dErrors.CodeHandleExhausted:    {http.StatusServiceUnavailable, "handle_exhausted"},
	dErrors.CodeStorage:            {http.StatusInternalServerError, "storage_failed"},
	dErrors.CodeInternal:           {http.StatusInternalServerError, "internal_error"},
}

var internal = renderings[dErrors.CodeInternal]

func render(code dErrors.Code) rendering {
	if r, ok := renderings[code]; ok {
		return r
	}
	return internal
}

// WriteJSON sends v with status. Encoding errors are dropped: the status
// line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err. Only the domain message is exposed; causes and
// errors without a code become a bare internal_error.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		WriteJSON(w, internal.status, ErrorResponse{Error: internal.slug})
		return
	}
	r := render(de.Code)
	WriteJSON(w, r.status, ErrorResponse{Error: r.slug, Description: de.Message})
}
