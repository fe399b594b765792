package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	dErrors "kycproxy/pkg/domain-errors"
	"kycproxy/pkg/requestcontext"
)

// Sanitizer and Validator are the hooks Prepare runs, sanitizing first.
type (
	Sanitizer interface{ Sanitize() }
	Validator interface{ Validate() error }
)

// ReadJSON decodes a single JSON document from the request body. An empty
// body yields the zero value. Trailing content after the document is rejected.
func ReadJSON[T any](r *http.Request) (*T, error) {
	var v T
	if r.Body == nil {
		return &v, nil
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return &v, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	if dec.More() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body must contain a single JSON object")
	}
	return &v, nil
}

// Prepare runs the hooks v implements. Errors from Validate keep their
// domain code; plain errors become validation errors.
func Prepare(v any) error {
	if s, ok := v.(Sanitizer); ok {
		s.Sanitize()
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
		}
	}
	return nil
}

// Bind reads and prepares a T from the request. On failure it writes the
// error response and returns false.
//
//	req, ok := httputil.Bind[models.CreateSessionRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func Bind[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	v, err := ReadJSON[T](r)
	if err == nil {
		err = Prepare(v)
	}
	if err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "rejected request body",
				"error", err,
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(r.Context()),
			)
		}
		WriteError(w, err)
		return nil, false
	}
	return v, true
}
