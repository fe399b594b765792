package request

import (
	"net/http"

	"kycproxy/pkg/platform/httputil"
)

// BodyLimit rejects requests whose declared Content-Length exceeds maxBytes
// with 413 and caps the rest with http.MaxBytesReader, so chunked bodies fail
// on the read that crosses the limit.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
					"error":     "request_too_large",
					"max_bytes": maxBytes,
				})
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
