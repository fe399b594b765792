// Package providers holds what the vendor clients share: the failure
// taxonomy every client reports in and the HTTP adapter they call through.
package providers

import (
	"errors"
	"fmt"
	"net/http"
)

// Category buckets a vendor failure. Values double as metric labels.
type Category string

const (
	CategoryTimeout     Category = "timeout"
	CategoryBadData     Category = "bad_data"
	CategoryAuth        Category = "authentication"
	CategoryOutage      Category = "provider_outage"
	CategoryRejected    Category = "contract_mismatch"
	CategoryNotFound    Category = "not_found"
	CategoryRateLimited Category = "rate_limited"

	// CategoryInternal is a local failure before or after the call.
	CategoryInternal Category = "internal"
)

// Error is a categorized vendor failure. Status is the HTTP status when the
// vendor answered, 0 otherwise.
type Error struct {
	Category Category
	Provider string
	Status   int
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("provider %s [%s]: %s", e.Provider, e.Category, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(category Category, provider, msg string, cause error) *Error {
	return &Error{Category: category, Provider: provider, Msg: msg, Err: cause}
}

// StatusError classifies a non-2xx vendor answer.
func StatusError(provider string, status int) *Error {
	var (
		c   Category
		msg string
	)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		c, msg = CategoryAuth, "authentication failed"
	case status == http.StatusNotFound:
		c, msg = CategoryNotFound, "resource not found"
	case status == http.StatusTooManyRequests:
		c, msg = CategoryRateLimited, "rate limit exceeded"
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		c, msg = CategoryTimeout, "provider timed out"
	case status >= http.StatusInternalServerError:
		c, msg = CategoryOutage, "provider unavailable"
	default:
		c, msg = CategoryRejected, "request rejected"
	}
	return &Error{Category: c, Provider: provider, Status: status, Msg: fmt.Sprintf("%s: %d", msg, status)}
}

// CategoryOf finds the *Error in err's chain; anything else is internal.
func CategoryOf(err error) Category {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return CategoryInternal
}
