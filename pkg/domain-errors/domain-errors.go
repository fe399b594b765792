// Package domainerrors carries a stable failure Code from the layer that
// detects a problem to the HTTP boundary that renders it.
package domainerrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeValidation   Code = "validation_failed"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"

	// CodeVerificationFailed covers every quickscan failure mode: transport
	// errors, non-2xx answers and bodies that do not decode.
	CodeVerificationFailed Code = "verification_failed"
	CodeUpstream           Code = "upstream_unavailable"
	CodeStorage            Code = "storage_failed"
	CodeHandleExhausted    Code = "handle_exhausted"
)

// Error is a coded failure. Message is safe to show to clients; Err is the
// cause and only reaches logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Code, so errors.Is(err, New(CodeNotFound, ""))
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	return errors.As(target, &t) && t.Code == e.Code
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches msg to err. If err already carries a code that code wins and
// code is only the fallback.
func Wrap(err error, code Code, msg string) error {
	if existing, ok := CodeOf(err); ok {
		code = existing
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// Reclassify forces code onto err. Use it at boundaries where an inner code
// must not leak, e.g. a store conflict that the caller reports as exhaustion.
func Reclassify(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost code in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
