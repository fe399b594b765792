// Package domain provides type-safe identifiers and pure business rules shared
// across the service.
package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	dErrors "kycproxy/pkg/domain-errors"
)

// HandleBytes is the amount of crypto-random entropy behind every handle.
const HandleBytes = 16

// MaxHandleLength bounds handle input accepted at trust boundaries.
const MaxHandleLength = 128

// MaxSessionIDLength bounds vendor session identifiers accepted from callers.
const MaxSessionIDLength = 128

type (
	// RecordID is the storage identifier of a verification record. It is never
	// exposed to callers; Handle is the external key.
	RecordID uuid.UUID

	// Handle is the opaque external identifier of a verification record.
	// It is random, not derived from personal data.
	Handle string

	// SessionID identifies a verification session at the session provider.
	SessionID string
)

// NewRecordID returns a fresh random record identifier.
func NewRecordID() RecordID {
	return RecordID(uuid.New())
}

// NewHandle generates a handle from HandleBytes of crypto-random data, hex encoded.
// Uniqueness is probabilistic; the store enforces it.
func NewHandle() (Handle, error) {
	buf := make([]byte, HandleBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate handle")
	}
	return Handle(hex.EncodeToString(buf)), nil
}

// ParseHandle validates caller-provided handles. Handles are hex strings; the
// check is lenient on length so records created with older handle sizes stay
// addressable.
func ParseHandle(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "handle cannot be empty")
	}
	if len(s) > MaxHandleLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "handle is too long")
	}
	if _, err := hex.DecodeString(evenLength(s)); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "handle must be hexadecimal")
	}
	return Handle(strings.ToLower(s)), nil
}

// ParseSessionID validates a vendor session identifier taken from a URL path.
func ParseSessionID(s string) (SessionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "session ID cannot be empty")
	}
	if len(s) > MaxSessionIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "session ID is too long")
	}
	if strings.ContainsAny(s, "/?#") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "session ID contains invalid characters")
	}
	return SessionID(s), nil
}

func evenLength(s string) string {
	if len(s)%2 == 1 {
		return "0" + s
	}
	return s
}

func (id RecordID) String() string  { return uuid.UUID(id).String() }
func (h Handle) String() string     { return string(h) }
func (id SessionID) String() string { return string(id) }

func (id RecordID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (h Handle) IsNil() bool     { return h == "" }
func (id SessionID) IsNil() bool { return id == "" }
