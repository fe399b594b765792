package models

import (
	"strings"
	"time"

	"kycproxy/pkg/domain"
	"kycproxy/pkg/validation"
)

// PlaceholderImage is served for every record until per-user images exist.
const PlaceholderImage = "user.png"

// Outcome is the non-error result of a document verification.
type Outcome string

const (
	OutcomeVerified   Outcome = "verified"
	OutcomeIneligible Outcome = "ineligible"
)

// IneligibleMessage is returned when the extracted age is below the threshold.
const IneligibleMessage = "user is not old enough"

// Record is a persisted verification result. Records are insert-only.
type Record struct {
	ID        domain.RecordID
	Age       int
	Handle    domain.Handle
	CreatedAt time.Time
}

// Upload references an ephemeral file written by the upload layer. The
// pipeline removes it when it finishes.
type Upload struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// VerifyRequest carries the front image and an optional back image.
type VerifyRequest struct {
	Document     *Upload
	DocumentBack *Upload
}

// Uploads lists the files referenced by the request.
func (r VerifyRequest) Uploads() []*Upload {
	var out []*Upload
	if r.Document != nil {
		out = append(out, r.Document)
	}
	if r.DocumentBack != nil {
		out = append(out, r.DocumentBack)
	}
	return out
}

// Result is the outcome of a processed verification. Failures are returned
// as errors, never as a Result.
type Result struct {
	Outcome      Outcome
	Age          int
	Handle       domain.Handle
	UserImageURL string
	Message      string
}

// LookupResult lists records matching a handle, oldest first.
type LookupResult struct {
	Records      []Record
	UserImageURL string
}

// CreateSessionRequest starts a hosted verification session.
type CreateSessionRequest struct {
	VendorData  string `json:"vendorData" validate:"max=1000"`
	CallbackURL string `json:"callbackUrl" validate:"omitempty,http_url,max=2048"`
}

// Sanitize trims surrounding whitespace.
func (r *CreateSessionRequest) Sanitize() {
	r.VendorData = strings.TrimSpace(r.VendorData)
	r.CallbackURL = strings.TrimSpace(r.CallbackURL)
}

// Validate checks field formats and lengths.
func (r *CreateSessionRequest) Validate() error {
	return validation.Validate(r)
}

// Session is a created hosted verification session.
type Session struct {
	ID     domain.SessionID
	URL    string
	Status string
}

// SessionDecision is the vendor verdict with the adult gate applied.
type SessionDecision struct {
	SessionID          domain.SessionID
	Status             string
	VerificationStatus string
	DateOfBirthValid   bool
	Adult              bool
}

// ImageURL builds the user image URL from a base URL without trailing slash.
func ImageURL(baseURL string) string {
	return baseURL + "/" + PlaceholderImage
}
