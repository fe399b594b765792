// Package models holds the rate limiting result and response types.
package models

import "time"

// Result is the outcome of consuming from a bucket.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is whole seconds until the next allowed request; only set when denied.
	RetryAfter int
}

// ExceededResponse is the body of a 429 reply.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds.
func RetryAfterSeconds(allowed bool, resetAt, now time.Time) int {
	if allowed {
		return 0
	}
	wait := resetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	seconds := int(wait / time.Second)
	if wait%time.Second != 0 {
		seconds++
	}
	return seconds
}
