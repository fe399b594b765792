// Package audit records what the proxy did with each verification request.
// Events go to the structured log and, when Kafka is configured, to the
// audit topic.
package audit

import (
	"context"
	"time"
)

// Action names an audited step. Values are stable: consumers key on them.
type Action string

const (
	ActionDocumentVerified           Action = "document_verified"
	ActionDocumentIneligible         Action = "document_ineligible"
	ActionDocumentVerificationFailed Action = "document_verification_failed"
	ActionSessionCreated             Action = "verification_session_created"
	ActionDecisionRead               Action = "verification_decision_read"
)

// Event never carries document bytes, dates of birth or full client IPs.
// Subject is the record handle or session ID.
type Event struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Action         Action    `json:"action"`
	Subject        string    `json:"subject,omitempty"`
	Outcome        string    `json:"outcome,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	ClientIPPrefix string    `json:"client_ip_prefix,omitempty"`
}

// Store appends events; implementations never rewrite history.
type Store interface {
	Append(ctx context.Context, event Event) error
}
