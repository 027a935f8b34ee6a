// Package audit captures structured events for issuance and verification
// activity. Emission is best-effort and asynchronous where possible: a
// verification verdict must never fail because the audit pipeline is down.
package audit

import (
	"context"
	"time"
)

// Action labels what happened.
type Action string

const (
	ActionCertificateIssued  Action = "certificate_issued"
	ActionCertificateRevoked Action = "certificate_revoked"
	ActionDuplicateRejected  Action = "duplicate_digest_rejected"
	ActionAttemptRecorded    Action = "attempt_recorded"
	ActionSessionStarted     Action = "session_started"
	ActionSessionEnded       Action = "session_ended"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	// Subject is the primary entity id: certificate id, attempt id, or
	// session id depending on the action.
	Subject string `json:"subject"`
	// Digest, Verdict and SessionID are populated where relevant.
	Digest    string `json:"digest,omitempty"`
	Verdict   string `json:"verdict,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Publisher is the emission seam. The Kafka publisher is the production
// implementation; Noop serves dev and tests.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
	Close()
}

// Noop drops all events.
type Noop struct{}

func (Noop) Emit(context.Context, Event) error { return nil }
func (Noop) Close()                            {}
