package models

import "time"

// AttemptSummary is the per-attempt projection appended to a session's
// history. The full attempt (with actor metadata) lives in the attempt
// store; the summary is what the guest gets back from the history endpoint.
type AttemptSummary struct {
	AttemptID         string         `json:"attempt_id"`
	CertificateNumber string         `json:"certificate_number,omitempty"`
	OCRData           map[string]any `json:"ocr_data,omitempty"`
	Status            string         `json:"status"`
	UploadedAt        time.Time      `json:"uploaded_at"`
}

// GuestSession groups verification attempts from one anonymous client.
//
// Lifecycle: created on first contact, mutated only by appending attempt
// summaries, transitions to ended exactly once and is append-proof
// afterward. Uniqueness of the id is the only cross-session guarantee.
type GuestSession struct {
	ID        string           `json:"id"`
	IPAddress string           `json:"ip_address,omitempty"`
	UserAgent string           `json:"user_agent,omitempty"`
	Attempts  []AttemptSummary `json:"attempts"`
	Ended     bool             `json:"ended"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Active reports whether the session still accepts attempts.
func (s *GuestSession) Active() bool {
	return !s.Ended
}
