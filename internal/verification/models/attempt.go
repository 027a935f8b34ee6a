package models

import (
	"time"

	"github.com/google/uuid"
)

// Verdict is the outcome of classifying one submitted document against the
// system of record.
type Verdict string

const (
	// VerdictApproved: record matched and every comparable field agreed.
	VerdictApproved Verdict = "Approved"
	// VerdictFraud: record missing, revoked, a field mismatched, or the
	// signature check failed. Absence of trust classifies as fraud.
	VerdictFraud Verdict = "Fraud"
	// VerdictDoubtful: extraction too incomplete to decide.
	VerdictDoubtful Verdict = "Doubtful"
)

// VerificationAttempt is one append-only row per submitted document.
type VerificationAttempt struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	// RecordID points at the matched system-of-record row, nil when no
	// record was found.
	RecordID *uuid.UUID `json:"record_id,omitempty"`
	// BusinessKey is the enrollment or statement number the match ran on.
	BusinessKey  string         `json:"business_key,omitempty"`
	OCRPayload   map[string]any `json:"ocr_payload,omitempty"`
	Verdict      Verdict        `json:"verdict"`
	Reason       string         `json:"reason,omitempty"`
	UploadedFile string         `json:"uploaded_file,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// FileResult is the per-file slice of the verification response.
type FileResult struct {
	FileName        string         `json:"file_name"`
	AttemptID       uuid.UUID      `json:"attempt_id"`
	ExtractedFields map[string]any `json:"extracted_fields,omitempty"`
	Digest          string         `json:"digest,omitempty"`
	Verdict         Verdict        `json:"verdict"`
	Reason          string         `json:"reason,omitempty"`
}
