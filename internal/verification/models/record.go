// Package models holds the system-of-record and attempt types for document
// verification.
package models

import (
	"time"

	"github.com/google/uuid"
)

// CertificateRecord is one authoritative row in the system of record,
// uploaded by an institute. Enrollment and statement numbers are the
// business keys a submitted document is matched against.
type CertificateRecord struct {
	ID           uuid.UUID `json:"id"`
	InstituteID  uuid.UUID `json:"institute_id"`
	EnrollmentNo string    `json:"enrollment_no"`
	StatementNo  string    `json:"statement_no,omitempty"`
	StudentName  string    `json:"student_name"`
	Course       string    `json:"course"`
	Branch       string    `json:"branch,omitempty"`
	Semester     string    `json:"semester,omitempty"`
	University   string    `json:"university,omitempty"`
	Subjects     []string  `json:"subjects,omitempty"`
	// IssueDate is stored normalized as YYYY-MM-DD.
	IssueDate string `json:"issue_date,omitempty"`
	// Digest and SignatureHex are set when the record was issued through
	// the signed ledger; they enable the signature stage of classification.
	Digest         string    `json:"digest,omitempty"`
	SignatureHex   string    `json:"signature_hex,omitempty"`
	KeyFingerprint string    `json:"key_fingerprint,omitempty"`
	Revoked        bool      `json:"revoked"`
	CreatedAt      time.Time `json:"created_at"`
}
