package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DigestVerdict is the three-state outcome of a verify-by-digest check
// against the signed ledger.
type DigestVerdict string

const (
	// VerdictVerified: digest found, signature verifies under the stored key.
	VerdictVerified DigestVerdict = "Verified"
	// VerdictTampered: digest absent from the ledger, record revoked, or the
	// signature fails. Absence of trust is treated the same as active
	// tampering.
	VerdictTampered DigestVerdict = "Tampered"
	// VerdictUnknown: the ledger entry exists but carries no public key, so
	// no cryptographic statement can be made.
	VerdictUnknown DigestVerdict = "Unknown"
)

// Certificate is one signed ledger entry.
//
// Invariants:
//   - Digest is unique across the ledger; duplicate issuance of the same
//     canonical content is rejected, not overwritten.
//   - Entries are read-only after creation; revocation flips a status flag,
//     it never erases.
type Certificate struct {
	ID            uuid.UUID       `json:"id"`
	University    string          `json:"university"`
	CanonicalJSON string          `json:"canonical_json"`
	Digest        string          `json:"digest"`
	SignatureHex  string          `json:"signature_hex"`
	PublicKeyPEM  string          `json:"public_key_pem"`
	PublicKeyJWK  json.RawMessage `json:"public_key_jwk,omitempty"`
	// KeyFingerprint pins the key the signature was issued under, so a
	// later verification under a different key reports a key mismatch.
	KeyFingerprint string         `json:"key_fingerprint,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Revoked        bool           `json:"revoked"`
	IssuedAt       time.Time      `json:"issued_at"`
}

// Summary is the caller-facing projection returned with verdicts; the
// signature and key material stay server-side.
type Summary struct {
	ID            uuid.UUID      `json:"id"`
	University    string         `json:"university"`
	CanonicalJSON string         `json:"canonical_json"`
	Digest        string         `json:"digest"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Revoked       bool           `json:"revoked"`
	IssuedAt      time.Time      `json:"issued_at"`
}

func (c *Certificate) Summarize() *Summary {
	return &Summary{
		ID:            c.ID,
		University:    c.University,
		CanonicalJSON: c.CanonicalJSON,
		Digest:        c.Digest,
		Metadata:      c.Metadata,
		Revoked:       c.Revoked,
		IssuedAt:      c.IssuedAt,
	}
}
