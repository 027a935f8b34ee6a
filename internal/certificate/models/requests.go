package models

import "encoding/json"

// IssueRequest supports the two issuance shapes. Either Fields is present
// and the server canonicalizes and signs with the issuer key, or the caller
// supplies a pre-signed triple (canonical_json, digest, signature_hex) plus
// the issuer public key in PEM or JWK form.
type IssueRequest struct {
	Fields     map[string]any `json:"fields,omitempty"`
	University string         `json:"university,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`

	CanonicalJSON string          `json:"canonical_json,omitempty"`
	Digest        string          `json:"digest,omitempty"`
	SignatureHex  string          `json:"signature_hex,omitempty"`
	PublicKeyPEM  string          `json:"public_key_pem,omitempty"`
	PublicKeyJWK  json.RawMessage `json:"public_key_jwk,omitempty"`
}

// PreSigned reports whether the caller supplied the signed triple.
func (r IssueRequest) PreSigned() bool {
	return r.CanonicalJSON != "" || r.Digest != "" || r.SignatureHex != ""
}

// IssueResponse carries the new ledger entry id.
type IssueResponse struct {
	CertificateID string `json:"certificate_id"`
	Digest        string `json:"digest"`
}

// VerifyDigestRequest is the verify-by-digest input.
type VerifyDigestRequest struct {
	Digest string `json:"digest"`
}

// VerifyDigestResponse pairs the verdict with the matched entry, if any.
type VerifyDigestResponse struct {
	Verdict     DigestVerdict `json:"verdict"`
	Reason      string        `json:"reason,omitempty"`
	Certificate *Summary      `json:"certificate,omitempty"`
}
