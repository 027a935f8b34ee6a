// Package signature implements issuer signing and verification over
// certificate digests: RSA-PSS with SHA-256 and MGF1, signed over the ASCII
// bytes of the lowercase hex digest.
//
// Verify never returns an error and never panics on attacker-controlled
// input. Failures are classified into reasons so callers and tests can tell
// malformed bytes from a genuinely invalid signature; all of them map to a
// Tampered verdict, never to exceptional control flow.
package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"certledger/internal/keys"
)

// Reason classifies a verification outcome.
type Reason string

const (
	ReasonOK                 Reason = "ok"
	ReasonSignatureMalformed Reason = "signature_malformed"
	ReasonSignatureInvalid   Reason = "signature_invalid"
	ReasonKeyMismatch        Reason = "key_mismatch"
)

// Result is the outcome of a verification. Valid is true only with ReasonOK.
type Result struct {
	Valid  bool
	Reason Reason
}

var pssOpts = &rsa.PSSOptions{
	SaltLength: rsa.PSSSaltLengthAuto,
	Hash:       crypto.SHA256,
}

// Sign produces a hex-encoded RSA-PSS signature over the digest.
func Sign(digest string, priv *rsa.PrivateKey) (string, error) {
	if priv == nil {
		return "", fmt.Errorf("nil private key")
	}
	hashed := sha256.Sum256([]byte(digest))
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, hashed[:], pssOpts)
	if err != nil {
		return "", fmt.Errorf("sign digest: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify checks sigHex over digest under pub. Malformed signature bytes and
// failed verification are both reported as a Result, never as an error.
func Verify(digest, sigHex string, pub *rsa.PublicKey) Result {
	if pub == nil {
		return Result{Valid: false, Reason: ReasonKeyMismatch}
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) == 0 {
		return Result{Valid: false, Reason: ReasonSignatureMalformed}
	}
	hashed := sha256.Sum256([]byte(digest))
	if err := rsa.VerifyPSS(pub, crypto.SHA256, hashed[:], sig, pssOpts); err != nil {
		return Result{Valid: false, Reason: ReasonSignatureInvalid}
	}
	return Result{Valid: true, Reason: ReasonOK}
}

// VerifyWithFingerprint additionally pins the verifying key to the
// fingerprint recorded at issuance. A valid-looking signature presented
// under a different key reports ReasonKeyMismatch.
func VerifyWithFingerprint(digest, sigHex string, pub *rsa.PublicKey, issuedFingerprint string) Result {
	if pub != nil && issuedFingerprint != "" && keys.Fingerprint(pub) != issuedFingerprint {
		return Result{Valid: false, Reason: ReasonKeyMismatch}
	}
	return Verify(digest, sigHex, pub)
}
