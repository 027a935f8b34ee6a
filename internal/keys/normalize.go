package keys

import (
	"bytes"
	"crypto/rsa"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"

	dErrors "certledger/pkg/domain-errors"
)

// NormalizePublicKey accepts issuer public-key material either as PEM or as
// a JWK document and returns the canonical PKIX PEM form. All verification
// code downstream deals in PEM only.
//
// Errors carry CodeInvalidKeyMaterial when the input is neither valid PEM
// nor a well-formed JWK.
func NormalizePublicKey(candidate []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(candidate)
	if len(trimmed) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidKeyMaterial, "empty public key")
	}

	if bytes.Contains(trimmed, []byte("-----BEGIN")) {
		pub, err := ParsePublicKeyPEM(trimmed)
		if err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInvalidKeyMaterial, "invalid PEM public key", err)
		}
		return MarshalPublicKeyPEM(pub)
	}

	pub, err := publicKeyFromJWK(trimmed)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInvalidKeyMaterial, "input is neither PEM nor a well-formed JWK", err)
	}
	return MarshalPublicKeyPEM(pub)
}

func publicKeyFromJWK(doc []byte) (*rsa.PublicKey, error) {
	key, err := jwk.ParseKey(doc)
	if err != nil {
		return nil, fmt.Errorf("parse JWK: %w", err)
	}

	pubJWK, err := key.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public JWK: %w", err)
	}

	var raw any
	if err := pubJWK.Raw(&raw); err != nil {
		return nil, fmt.Errorf("materialize JWK: %w", err)
	}
	pub, ok := raw.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported JWK key type %T", raw)
	}
	return pub, nil
}
