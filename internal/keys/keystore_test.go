package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "certledger/pkg/domain-errors"
)

func TestLoadGeneratesOnce(t *testing.T) {
	dir := t.TempDir()

	s1, err := Load(dir)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "private_key.pem"))
	require.FileExists(t, filepath.Join(dir, "public_key.pem"))

	// A second Load must reuse the persisted pair, not mint a new one.
	s2, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(s1.PublicKey()), Fingerprint(s2.PublicKey()))
}

func TestRotateReplacesPair(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)

	before := Fingerprint(s.PublicKey())
	require.NoError(t, s.Rotate())
	assert.NotEqual(t, before, Fingerprint(s.PublicKey()))
}

func TestPublicKeyPEMRoundTrip(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)

	pemBytes, err := s.PublicKeyPEM()
	require.NoError(t, err)

	pub, err := ParsePublicKeyPEM(pemBytes)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(s.PublicKey()), Fingerprint(pub))
}

func TestNormalizePublicKeyPEM(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)
	pemBytes, err := s.PublicKeyPEM()
	require.NoError(t, err)

	normalized, err := NormalizePublicKey(pemBytes)
	require.NoError(t, err)
	assert.Equal(t, string(pemBytes), string(normalized))
}

func TestNormalizePublicKeyJWK(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)

	key, err := jwk.FromRaw(s.PublicKey())
	require.NoError(t, err)
	doc, err := json.Marshal(key)
	require.NoError(t, err)

	normalized, err := NormalizePublicKey(doc)
	require.NoError(t, err)

	pub, err := ParsePublicKeyPEM(normalized)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(s.PublicKey()), Fingerprint(pub))
}

func TestNormalizePublicKeyRejectsNonRSAJWK(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	key, err := jwk.FromRaw(priv.Public())
	require.NoError(t, err)
	doc, err := json.Marshal(key)
	require.NoError(t, err)

	_, err = NormalizePublicKey(doc)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidKeyMaterial))
}

func TestNormalizePublicKeyRejectsGarbage(t *testing.T) {
	for _, input := range [][]byte{
		nil,
		[]byte("   "),
		[]byte("not a key at all"),
		[]byte(`{"kty":"RSA"}`),
		[]byte("-----BEGIN PUBLIC KEY-----\nZ2FyYmFnZQ==\n-----END PUBLIC KEY-----"),
	} {
		_, err := NormalizePublicKey(input)
		require.Error(t, err, "input %q", input)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidKeyMaterial), "input %q", input)
	}
}

func TestLoadRejectsCorruptKeyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "private_key.pem"), []byte("garbage"), 0o600))

	_, err := Load(dir)
	assert.Error(t, err)
}
