// Package keys owns the issuer key pair and public-key normalization.
// The pair is generated once, persisted as PEM next to the service, and
// never regenerated implicitly; Rotate is the only path to a new pair.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	privateKeyFile = "private_key.pem"
	publicKeyFile  = "public_key.pem"

	keyBits = 2048
)

// Store holds the issuer's RSA key pair.
type Store struct {
	mu   sync.RWMutex
	dir  string
	priv *rsa.PrivateKey
}

// Load opens the key store at dir, generating and persisting a fresh pair
// only when none exists yet.
func Load(dir string) (*Store, error) {
	s := &Store{dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, privateKeyFile))
	switch {
	case err == nil:
		priv, err := parsePrivateKeyPEM(data)
		if err != nil {
			return nil, fmt.Errorf("parse issuer private key: %w", err)
		}
		s.priv = priv
		return s, nil
	case os.IsNotExist(err):
		if err := s.generate(); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("read issuer private key: %w", err)
	}
}

// PrivateKey returns the signing key. Issuing side only; the key never
// crosses the service boundary.
func (s *Store) PrivateKey() *rsa.PrivateKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priv
}

// PublicKey returns the distributable half of the pair.
func (s *Store) PublicKey() *rsa.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &s.priv.PublicKey
}

// PublicKeyPEM returns the public key in PKIX PEM form.
func (s *Store) PublicKeyPEM() ([]byte, error) {
	return MarshalPublicKeyPEM(s.PublicKey())
}

// Rotate generates and persists a new pair. Certificates issued under the
// old key keep their stored public key, so prior signatures stay verifiable.
func (s *Store) Rotate() error {
	return s.generate()
}

func (s *Store) generate() error {
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return fmt.Errorf("generate issuer key pair: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
	if err := os.WriteFile(filepath.Join(s.dir, privateKeyFile), privPEM, 0o600); err != nil {
		return fmt.Errorf("persist private key: %w", err)
	}

	pubPEM, err := MarshalPublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, publicKeyFile), pubPEM, 0o644); err != nil {
		return fmt.Errorf("persist public key: %w", err)
	}

	s.mu.Lock()
	s.priv = priv
	s.mu.Unlock()
	return nil
}

// MarshalPublicKeyPEM encodes a public key as PKIX PEM.
func MarshalPublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ParsePublicKeyPEM decodes a PKIX or PKCS#1 PEM public key.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("unsupported public key type %T", pub)
		}
		return rsaPub, nil
	}
	rsaPub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return rsaPub, nil
}

// Fingerprint identifies a public key by the SHA-256 of its PKIX DER form.
// Used to detect signatures presented under a different key than the one a
// certificate was issued with.
func Fingerprint(pub *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

func parsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if priv, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return priv, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	return priv, nil
}
