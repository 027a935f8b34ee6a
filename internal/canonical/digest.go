package canonical

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/asaskevich/govalidator"
)

// DigestHexLen is the length of a SHA-256 digest in lowercase hex.
const DigestHexLen = 64

// Digest computes the SHA-256 of the canonical serialization, returned as
// lowercase hex. Pure and total: every byte slice digests.
func Digest(serialized []byte) string {
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}

// DigestRecord is the usual entry point: serialize then hash.
func DigestRecord(r Record) string {
	return Digest(r.Serialize())
}

// IsDigest reports whether s looks like a well-formed digest. Used at trust
// boundaries before any store lookup.
func IsDigest(s string) bool {
	return len(s) == DigestHexLen && govalidator.IsHexadecimal(s)
}
