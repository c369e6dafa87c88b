package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters.
const (
	// minIterations is the lowest iteration count the hasher will accept.
	minIterations = 1000

	// DefaultIterations is the PBKDF2-SHA256 iteration count used when no
	// configuration is supplied.
	DefaultIterations = 10000

	// digestLen is the derived key length in bytes (64 hex characters).
	digestLen = 32

	// saltBytes is the length of generated per-account salts.
	saltBytes = 16
)

// Hasher derives and verifies salted iterated password digests.
//
// The digest function is PBKDF2-SHA256 rendered as lowercase hex. Salts are
// caller-supplied so the digest is deterministic for a (password, salt)
// pair; account creation pairs each credential with a random salt from
// NewSalt. Verification is constant-time over the decoded digests.
type Hasher struct {
	iterations int
}

// NewHasher creates a Hasher with the given iteration count.
// Counts below the minimum are raised to the default.
func NewHasher(iterations int) *Hasher {
	if iterations < minIterations {
		iterations = DefaultIterations
	}
	return &Hasher{iterations: iterations}
}

// Hash derives a hex digest from a raw password and salt.
// An empty password is rejected with ErrInvalidInput.
func (h *Hasher) Hash(raw, salt string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: password must not be empty", ErrInvalidInput)
	}

	key := pbkdf2.Key([]byte(raw), []byte(salt), h.iterations, digestLen, sha256.New)
	return hex.EncodeToString(key), nil
}

// Verify recomputes the digest for the raw password and compares it against
// the stored digest in constant time.
func (h *Hasher) Verify(raw, salt, storedDigest string) (bool, error) {
	candidate, err := h.Hash(raw, salt)
	if err != nil {
		return false, err
	}

	stored, err := hex.DecodeString(storedDigest)
	if err != nil {
		return false, fmt.Errorf("decoding stored digest: %w", err)
	}

	candidateBytes, _ := hex.DecodeString(candidate) //nolint:errcheck // Hash output is always valid hex

	return subtle.ConstantTimeCompare(stored, candidateBytes) == 1, nil
}

// NewSalt generates a random per-account salt as a hex string.
func NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}
