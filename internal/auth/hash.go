package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashString returns a hex-encoded SHA-256 hash for token/code storage.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// hashMatches compares the stored hash of a secret with the hash of a
// submitted value in constant time.
func hashMatches(stored, submitted string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(HashString(submitted))) == 1
}
