package order

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MintQRToken generates a one-time 32-byte secret and its SHA-256 hex digest.
// The raw token is returned to the caller exactly once; only the hash is
// ever persisted. A lost raw token cannot be recovered.
func MintQRToken() (raw string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate QR token: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, HashQRToken(raw), nil
}

// HashQRToken returns the SHA-256 hex digest of a raw token, the form stored
// on the order and compared at verification time.
func HashQRToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
