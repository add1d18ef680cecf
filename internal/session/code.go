package session

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// codeAlphabet deliberately uses the full uppercase alphanumeric set; at
// 36^6 combinations a collision among concurrently active sessions is
// negligible, and write-time uniqueness checks are the backstop.
const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// newSessionID returns an opaque session identifier.
func newSessionID(t time.Time) string {
	return fmt.Sprintf("sess_%d_%s", t.UnixMilli(), uuid.NewString()[:8])
}

// newCode returns a 6-character uppercase alphanumeric sonic code.
func newCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate sonic code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
