package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// idBytes is the entropy of a session id (256 bits)
const idBytes = 32

// Fingerprint binds a session to the client that created it. Each part is
// length prefixed so no two (address, agent) pairs share an encoding.
func Fingerprint(networkAddress, clientAgent string) string {
	h := sha256.New()
	for _, part := range []string{networkAddress, clientAgent} {
		_, _ = fmt.Fprintf(h, "%d:%s", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NewID returns a URL-safe random session id
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
