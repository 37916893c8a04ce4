package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/keymint/keymint-server/internal/model"
)

const refreshSecretBytes = 32

// NewRefreshSecret generates an opaque high-entropy refresh token. The raw
// value is transmitted to the caller once; only its hash is ever stored.
func NewRefreshSecret() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh secret: %w", err)
	}
	return model.RefreshTokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashRefreshSecret produces the one-way hash under which a refresh secret
// is stored and looked up.
func HashRefreshSecret(raw string) []byte {
	h := sha256.Sum256([]byte(raw))
	return h[:]
}

// EqualHashes compares two secret hashes in constant time.
func EqualHashes(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
