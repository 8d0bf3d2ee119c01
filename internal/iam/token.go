package iam

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// HashToken returns the hex SHA256 of a raw token. Raw tokens are never
// stored or logged; every lookup goes through this hash.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns a short base58 digest of a token, safe to log and show
// in listings. It is derived from the hash, never the raw token, and is too
// short to invert.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base58.Encode(sum[:8])
}

// NewToken mints a raw opaque token: 32 random bytes, URL-safe encoded.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenMetadata is the envelope-encrypted payload stored alongside an access
// or refresh token record.
type TokenMetadata struct {
	Email       string   `json:"email"`
	UserID      string   `json:"user_id"`
	Groups      []string `json:"groups"`
	Fingerprint string   `json:"fingerprint"`
	IssuedAt    int64    `json:"issued_at"`
}

// SessionPayload is the envelope-encrypted payload stored with a web
// session: the upstream ID token (for group extraction on each request) and
// the groups asserted at login time.
type SessionPayload struct {
	IDToken        string   `json:"id_token,omitempty"`
	AssertedGroups []string `json:"asserted_groups,omitempty"`
}
