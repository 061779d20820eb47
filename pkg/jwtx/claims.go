package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Short-lived access tokens limit the window in which a
// leaked token is useful; the refresh TTL bounds how long a session can live
// without re-authentication.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Identity is the principal payload embedded in every issued token.
type Identity struct {
	ID    string
	Email string
	Role  string
}

// Claims are the token claims carried by access and refresh tokens. Both
// token classes share the same shape; only the signing secret and TTL differ.
type Claims struct {
	jwt.RegisteredClaims

	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Identity reconstructs the principal payload from verified claims.
func (c Claims) Identity() Identity {
	return Identity{ID: c.Subject, Email: c.Email, Role: c.Role}
}

// newJTI returns a URL-safe random identifier for the "jti" claim.
func newJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
