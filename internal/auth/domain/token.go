package domain

import "time"

// TokenPair is what the login endpoint returns: the short-lived access
// token and the longer-lived refresh token, both JWTs.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"` // always "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // seconds until access token expiry
}

// RefreshToken models the stored refresh token record. Only the
// fingerprint of the raw token is ever persisted. Records are marked
// revoked rather than deleted so the audit trail survives.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	FamilyID  string // groups every token descending from one login
	ClientIP  string
	UserAgent string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time // nullable, set once
}

func (t RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

func (t RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
