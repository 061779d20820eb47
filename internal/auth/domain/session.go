package domain

import "time"

// Session records a live console login. The durable row is the source of
// truth; the cache copy is a non-owning accelerator and its absence never
// implies the session is gone.
type Session struct {
	ID             string
	UserID         string
	RefreshTokenID string
	IP             string
	UserAgent      string
	CreatedAt      time.Time
	LastActiveAt   time.Time
}

// OneTimeTokenPurpose distinguishes the two single-use token kinds.
type OneTimeTokenPurpose string

const (
	PurposeEmailVerification OneTimeTokenPurpose = "email_verification"
	PurposePasswordReset     OneTimeTokenPurpose = "password_reset"
)

// OneTimeToken is a single-use, time-boxed token for email verification
// or password reset. ConsumedAt is terminal: set at most once, and a
// token with it set (or past expiry) is permanently invalid.
type OneTimeToken struct {
	ID         string
	UserID     string
	Purpose    OneTimeTokenPurpose
	TokenHash  string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

func (t OneTimeToken) Consumed() bool {
	return t.ConsumedAt != nil
}

func (t OneTimeToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
