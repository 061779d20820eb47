package store

import (
	"context"
	"errors"
	"time"

	"github.com/paysignal/console-auth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and a Tx-scoped variant for multi-step operations that must
// be atomic.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	Sessions() Sessions
	OneTimeTokens() OneTimeTokens
	OAuthAccounts() OAuthAccounts

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying pool.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login and the forgot/resend flows.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// MarkEmailVerified sets email_verified to now, once.
	MarkEmailVerified(ctx context.Context, userID string) error

	// DeleteUser cascades to refresh_tokens and sessions (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken sets revoked_at on one record. Idempotent:
	// revoking an already-revoked token is a no-op.
	RevokeRefreshToken(ctx context.Context, id string) error

	// RevokeFamily revokes every member of a rotation family.
	RevokeFamily(ctx context.Context, familyID string) error

	// RevokeAllForUser bulk revocation (password reset/change, logout-all).
	RevokeAllForUser(ctx context.Context, userID string) error

	// DeleteExpiredRefreshTokens removes records past expiry plus the
	// retention window. Housekeeping only, revocation never deletes.
	DeleteExpiredRefreshTokens(ctx context.Context, retain time.Duration) error
}

type Sessions interface {
	// CreateSession persists a new session row.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByID returns a session by id.
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// GetSessionByRefreshTokenID returns the session created alongside a
	// refresh token. Used by logout and refresh.
	GetSessionByRefreshTokenID(ctx context.Context, refreshTokenID string) (domain.Session, error)

	// TouchSession bumps last_active_at.
	TouchSession(ctx context.Context, id string, at time.Time) error

	// DeleteSession removes one session row.
	DeleteSession(ctx context.Context, id string) error

	// DeleteSessionsForUser removes every session a user owns.
	DeleteSessionsForUser(ctx context.Context, userID string) error

	// DeleteStaleSessions removes sessions idle longer than maxIdle.
	DeleteStaleSessions(ctx context.Context, maxIdle time.Duration) error
}

type OAuthAccounts interface {
	// UpsertOAuthAccount inserts a provider link, or refreshes the
	// email and updated_at of an existing one keyed by
	// (provider, provider_user_id).
	UpsertOAuthAccount(ctx context.Context, a domain.OAuthAccount) error

	// GetOAuthAccountByProviderID resolves an external identity to its
	// link.
	GetOAuthAccountByProviderID(ctx context.Context, provider, providerUserID string) (domain.OAuthAccount, error)

	// CountOAuthAccountsForUser reports how many provider links a user
	// holds. The unlink guard needs the count, never the rows.
	CountOAuthAccountsForUser(ctx context.Context, userID string) (int, error)

	// DeleteOAuthAccountsForProvider removes a user's links for one
	// provider. Idempotent: deleting an absent link is a no-op.
	DeleteOAuthAccountsForProvider(ctx context.Context, userID, provider string) error
}

type OneTimeTokens interface {
	// CreateOneTimeToken stores a freshly issued token hash.
	CreateOneTimeToken(ctx context.Context, t domain.OneTimeToken) error

	// GetOneTimeTokenByHash fetches a token by its fingerprint,
	// regardless of consumption state. The service layer decides which
	// failure to surface.
	GetOneTimeTokenByHash(ctx context.Context, hash string) (domain.OneTimeToken, error)

	// ConsumeOneTimeToken sets consumed_at iff it is still null. Returns
	// ErrNotFound when the token was already consumed.
	ConsumeOneTimeToken(ctx context.Context, id string, at time.Time) error

	// SupersedeOneTimeTokens marks every unconsumed token of one purpose
	// for a user as consumed so only the newest issued token is usable.
	SupersedeOneTimeTokens(ctx context.Context, userID string, purpose domain.OneTimeTokenPurpose, at time.Time) error

	// DeleteExpiredOneTimeTokens is housekeeping.
	DeleteExpiredOneTimeTokens(ctx context.Context) error
}
