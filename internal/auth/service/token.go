package service

import (
	"context"
	"errors"
	"time"

	"github.com/paysignal/console-auth/internal/auth/domain"
	"github.com/paysignal/console-auth/internal/auth/store"
	"github.com/paysignal/console-auth/pkg/cryptox"
	"github.com/paysignal/console-auth/pkg/idx"
	"github.com/paysignal/console-auth/pkg/jwtx"
	"github.com/paysignal/console-auth/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
)

// ClientInfo is the request metadata recorded with every issued token.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// SessionCache is the best-effort accelerator the token service writes
// through. Every method degrades to a no-op when the backend is down.
type SessionCache interface {
	Put(ctx context.Context, s domain.Session, ttl time.Duration) bool
	Delete(ctx context.Context, sessionID string) bool
	BlacklistToken(ctx context.Context, raw string, ttl time.Duration) bool
}

// TokenService owns login, refresh, and logout. The refresh store is the
// authority for revocation: its failures are fatal, while cache failures
// only cost latency.
type TokenService struct {
	Store   store.Store
	Cache   SessionCache
	Access  *jwtx.Codec
	Refresh *jwtx.Codec

	// SessionTTL bounds how long cached session entries live. Zero
	// means they live as long as the refresh token that minted them.
	SessionTTL time.Duration
}

// Login verifies credentials and issues a fresh token family: one access
// JWT, one refresh JWT whose fingerprint is persisted, and a session row.
func (s *TokenService) Login(ctx context.Context, email, password string, client ClientInfo) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	// 1. Resolve the account. Unknown email and bad password are
	// indistinguishable to the caller.
	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// 2. Verify the password.
	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		l.Info("login password verification failed", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}

	return s.IssueForUser(ctx, u, client)
}

// IssueForUser mints a token pair for an already-authenticated user.
// Password login and OAuth login both end here, so every login method
// produces the same refresh family, session row, and cache entry.
func (s *TokenService) IssueForUser(ctx context.Context, u domain.User, client ClientInfo) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	id := jwtx.Identity{ID: u.ID, Email: u.Email, Role: string(u.Role)}

	// 1. Sign both tokens.
	accessToken, err := s.Access.Issue(id)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.Refresh.Issue(id)
	if err != nil {
		return nil, err
	}

	// 2. Persist the refresh record (fresh family) and the session
	// atomically. Only the fingerprint of the refresh JWT is stored.
	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(refreshToken),
		FamilyID:  idx.New().String(),
		ClientIP:  client.IP,
		UserAgent: client.UserAgent,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.Refresh.TTL()),
	}
	sess := domain.Session{
		ID:             idx.New().String(),
		UserID:         u.ID,
		RefreshTokenID: rt.ID,
		IP:             client.IP,
		UserAgent:      client.UserAgent,
		CreatedAt:      now,
		LastActiveAt:   now,
	}

	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
			return err
		}
		return tx.Sessions().CreateSession(ctx, sess)
	}); err != nil {
		return nil, err
	}

	// 3. Warm the cache best-effort.
	if s.Cache != nil {
		s.Cache.Put(ctx, sess, s.sessionTTL())
	}

	l.Info("login succeeded", "user_id", u.ID, "session_id", sess.ID)

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.Access.TTL().Seconds()),
	}, nil
}

func (s *TokenService) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return s.Refresh.TTL()
}

// RefreshAccess exchanges a valid refresh token for a new access token.
// The refresh token itself is not rotated: it stays valid until expiry
// or explicit revocation, so the response carries no new refresh token.
func (s *TokenService) RefreshAccess(ctx context.Context, rawRefresh string) (*domain.TokenPair, error) {
	now := time.Now()

	// 1. The refresh token must be a valid JWT signed with the refresh
	// secret. Any verification failure maps to the same caller error.
	if _, err := s.Refresh.Verify(rawRefresh); err != nil {
		return nil, ErrInvalidRefresh
	}

	// 2. Look up the durable record by fingerprint; it is the authority
	// for revocation and a store failure is fatal here.
	fp := cryptox.FingerprintToken(rawRefresh)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if rt.Revoked() || rt.Expired(now) {
		return nil, ErrInvalidRefresh
	}

	// 3. Re-read the user so role changes take effect on the next access
	// token rather than at refresh-token expiry.
	u, err := s.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	accessToken, err := s.Access.Issue(jwtx.Identity{ID: u.ID, Email: u.Email, Role: string(u.Role)})
	if err != nil {
		return nil, err
	}

	// 4. Bump session activity, best effort.
	if sess, err := s.Store.Sessions().GetSessionByRefreshTokenID(ctx, rt.ID); err == nil {
		_ = s.Store.Sessions().TouchSession(ctx, sess.ID, now)
	}

	return &domain.TokenPair{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.Access.TTL().Seconds()),
	}, nil
}

// Logout revokes the presented refresh token and tears down its session.
// Idempotent: logging out an unknown or already-revoked token succeeds.
// The revocation is durably recorded before this returns; the blacklist
// write is only an accelerator for the access token's remaining trust
// window.
func (s *TokenService) Logout(ctx context.Context, rawRefresh, rawAccess string) error {
	l := slogx.FromContext(ctx)

	fp := cryptox.FingerprintToken(rawRefresh)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	sess, sessErr := s.Store.Sessions().GetSessionByRefreshTokenID(ctx, rt.ID)

	// Revoke the whole family the login minted, not just the presented
	// token. Without rotation a family holds a single token, so this is
	// equivalent today and stays correct if rotation is ever added.
	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeFamily(ctx, rt.FamilyID); err != nil {
			return err
		}
		if sessErr == nil {
			return tx.Sessions().DeleteSession(ctx, sess.ID)
		}
		return nil
	}); err != nil {
		return err
	}

	if s.Cache != nil {
		if sessErr == nil {
			s.Cache.Delete(ctx, sess.ID)
		}
		if ttl := s.accessTokenRemaining(rawAccess); ttl > 0 {
			s.Cache.BlacklistToken(ctx, rawAccess, ttl)
		}
	}

	l.Info("logout", "user_id", rt.UserID, "refresh_token_id", rt.ID)
	return nil
}

// RevokeAllForUser durably revokes every refresh token and session a
// user owns. Used by password change and reset; must complete before the
// triggering request responds.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeAllForUser(ctx, userID); err != nil {
			return err
		}
		return tx.Sessions().DeleteSessionsForUser(ctx, userID)
	})
}

// accessTokenRemaining returns how long a presented access token is
// still trusted, so the blacklist entry can expire with it.
func (s *TokenService) accessTokenRemaining(rawAccess string) time.Duration {
	if rawAccess == "" {
		return 0
	}
	claims, err := s.Access.Verify(rawAccess)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	return time.Until(claims.ExpiresAt.Time)
}
