package service

import (
	"context"
	"errors"
	"time"

	"github.com/paysignal/console-auth/internal/auth/domain"
	"github.com/paysignal/console-auth/internal/auth/store"
	"github.com/paysignal/console-auth/pkg/cryptox"
	"github.com/paysignal/console-auth/pkg/idx"
	"github.com/paysignal/console-auth/pkg/slogx"
)

const (
	DefaultVerificationTTL = 24 * time.Hour
	DefaultResetTTL        = 1 * time.Hour
)

var (
	ErrTokenInvalid    = errors.New("token_invalid")
	ErrTokenExpired    = errors.New("token_expired")
	ErrTokenUsed       = errors.New("token_used")
	ErrAlreadyVerified = errors.New("already_verified")
)

// Mailer delivers lifecycle emails. Deliveries are best effort, a failed
// send never fails the surrounding request.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, rawToken string) error
	SendPasswordResetEmail(ctx context.Context, to, rawToken string) error
}

// LifecycleService owns the single-use email verification and password
// reset tokens plus the flows built on them.
type LifecycleService struct {
	Store           store.Store
	Mailer          Mailer
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

func (s *LifecycleService) verificationTTL() time.Duration {
	if s.VerificationTTL > 0 {
		return s.VerificationTTL
	}
	return DefaultVerificationTTL
}

func (s *LifecycleService) resetTTL() time.Duration {
	if s.ResetTTL > 0 {
		return s.ResetTTL
	}
	return DefaultResetTTL
}

// Issue mints a raw one-time token for a user and purpose. Issuing
// supersedes every prior unconsumed token of the same purpose, so only
// the newest token of each kind is ever usable.
func (s *LifecycleService) Issue(ctx context.Context, userID string, purpose domain.OneTimeTokenPurpose) (string, error) {
	now := time.Now()

	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	ttl := s.verificationTTL()
	if purpose == domain.PurposePasswordReset {
		ttl = s.resetTTL()
	}

	rec := domain.OneTimeToken{
		ID:        idx.New().String(),
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: cryptox.FingerprintToken(raw),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.OneTimeTokens().SupersedeOneTimeTokens(ctx, userID, purpose, now); err != nil {
			return err
		}
		return tx.OneTimeTokens().CreateOneTimeToken(ctx, rec)
	}); err != nil {
		return "", err
	}

	return raw, nil
}

// Consume redeems a raw token once. Failures are distinct so callers can
// message correctly: ErrTokenInvalid (unknown or wrong purpose),
// ErrTokenExpired, ErrTokenUsed.
func (s *LifecycleService) Consume(ctx context.Context, raw string, purpose domain.OneTimeTokenPurpose) (domain.OneTimeToken, error) {
	now := time.Now()

	tok, err := s.Store.OneTimeTokens().GetOneTimeTokenByHash(ctx, cryptox.FingerprintToken(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.OneTimeToken{}, ErrTokenInvalid
		}
		return domain.OneTimeToken{}, err
	}
	if tok.Purpose != purpose {
		return domain.OneTimeToken{}, ErrTokenInvalid
	}
	if tok.Consumed() {
		return domain.OneTimeToken{}, ErrTokenUsed
	}
	if tok.Expired(now) {
		return domain.OneTimeToken{}, ErrTokenExpired
	}

	// The store enforces single use; losing the race here surfaces the
	// same way as arriving second.
	if err := s.Store.OneTimeTokens().ConsumeOneTimeToken(ctx, tok.ID, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.OneTimeToken{}, ErrTokenUsed
		}
		return domain.OneTimeToken{}, err
	}

	return tok, nil
}

// VerifyEmail consumes a verification token and marks the account
// verified.
func (s *LifecycleService) VerifyEmail(ctx context.Context, raw string) error {
	tok, err := s.Consume(ctx, raw, domain.PurposeEmailVerification)
	if err != nil {
		return err
	}

	if err := s.Store.Users().MarkEmailVerified(ctx, tok.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAlreadyVerified
		}
		return err
	}
	return nil
}

// ResendVerification issues a fresh verification token for an
// unverified account. The response shape never reveals whether the email
// exists; only a verified account surfaces an error.
func (s *LifecycleService) ResendVerification(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("resend verification for unknown email")
			return nil
		}
		return err
	}
	if u.IsVerified() {
		return ErrAlreadyVerified
	}

	raw, err := s.Issue(ctx, u.ID, domain.PurposeEmailVerification)
	if err != nil {
		return err
	}
	s.sendVerification(ctx, u.Email, raw)
	return nil
}

// ForgotPassword starts a reset flow. Success-shaped regardless of
// whether the account exists.
func (s *LifecycleService) ForgotPassword(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("password reset for unknown email")
			return nil
		}
		return err
	}

	raw, err := s.Issue(ctx, u.ID, domain.PurposePasswordReset)
	if err != nil {
		return err
	}

	if s.Mailer != nil {
		if err := s.Mailer.SendPasswordResetEmail(ctx, u.Email, raw); err != nil {
			l.Warn("password reset email delivery failed", "user_id", u.ID, "err", err)
		}
	}
	return nil
}

// ResetPassword redeems a reset token, installs the new password, and
// durably revokes every refresh token and session the user owns before
// returning.
func (s *LifecycleService) ResetPassword(ctx context.Context, raw, newPassword string) error {
	tok, err := s.Consume(ctx, raw, domain.PurposePasswordReset)
	if err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, tok.UserID, hash); err != nil {
			return err
		}
		if err := tx.RefreshTokens().RevokeAllForUser(ctx, tok.UserID); err != nil {
			return err
		}
		return tx.Sessions().DeleteSessionsForUser(ctx, tok.UserID)
	})
}

func (s *LifecycleService) sendVerification(ctx context.Context, to, raw string) {
	if s.Mailer == nil {
		return
	}
	if err := s.Mailer.SendVerificationEmail(ctx, to, raw); err != nil {
		slogx.FromContext(ctx).Warn("verification email delivery failed", "err", err)
	}
}
