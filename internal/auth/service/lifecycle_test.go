package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paysignal/console-auth/internal/auth/domain"
	"github.com/paysignal/console-auth/internal/auth/store/storetest"
	"github.com/paysignal/console-auth/pkg/cryptox"
	"github.com/paysignal/console-auth/pkg/idx"
)

type fakeMailer struct {
	verifications map[string]string // email -> raw token
	resets        map[string]string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{
		verifications: make(map[string]string),
		resets:        make(map[string]string),
	}
}

func (f *fakeMailer) SendVerificationEmail(_ context.Context, to, raw string) error {
	f.verifications[to] = raw
	return nil
}

func (f *fakeMailer) SendPasswordResetEmail(_ context.Context, to, raw string) error {
	f.resets[to] = raw
	return nil
}

func TestIssueAndConsume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("consumes exactly once", func(t *testing.T) {
		t.Parallel()
		st := storetest.New()
		svc := &LifecycleService{Store: st}
		u := seedUser(t, st, "op@example.com", "hunter2!", domain.RoleReadOnly)

		raw, err := svc.Issue(ctx, u.ID, domain.PurposeEmailVerification)
		require.NoError(t, err)

		tok, err := svc.Consume(ctx, raw, domain.PurposeEmailVerification)
		require.NoError(t, err)
		require.Equal(t, u.ID, tok.UserID)

		_, err = svc.Consume(ctx, raw, domain.PurposeEmailVerification)
		require.ErrorIs(t, err, ErrTokenUsed)
	})

	t.Run("unknown token and wrong purpose are invalid", func(t *testing.T) {
		t.Parallel()
		st := storetest.New()
		svc := &LifecycleService{Store: st}
		u := seedUser(t, st, "op@example.com", "hunter2!", domain.RoleReadOnly)

		_, err := svc.Consume(ctx, "no-such-token", domain.PurposeEmailVerification)
		require.ErrorIs(t, err, ErrTokenInvalid)

		raw, err := svc.Issue(ctx, u.ID, domain.PurposePasswordReset)
		require.NoError(t, err)
		_, err = svc.Consume(ctx, raw, domain.PurposeEmailVerification)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expired tokens are reported as expired", func(t *testing.T) {
		t.Parallel()
		st := storetest.New()
		svc := &LifecycleService{Store: st}
		u := seedUser(t, st, "op@example.com", "hunter2!", domain.RoleReadOnly)

		raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
		require.NoError(t, err)
		require.NoError(t, st.OneTimeTokens().CreateOneTimeToken(ctx, domain.OneTimeToken{
			ID:        idx.New().String(),
			UserID:    u.ID,
			Purpose:   domain.PurposePasswordReset,
			TokenHash: cryptox.FingerprintToken(raw),
			ExpiresAt: time.Now().Add(-time.Minute),
			CreatedAt: time.Now().Add(-2 * time.Hour),
		}))

		_, err = svc.Consume(ctx, raw, domain.PurposePasswordReset)
		require.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("issuing supersedes prior tokens of the same purpose", func(t *testing.T) {
		t.Parallel()
		st := storetest.New()
		svc := &LifecycleService{Store: st}
		u := seedUser(t, st, "op@example.com", "hunter2!", domain.RoleReadOnly)

		first, err := svc.Issue(ctx, u.ID, domain.PurposeEmailVerification)
		require.NoError(t, err)
		second, err := svc.Issue(ctx, u.ID, domain.PurposeEmailVerification)
		require.NoError(t, err)

		_, err = svc.Consume(ctx, first, domain.PurposeEmailVerification)
		require.ErrorIs(t, err, ErrTokenUsed)

		_, err = svc.Consume(ctx, second, domain.PurposeEmailVerification)
		require.NoError(t, err)
	})

	t.Run("a different purpose is not superseded", func(t *testing.T) {
		t.Parallel()
		st := storetest.New()
		svc := &LifecycleService{Store: st}
		u := seedUser(t, st, "op@example.com", "hunter2!", domain.RoleReadOnly)

		reset, err := svc.Issue(ctx, u.ID, domain.PurposePasswordReset)
		require.NoError(t, err)
		_, err = svc.Issue(ctx, u.ID, domain.PurposeEmailVerification)
		require.NoError(t, err)

		_, err = svc.Consume(ctx, reset, domain.PurposePasswordReset)
		require.NoError(t, err)
	})
}

func TestVerifyEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := storetest.New()
	svc := &LifecycleService{Store: st}
	u := seedUser(t, st, "op@example.com", "hunter2!", domain.RoleReadOnly)

	raw, err := svc.Issue(ctx, u.ID, domain.PurposeEmailVerification)
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(ctx, raw))

	got, err := st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.IsVerified())

	// Re-verifying an already verified account with a fresh token.
	raw2, err := svc.Issue(ctx, u.ID, domain.PurposeEmailVerification)
	require.NoError(t, err)
	require.ErrorIs(t, svc.VerifyEmail(ctx, raw2), ErrAlreadyVerified)
}

func TestResendVerification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := storetest.New()
	mailer := newFakeMailer()
	svc := &LifecycleService{Store: st, Mailer: mailer}
	u := seedUser(t, st, "op@example.com", "hunter2!", domain.RoleReadOnly)

	// Unknown email looks like success.
	require.NoError(t, svc.ResendVerification(ctx, "nobody@example.com"))
	require.Empty(t, mailer.verifications)

	require.NoError(t, svc.ResendVerification(ctx, u.Email))
	raw := mailer.verifications[u.Email]
	require.NotEmpty(t, raw)
	require.NoError(t, svc.VerifyEmail(ctx, raw))

	require.ErrorIs(t, svc.ResendVerification(ctx, u.Email), ErrAlreadyVerified)
}

func TestForgotAndResetPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := storetest.New()
	mailer := newFakeMailer()
	lifecycle := &LifecycleService{Store: st, Mailer: mailer}
	tokens, _ := newTokenService(t, st)
	seedUser(t, st, "op@example.com", "hunter2!", domain.RoleOperator)

	// Unknown email is success-shaped and sends nothing.
	require.NoError(t, lifecycle.ForgotPassword(ctx, "nobody@example.com"))
	require.Empty(t, mailer.resets)

	// Log in so there is a live refresh token to revoke.
	pair, err := tokens.Login(ctx, "op@example.com", "hunter2!", ClientInfo{})
	require.NoError(t, err)

	require.NoError(t, lifecycle.ForgotPassword(ctx, "op@example.com"))
	raw := mailer.resets["op@example.com"]
	require.NotEmpty(t, raw)

	require.NoError(t, lifecycle.ResetPassword(ctx, raw, "new-password-9"))

	// Old credentials and old refresh tokens are both dead.
	_, err = tokens.Login(ctx, "op@example.com", "hunter2!", ClientInfo{})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = tokens.RefreshAccess(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)

	_, err = tokens.Login(ctx, "op@example.com", "new-password-9", ClientInfo{})
	require.NoError(t, err)

	// The reset token was single use.
	require.ErrorIs(t, lifecycle.ResetPassword(ctx, raw, "another-pass"), ErrTokenUsed)
}
