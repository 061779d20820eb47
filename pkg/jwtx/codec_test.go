package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testIdentity = Identity{
	ID:    "01J0000000000000000000USER",
	Email: "ops@example.com",
	Role:  "operator",
}

func newTestCodec(t *testing.T, secret string, now func() time.Time) *Codec {
	t.Helper()

	c, err := NewCodec([]byte(secret), "paysignal-api", "paysignal-console", 15*time.Minute, WithClock(now))
	require.NoError(t, err)
	return c
}

func TestNewCodecRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewCodec(nil, "iss", "aud", time.Minute)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, "test-access-secret-0123456789abcdef", time.Now)

	raw, err := codec.Issue(testIdentity)
	require.NoError(t, err)

	claims, err := codec.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, testIdentity, claims.Identity())
	require.NotEmpty(t, claims.ID, "jti should be set")
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, "test-access-secret-0123456789abcdef", func() time.Time { return clock })

	raw, err := codec.Issue(testIdentity)
	require.NoError(t, err)

	// Still valid just before the TTL elapses.
	clock = clock.Add(14 * time.Minute)
	_, err = codec.Verify(raw)
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	_, err = codec.Verify(raw)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsCrossSecretTokens(t *testing.T) {
	t.Parallel()

	access := newTestCodec(t, "access-secret-0123456789abcdefghij", time.Now)
	refresh := newTestCodec(t, "refresh-secret-0123456789abcdefghi", time.Now)

	raw, err := access.Issue(testIdentity)
	require.NoError(t, err)

	_, err = refresh.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestVerifyIssuerAndAudience(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, "test-access-secret-0123456789abcdef", time.Now)

	other, err := NewCodec([]byte("test-access-secret-0123456789abcdef"), "other-issuer", "paysignal-console", time.Minute)
	require.NoError(t, err)
	raw, err := other.Issue(testIdentity)
	require.NoError(t, err)
	_, err = codec.Verify(raw)
	require.ErrorIs(t, err, ErrIssuer)

	other, err = NewCodec([]byte("test-access-secret-0123456789abcdef"), "paysignal-api", "other-audience", time.Minute)
	require.NoError(t, err)
	raw, err = other.Issue(testIdentity)
	require.NoError(t, err)
	_, err = codec.Verify(raw)
	require.ErrorIs(t, err, ErrAudience)
}

func TestVerifyMalformed(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, "test-access-secret-0123456789abcdef", time.Now)

	for _, raw := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := codec.Verify(raw)
		require.ErrorIs(t, err, ErrMalformed, "token: %q", raw)
	}
}
