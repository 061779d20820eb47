// Package jwtx provides stateless signing and verification of the service's
// access and refresh tokens. Each token class gets its own Codec with an
// independent HMAC secret, so a leaked access token can never be replayed
// against the refresh endpoint or vice versa.
package jwtx

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec signs and verifies HS256 tokens for one token class.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a Codec for one token class. The secret must be non-empty;
// 32 bytes or more is expected for HMAC-SHA256.
func NewCodec(secret []byte, issuer, audience string, ttl time.Duration, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	c := &Codec{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a token carrying the principal identity. Pure function of the
// identity, the secret and the clock; no side effects.
func (c *Codec) Issue(id Identity) (string, error) {
	now := c.now().UTC()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   id.ID,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        newJTI(),
		},
		Email: id.Email,
		Role:  id.Role,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks signature, expiry, issuer and audience, returning the claims
// on success. Failure causes are distinguished so callers can surface
// distinct error codes: ErrExpired, ErrInvalidSig, ErrMalformed, ErrIssuer,
// ErrAudience, ErrNotYetValid.
func (c *Codec) Verify(raw string) (Claims, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		// Pin the algorithm to prevent confusion attacks.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSig
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Claims{}, mapParseError(err)
	}

	if c.issuer != "" && claims.Issuer != c.issuer {
		return Claims{}, ErrIssuer
	}
	if c.audience != "" && !slices.Contains(claims.Audience, c.audience) {
		return Claims{}, ErrAudience
	}

	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrInvalidSig):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return ErrMalformed
	}
}
