package jwtx

import "errors"

var (
	ErrMissingSecret = errors.New("jwtx: missing signing secret")

	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
)
