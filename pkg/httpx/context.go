package httpx

import (
	"context"

	"github.com/paysignal/console-auth/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyIdentity ctxKey = "identity"
	CtxKeyRawToken ctxKey = "raw_token"
)

// IdentityFromContext returns the authenticated principal set by
// AuthnMiddleware, if any.
func IdentityFromContext(ctx context.Context) (jwtx.Identity, bool) {
	id, ok := ctx.Value(CtxKeyIdentity).(jwtx.Identity)
	return id, ok
}

// RawTokenFromContext returns the bearer token string the request
// authenticated with. Needed by logout to deny-list the presented token.
func RawTokenFromContext(ctx context.Context) string {
	raw, _ := ctx.Value(CtxKeyRawToken).(string)
	return raw
}
