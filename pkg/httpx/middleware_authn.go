package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/paysignal/console-auth/pkg/jwtx"
	"github.com/paysignal/console-auth/pkg/slogx"
)

// TokenVerifier validates a raw bearer token and returns its claims.
type TokenVerifier interface {
	Verify(raw string) (jwtx.Claims, error)
}

// RevocationChecker reports whether a token has been deny-listed. The
// check is best effort, an unavailable backend must report false rather
// than fail the request.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, raw string) bool
}

// AuthnMiddleware enforces a valid bearer token on every request and
// injects the caller identity plus the raw token into the context.
func AuthnMiddleware(v TokenVerifier, rc RevocationChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				WriteError(w, ErrMissingToken)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw)
			if err != nil {
				if errors.Is(err, jwtx.ErrExpired) {
					WriteError(w, ErrTokenExpired)
					return
				}
				log.Warn("jwt verify failed", "err", err)
				WriteError(w, ErrInvalidToken)
				return
			}

			if rc != nil && rc.IsTokenRevoked(ctx, raw) {
				WriteError(w, ErrTokenRevoked)
				return
			}

			// Inject into context for downstream handlers.
			ctx = contextWithAuth(ctx, claims.Identity(), raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func contextWithAuth(ctx context.Context, id jwtx.Identity, raw string) context.Context {
	ctx = context.WithValue(ctx, CtxKeyIdentity, id)
	ctx = context.WithValue(ctx, CtxKeyRawToken, raw)
	return ctx
}
