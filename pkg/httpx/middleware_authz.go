package httpx

import (
	"net/http"
)

// RequireRole the caller must hold one of the listed roles.
func RequireRole(allowed ...string) Middleware {
	want := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		want[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, ErrMissingToken)
				return
			}
			if _, ok := want[id.Role]; !ok {
				WriteError(w, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
