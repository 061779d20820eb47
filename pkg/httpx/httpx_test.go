package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paysignal/console-auth/pkg/httpx"
	"github.com/paysignal/console-auth/pkg/jwtx"
)

func TestClientIP(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		require.Equal(t, "192.168.1.1", httpx.ClientIP(req))
	})

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")

		require.Equal(t, "203.0.113.1", httpx.ClientIP(req))
	})

	t.Run("uses X-Real-IP if X-Forwarded-For absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Real-IP", "203.0.113.2")

		require.Equal(t, "203.0.113.2", httpx.ClientIP(req))
	})
}

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

type stubVerifier struct {
	claims jwtx.Claims
	err    error
}

func (s stubVerifier) Verify(string) (jwtx.Claims, error) { return s.claims, s.err }

type stubRevoker bool

func (s stubRevoker) IsTokenRevoked(context.Context, string) bool { return bool(s) }

func newClaims(t *testing.T) jwtx.Claims {
	t.Helper()
	codec, err := jwtx.NewCodec([]byte("secret"), "iss", "aud", time.Minute)
	require.NoError(t, err)
	raw, err := codec.Issue(jwtx.Identity{ID: "u1", Email: "op@example.com", Role: "operator"})
	require.NoError(t, err)
	claims, err := codec.Verify(raw)
	require.NoError(t, err)
	return claims
}

func TestAuthnMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := httpx.IdentityFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "u1", id.ID)

		raw := httpx.RawTokenFromContext(r.Context())
		require.Equal(t, "sometoken", raw)

		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing header", func(t *testing.T) {
		h := httpx.AuthnMiddleware(stubVerifier{}, stubRevoker(false))(okHandler)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "MISSING_TOKEN")
	})

	t.Run("expired token", func(t *testing.T) {
		h := httpx.AuthnMiddleware(stubVerifier{err: jwtx.ErrExpired}, stubRevoker(false))(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "TOKEN_EXPIRED")
	})

	t.Run("bad signature", func(t *testing.T) {
		h := httpx.AuthnMiddleware(stubVerifier{err: jwtx.ErrInvalidSig}, stubRevoker(false))(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "INVALID_TOKEN")
	})

	t.Run("revoked token", func(t *testing.T) {
		h := httpx.AuthnMiddleware(stubVerifier{claims: newClaims(t)}, stubRevoker(true))(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "TOKEN_REVOKED")
	})

	t.Run("valid token injects identity", func(t *testing.T) {
		h := httpx.AuthnMiddleware(stubVerifier{claims: newClaims(t)}, stubRevoker(false))(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	withIdentity := func(role string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), httpx.CtxKeyIdentity, jwtx.Identity{ID: "u1", Role: role})
		return req.WithContext(ctx)
	}

	t.Run("allows matching role", func(t *testing.T) {
		h := httpx.RequireRole("admin", "operator")(okHandler)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withIdentity("operator"))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects other roles", func(t *testing.T) {
		h := httpx.RequireRole("admin")(okHandler)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withIdentity("read_only"))

		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Contains(t, rec.Body.String(), "FORBIDDEN")
	})

	t.Run("rejects missing identity", func(t *testing.T) {
		h := httpx.RequireRole("admin")(okHandler)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
