package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewState(t *testing.T) {
	t.Parallel()

	a, err := NewState()
	require.NoError(t, err)
	b, err := NewState()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.Len(t, a, 43) // 32 bytes, base64url without padding
}

func TestGoogleAuthCodeURL(t *testing.T) {
	t.Parallel()

	g := NewGoogle("client-id", "secret", "https://api.example/v1/auth/oauth/google/callback")

	u, err := url.Parse(g.AuthCodeURL("state-123"))
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, "state-123", q.Get("state"))
	require.Equal(t, "https://api.example/v1/auth/oauth/google/callback", q.Get("redirect_uri"))
}

func TestGoogleFetchClaims(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	token := &oauth2.Token{AccessToken: "provider-token"}

	t.Run("returns the verified identity", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "Bearer provider-token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id":"g-123","email":"op@example.com","verified_email":true}`))
		}))
		defer srv.Close()

		g := NewGoogle("client-id", "secret", "")
		g.userInfoURL = srv.URL

		claims, err := g.FetchClaims(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "g-123", claims.ProviderUserID)
		require.Equal(t, "op@example.com", claims.Email)
	})

	t.Run("rejects unverified addresses", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"g-123","email":"op@example.com","verified_email":false}`))
		}))
		defer srv.Close()

		g := NewGoogle("client-id", "secret", "")
		g.userInfoURL = srv.URL

		_, err := g.FetchClaims(ctx, token)
		require.ErrorIs(t, err, ErrNoVerifiedEmail)
	})

	t.Run("surfaces provider errors", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		g := NewGoogle("client-id", "secret", "")
		g.userInfoURL = srv.URL

		_, err := g.FetchClaims(ctx, token)
		require.Error(t, err)
	})
}

func TestGitHubFetchClaims(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	token := &oauth2.Token{AccessToken: "provider-token"}

	t.Run("uses the public profile email", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":4242,"email":"op@example.com"}`))
		}))
		defer srv.Close()

		g := NewGitHub("client-id", "secret", "")
		g.userURL = srv.URL

		claims, err := g.FetchClaims(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "4242", claims.ProviderUserID)
		require.Equal(t, "op@example.com", claims.Email)
	})

	t.Run("falls back to the primary verified email", func(t *testing.T) {
		t.Parallel()
		mux := http.NewServeMux()
		mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":4242,"email":""}`))
		})
		mux.HandleFunc("/emails", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[
				{"email":"old@example.com","primary":false,"verified":true},
				{"email":"op@example.com","primary":true,"verified":true}
			]`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		g := NewGitHub("client-id", "secret", "")
		g.userURL = srv.URL + "/user"
		g.emailsURL = srv.URL + "/emails"

		claims, err := g.FetchClaims(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "op@example.com", claims.Email)
	})

	t.Run("rejects accounts without a verified email", func(t *testing.T) {
		t.Parallel()
		mux := http.NewServeMux()
		mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":4242,"email":""}`))
		})
		mux.HandleFunc("/emails", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"email":"op@example.com","primary":true,"verified":false}]`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		g := NewGitHub("client-id", "secret", "")
		g.userURL = srv.URL + "/user"
		g.emailsURL = srv.URL + "/emails"

		_, err := g.FetchClaims(ctx, token)
		require.ErrorIs(t, err, ErrNoVerifiedEmail)
	})
}
