package ratelimit_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paysignal/console-auth/pkg/ratelimit"
)

// brokenReader yields its data once, then fails.
type brokenReader struct {
	data string
	done bool
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if b.done {
		return 0, errors.New("connection reset")
	}
	b.done = true
	return copy(p, b.data), nil
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("sets rate metadata on allowed responses", func(t *testing.T) {
		t.Parallel()
		l := ratelimit.New(ratelimit.NewMemoryCounter())
		h := ratelimit.Middleware(l, "login", time.Minute, 5, ratelimit.ByClientIP())(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
		require.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("denies over the limit with RATE_LIMIT_EXCEEDED", func(t *testing.T) {
		t.Parallel()
		l := ratelimit.New(ratelimit.NewMemoryCounter())
		h := ratelimit.Middleware(l, "login", time.Minute, 2, ratelimit.ByClientIP())(okHandler)

		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
		require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("tracks callers separately", func(t *testing.T) {
		t.Parallel()
		l := ratelimit.New(ratelimit.NewMemoryCounter())
		h := ratelimit.Middleware(l, "login", time.Minute, 1, ratelimit.ByClientIP())(okHandler)

		req1 := httptest.NewRequest(http.MethodPost, "/", nil)
		req1.RemoteAddr = "192.168.1.1:12345"
		rec1 := httptest.NewRecorder()
		h.ServeHTTP(rec1, req1)
		require.Equal(t, http.StatusOK, rec1.Code)

		rec2 := httptest.NewRecorder()
		h.ServeHTTP(rec2, req1.Clone(req1.Context()))
		require.Equal(t, http.StatusTooManyRequests, rec2.Code)

		req3 := httptest.NewRequest(http.MethodPost, "/", nil)
		req3.RemoteAddr = "192.168.1.2:12345"
		rec3 := httptest.NewRecorder()
		h.ServeHTTP(rec3, req3)
		require.Equal(t, http.StatusOK, rec3.Code)
	})

	t.Run("keys by IP plus JSON account field", func(t *testing.T) {
		t.Parallel()
		l := ratelimit.New(ratelimit.NewMemoryCounter())
		var seenBody string
		echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := make([]byte, 256)
			n, _ := r.Body.Read(buf)
			seenBody = string(buf[:n])
			w.WriteHeader(http.StatusOK)
		})
		h := ratelimit.Middleware(l, "login", time.Minute, 1, ratelimit.ByClientIPAndJSONField("email"))(echo)

		send := func(email string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/",
				strings.NewReader(`{"email":"`+email+`","password":"x"}`))
			req.RemoteAddr = "192.168.1.1:12345"
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			return rec
		}

		require.Equal(t, http.StatusOK, send("alice@example.com").Code)
		require.Equal(t, http.StatusTooManyRequests, send("alice@example.com").Code)

		// Same IP, different account identifier: separate bucket.
		require.Equal(t, http.StatusOK, send("bob@example.com").Code)

		// Body must still reach the handler after the peek.
		require.Contains(t, seenBody, "bob@example.com")
	})

	t.Run("restores partial reads when the body errors", func(t *testing.T) {
		t.Parallel()
		l := ratelimit.New(ratelimit.NewMemoryCounter())
		var seenBody string
		echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			seenBody = string(b)
			w.WriteHeader(http.StatusOK)
		})
		h := ratelimit.Middleware(l, "login", time.Minute, 5, ratelimit.ByClientIPAndJSONField("email"))(echo)

		req := httptest.NewRequest(http.MethodPost, "/", &brokenReader{data: `{"email":`})
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		// The key falls back to the address and the handler still sees
		// the bytes the peek consumed.
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, `{"email":`, seenBody)
	})

	t.Run("unattributable requests pass through", func(t *testing.T) {
		t.Parallel()
		l := ratelimit.New(ratelimit.NewMemoryCounter())
		empty := func(*http.Request) string { return "" }
		h := ratelimit.Middleware(l, "login", time.Minute, 1, empty)(okHandler)

		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}
