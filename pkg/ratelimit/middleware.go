package ratelimit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/paysignal/console-auth/pkg/httpx"
)

// KeyFunc derives the caller identity a limit bucket is keyed by. An
// empty key means the request cannot be attributed and is not limited.
type KeyFunc func(r *http.Request) string

// ByClientIP keys by the caller address.
func ByClientIP() KeyFunc {
	return httpx.ClientIP
}

// ByClientIPAndJSONField keys by caller address plus an account
// identifier peeked from the JSON request body, so credential-guessing
// against one account is throttled independently of the source address.
// The body is restored for the downstream handler.
func ByClientIPAndJSONField(field string) KeyFunc {
	return func(r *http.Request) string {
		key := httpx.ClientIP(r)
		if v := peekJSONField(r, field); v != "" {
			key += ":" + v
		}
		return key
	}
}

// ByUserID keys by the authenticated principal, falling back to the
// caller address when the request is anonymous.
func ByUserID() KeyFunc {
	return func(r *http.Request) string {
		if id, ok := httpx.IdentityFromContext(r.Context()); ok {
			return id.ID
		}
		return httpx.ClientIP(r)
	}
}

func peekJSONField(r *http.Request, field string) string {
	if r.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	// Hand back whatever was read, even after a failed read, so the
	// downstream handler never sees a drained body.
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	v, _ := payload[field].(string)
	return v
}

// Middleware wraps a handler with a fixed-window limit on the named
// bucket. Rate metadata headers are set on every response, not only on
// rejection.
func Middleware(l *Limiter, bucket string, window time.Duration, max int, key KeyFunc) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			res := l.Check(r.Context(), bucket+":"+k, window, max)
			retryAfter := res.RetryAfter(time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			h.Set("Retry-After", strconv.Itoa(retryAfter))

			if !res.Allowed {
				httpx.WriteError(w, httpx.RateLimitError(retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
