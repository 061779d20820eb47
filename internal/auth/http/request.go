package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/paysignal/console-auth/pkg/httpx"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON request body into dst, writing a validation
// error and returning false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/json") {
		httpx.WriteError(w, httpx.ValidationError("expected application/json request body"))
		return false
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		httpx.WriteError(w, httpx.ValidationError("invalid request body"))
		return false
	}
	return true
}

// bearerToken extracts a token from the Authorization header, or ""
// when the header is absent or not a bearer scheme.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && len(email) <= 254
}

const minPasswordLength = 8
