package http

import (
	"net/http"

	"github.com/paysignal/console-auth/internal/auth/service"
	"github.com/paysignal/console-auth/pkg/httpx"
	"github.com/paysignal/console-auth/pkg/slogx"
)

// LogoutHandler serves POST /v1/auth/logout. Revocation is idempotent:
// an unknown or already-revoked refresh token still yields 204. The
// bearer access token, when present, is deny-listed for its remaining
// lifetime.
type LogoutHandler struct {
	TokenService *service.TokenService
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req logoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteError(w, httpx.ValidationError("refresh_token is required"))
		return
	}

	if err := h.TokenService.Logout(ctx, req.RefreshToken, bearerToken(r)); err != nil {
		log.Error("logout failed", "err", err)
		httpx.WriteError(w, httpx.ErrServer)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
