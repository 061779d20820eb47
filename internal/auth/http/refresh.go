package http

import (
	"errors"
	"net/http"

	"github.com/paysignal/console-auth/internal/auth/service"
	"github.com/paysignal/console-auth/pkg/httpx"
	"github.com/paysignal/console-auth/pkg/slogx"
)

// RefreshHandler serves POST /v1/auth/refresh. Only a new access token
// is minted; the presented refresh token stays valid until it expires
// or is revoked, so the response carries no refresh_token field.
type RefreshHandler struct {
	TokenService *service.TokenService
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteError(w, httpx.ValidationError("refresh_token is required"))
		return
	}

	pair, err := h.TokenService.RefreshAccess(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			httpx.WriteError(w, httpx.ErrInvalidRefreshToken)
			return
		}
		log.Error("token refresh failed", "err", err)
		httpx.WriteError(w, httpx.ErrServer)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}
