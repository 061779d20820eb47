package http

import (
	"errors"
	"net/http"

	"github.com/paysignal/console-auth/internal/auth/service"
	"github.com/paysignal/console-auth/pkg/httpx"
	"github.com/paysignal/console-auth/pkg/slogx"
)

// LoginHandler serves POST /v1/auth/login. Failures are deliberately
// indistinguishable: an unknown email and a wrong password both return
// INVALID_CREDENTIALS.
type LoginHandler struct {
	TokenService *service.TokenService
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, httpx.ValidationError("email and password are required"))
		return
	}

	pair, err := h.TokenService.Login(ctx, req.Email, req.Password, service.ClientInfo{
		IP:        httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(w, httpx.ErrInvalidCredentials)
			return
		}
		log.Error("login failed", "err", err)
		httpx.WriteError(w, httpx.ErrServer)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}
