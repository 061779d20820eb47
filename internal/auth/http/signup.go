package http

import (
	"errors"
	"net/http"

	"github.com/paysignal/console-auth/internal/auth/service"
	"github.com/paysignal/console-auth/pkg/httpx"
	"github.com/paysignal/console-auth/pkg/slogx"
)

// SignupHandler serves POST /v1/auth/signup. New accounts always start
// with the read_only role; elevation is an admin operation.
type SignupHandler struct {
	UserService *service.UserService
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (h *SignupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validEmail(req.Email) {
		httpx.WriteError(w, httpx.ValidationError("a valid email is required"))
		return
	}
	if len(req.Password) < minPasswordLength {
		httpx.WriteError(w, httpx.ValidationError("password must be at least 8 characters"))
		return
	}

	user, err := h.UserService.Signup(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			httpx.WriteError(w, httpx.ErrUserExists)
			return
		}
		log.Error("signup failed", "err", err)
		httpx.WriteError(w, httpx.ErrServer)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, signupResponse{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	})
}
