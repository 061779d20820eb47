package http

import (
	"errors"
	"net/http"

	"github.com/paysignal/console-auth/internal/auth/service"
	"github.com/paysignal/console-auth/pkg/httpx"
	"github.com/paysignal/console-auth/pkg/slogx"
)

// ForgotPasswordHandler serves POST /v1/auth/forgot-password. Like
// resend-verification, the response is success-shaped for unknown
// emails.
type ForgotPasswordHandler struct {
	LifecycleService *service.LifecycleService
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *ForgotPasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validEmail(req.Email) {
		httpx.WriteError(w, httpx.ValidationError("a valid email is required"))
		return
	}

	if err := h.LifecycleService.ForgotPassword(ctx, req.Email); err != nil {
		log.Error("forgot password failed", "err", err)
		httpx.WriteError(w, httpx.ErrServer)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

// ResetPasswordHandler serves POST /v1/auth/reset-password. A
// successful reset revokes every refresh token and session for the
// user before the response is written.
type ResetPasswordHandler struct {
	LifecycleService *service.LifecycleService
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *ResetPasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		httpx.WriteError(w, httpx.ValidationError("token is required"))
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		httpx.WriteError(w, httpx.ValidationError("password must be at least 8 characters"))
		return
	}

	if err := h.LifecycleService.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrTokenInvalid):
			httpx.WriteError(w, httpx.ErrInvalidToken)
		case errors.Is(err, service.ErrTokenExpired):
			httpx.WriteError(w, httpx.ErrTokenExpired)
		case errors.Is(err, service.ErrTokenUsed):
			httpx.WriteError(w, httpx.ErrTokenUsed)
		default:
			log.Error("password reset failed", "err", err)
			httpx.WriteError(w, httpx.ErrServer)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ChangePasswordHandler serves POST /v1/auth/change-password for an
// authenticated user. The current password is re-verified and all
// existing refresh tokens and sessions are revoked on success.
type ChangePasswordHandler struct {
	UserService *service.UserService
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *ChangePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	identity, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(w, httpx.ErrMissingToken)
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" {
		httpx.WriteError(w, httpx.ValidationError("current_password is required"))
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		httpx.WriteError(w, httpx.ValidationError("password must be at least 8 characters"))
		return
	}

	if err := h.UserService.ChangePassword(ctx, identity.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(w, httpx.ErrInvalidCredentials)
			return
		}
		log.Error("password change failed", "user_id", identity.ID, "err", err)
		httpx.WriteError(w, httpx.ErrServer)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
