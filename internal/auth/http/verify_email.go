package http

import (
	"errors"
	"net/http"

	"github.com/paysignal/console-auth/internal/auth/service"
	"github.com/paysignal/console-auth/pkg/httpx"
	"github.com/paysignal/console-auth/pkg/slogx"
)

// VerifyEmailHandler serves GET /v1/auth/verify-email?token=...
// The link lands here straight from the verification email.
type VerifyEmailHandler struct {
	LifecycleService *service.LifecycleService
}

func (h *VerifyEmailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	token := r.URL.Query().Get("token")
	if token == "" {
		httpx.WriteError(w, httpx.ValidationError("token query parameter is required"))
		return
	}

	if err := h.LifecycleService.VerifyEmail(ctx, token); err != nil {
		switch {
		case errors.Is(err, service.ErrTokenInvalid):
			httpx.WriteError(w, httpx.ErrInvalidToken)
		case errors.Is(err, service.ErrTokenExpired):
			httpx.WriteError(w, httpx.ErrTokenExpired)
		case errors.Is(err, service.ErrTokenUsed):
			httpx.WriteError(w, httpx.ErrTokenUsed)
		case errors.Is(err, service.ErrAlreadyVerified):
			httpx.WriteError(w, httpx.ErrAlreadyVerified)
		default:
			log.Error("email verification failed", "err", err)
			httpx.WriteError(w, httpx.ErrServer)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// ResendVerificationHandler serves POST /v1/auth/resend-verification.
// The response is success-shaped for unknown emails so the endpoint
// cannot be used to probe which accounts exist.
type ResendVerificationHandler struct {
	LifecycleService *service.LifecycleService
}

type resendVerificationRequest struct {
	Email string `json:"email"`
}

func (h *ResendVerificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req resendVerificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validEmail(req.Email) {
		httpx.WriteError(w, httpx.ValidationError("a valid email is required"))
		return
	}

	if err := h.LifecycleService.ResendVerification(ctx, req.Email); err != nil {
		if errors.Is(err, service.ErrAlreadyVerified) {
			httpx.WriteError(w, httpx.ErrAlreadyVerified)
			return
		}
		log.Error("resend verification failed", "err", err)
		httpx.WriteError(w, httpx.ErrServer)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}
