package http

import (
	"net/http"
	"time"

	"github.com/paysignal/console-auth/internal/auth/service"
	"github.com/paysignal/console-auth/pkg/httpx"
	"github.com/paysignal/console-auth/pkg/slogx"
)

// MeHandler serves GET /v1/auth/me. The role comes from the store, not
// the token, so a role change is visible here before the access token
// is reissued.
type MeHandler struct {
	UserService *service.UserService
}

type meResponse struct {
	UserID        string     `json:"user_id"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	EmailVerified *time.Time `json:"email_verified,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	identity, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(w, httpx.ErrMissingToken)
		return
	}

	user, err := h.UserService.GetUserByID(ctx, identity.ID)
	if err != nil {
		log.Warn("failed to load user", "user_id", identity.ID, "err", err)
		httpx.WriteError(w, httpx.ErrServer)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, meResponse{
		UserID:        user.ID,
		Email:         user.Email,
		Role:          string(user.Role),
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	})
}
