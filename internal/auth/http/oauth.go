package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"

	"github.com/paysignal/console-auth/internal/auth/domain"
	"github.com/paysignal/console-auth/internal/auth/oauth"
	"github.com/paysignal/console-auth/internal/auth/service"
	"github.com/paysignal/console-auth/pkg/httpx"
	"github.com/paysignal/console-auth/pkg/slogx"
)

const oauthStateCookie = "oauth_state"

// OAuthStartHandler serves GET /v1/auth/oauth/{provider}. It parks the
// CSRF state in a short-lived cookie and sends the browser off to the
// provider's consent page.
type OAuthStartHandler struct {
	Providers map[string]oauth.Provider
}

func (h *OAuthStartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := lookupProvider(w, r, h.Providers)
	if !ok {
		return
	}

	state, err := oauth.NewState()
	if err != nil {
		httpx.WriteError(w, httpx.ErrServer)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/v1/auth/oauth",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// OAuthCallbackHandler serves GET /v1/auth/oauth/{provider}/callback.
// It finishes the code exchange and hands the browser back to the
// console with a fresh token pair in the redirect query.
type OAuthCallbackHandler struct {
	Providers    map[string]oauth.Provider
	OAuthService *service.OAuthService
	FrontendURL  string
}

func (h *OAuthCallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	p, ok := lookupProvider(w, r, h.Providers)
	if !ok {
		return
	}

	// The state must round-trip through the cookie the start handler
	// set, otherwise the callback was not initiated by us.
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if state == "" || err != nil ||
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		httpx.WriteError(w, httpx.ValidationError("oauth state mismatch"))
		return
	}
	clearStateCookie(w)

	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.WriteError(w, httpx.ErrOAuthAuthFailed)
		return
	}

	token, err := p.Exchange(ctx, code)
	if err != nil {
		log.Info("oauth code exchange failed", "provider", p.Name(), "err", err)
		httpx.WriteError(w, httpx.ErrOAuthAuthFailed)
		return
	}
	claims, err := p.FetchClaims(ctx, token)
	if err != nil {
		log.Info("oauth claims fetch failed", "provider", p.Name(), "err", err)
		httpx.WriteError(w, httpx.ErrOAuthAuthFailed)
		return
	}

	pair, err := h.OAuthService.LoginExternal(ctx, service.ExternalIdentity{
		Provider:       p.Name(),
		ProviderUserID: claims.ProviderUserID,
		Email:          claims.Email,
	}, service.ClientInfo{IP: httpx.ClientIP(r), UserAgent: r.UserAgent()})
	if err != nil {
		log.Error("oauth login failed", "provider", p.Name(), "err", err)
		httpx.WriteError(w, httpx.ErrServer)
		return
	}

	// The console's callback page picks the tokens out of the query.
	redirect, err := url.Parse(h.FrontendURL + "/auth/callback")
	if err != nil {
		httpx.WriteError(w, httpx.ErrServer)
		return
	}
	q := url.Values{}
	q.Set("accessToken", pair.AccessToken)
	q.Set("refreshToken", pair.RefreshToken)
	q.Set("provider", p.Name())
	redirect.RawQuery = q.Encode()

	httpx.NoCache(w)
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

// OAuthUnlinkHandler serves POST /v1/auth/oauth/unlink for the
// authenticated account.
type OAuthUnlinkHandler struct {
	OAuthService *service.OAuthService
}

type unlinkRequest struct {
	Provider string `json:"provider"`
}

func (h *OAuthUnlinkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(w, httpx.ErrMissingToken)
		return
	}

	var req unlinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !domain.ValidProvider(req.Provider) {
		httpx.WriteError(w, httpx.ValidationError("unknown oauth provider"))
		return
	}

	if err := h.OAuthService.Unlink(ctx, id.ID, req.Provider); err != nil {
		if errors.Is(err, service.ErrLastAuthMethod) {
			httpx.WriteError(w, httpx.ErrLastAuthMethod)
			return
		}
		log.Error("oauth unlink failed", "err", err)
		httpx.WriteError(w, httpx.ErrServer)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "unlinked"})
}

func lookupProvider(w http.ResponseWriter, r *http.Request, providers map[string]oauth.Provider) (oauth.Provider, bool) {
	name := r.PathValue("provider")
	if !domain.ValidProvider(name) {
		httpx.WriteError(w, httpx.ValidationError("unknown oauth provider"))
		return nil, false
	}
	p, ok := providers[name]
	if !ok {
		httpx.WriteError(w, httpx.ErrOAuthNotConfigured)
		return nil, false
	}
	return p, true
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/v1/auth/oauth",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
