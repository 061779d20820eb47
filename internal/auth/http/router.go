package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/paysignal/console-auth/internal/auth/oauth"
	"github.com/paysignal/console-auth/internal/auth/service"
	"github.com/paysignal/console-auth/internal/auth/store"
	"github.com/paysignal/console-auth/pkg/httpx"
	"github.com/paysignal/console-auth/pkg/jwtx"
	"github.com/paysignal/console-auth/pkg/ratelimit"
	"github.com/paysignal/console-auth/pkg/slogx"
)

// SessionCache is the slice of the cache the router needs: revocation
// checks on the authn path and a health probe for readiness reporting.
type SessionCache interface {
	httpx.RevocationChecker
	Ping(ctx context.Context) error
}

// Limit is a fixed-window quota for one route class.
type Limit struct {
	Window time.Duration
	Max    int
}

// RateLimits groups the per-route-class quotas. Strict covers
// credential-bearing endpoints, Moderate covers token-bearing ones,
// Lenient covers authenticated reads and health probes.
type RateLimits struct {
	Strict   Limit
	Moderate Limit
	Lenient  Limit
}

func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   Limit{Window: time.Minute, Max: 10},
		Moderate: Limit{Window: time.Minute, Max: 60},
		Lenient:  Limit{Window: time.Minute, Max: 300},
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     httpx.TokenVerifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store   store.Store
	cache   SessionCache
	limiter *ratelimit.Limiter
	limits  RateLimits

	TokenService     *service.TokenService
	UserService      *service.UserService
	LifecycleService *service.LifecycleService
	OAuthService     *service.OAuthService

	// Providers holds the configured OAuth providers; an empty map
	// still registers the routes, which then answer OAUTH_NOT_CONFIGURED.
	Providers map[string]oauth.Provider

	// FrontendURL is where the OAuth callback hands the browser back to.
	FrontendURL string
}

func NewRouter(
	verifier *jwtx.Codec,
	buildVersion string,
	st store.Store,
	sc SessionCache,
	limiter *ratelimit.Limiter,
	limits RateLimits,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		cache:        sc,
		limiter:      limiter,
		limits:       limits,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerOAuth()
	r.registerAccount()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /signup - strict rate limit by IP (account creation)
	signupHandler := &SignupHandler{UserService: r.UserService}
	r.Mux.Handle("POST /v1/auth/signup",
		httpx.Chain(signupHandler,
			r.limit("signup", r.limits.Strict, ratelimit.ByClientIP()),
		),
	)

	// POST /login - strict rate limit by IP + email body field, so
	// credential stuffing against one account is throttled regardless
	// of source address.
	loginHandler := &LoginHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(loginHandler,
			r.limit("login", r.limits.Strict, ratelimit.ByClientIPAndJSONField("email")),
		),
	)

	// POST /refresh - moderate rate limit (legitimate clients refresh often)
	refreshHandler := &RefreshHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refreshHandler,
			r.limit("refresh", r.limits.Moderate, ratelimit.ByClientIP()),
		),
	)

	// POST /logout - moderate rate limit. The refresh token in the body
	// is the credential, so no authn middleware here.
	logoutHandler := &LogoutHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logoutHandler,
			r.limit("logout", r.limits.Moderate, ratelimit.ByClientIP()),
		),
	)

	// GET /verify-email - moderate rate limit (token in query string)
	verifyHandler := &VerifyEmailHandler{LifecycleService: r.LifecycleService}
	r.Mux.Handle("GET /v1/auth/verify-email",
		httpx.Chain(verifyHandler,
			r.limit("verify-email", r.limits.Moderate, ratelimit.ByClientIP()),
		),
	)

	// POST /resend-verification - strict rate limit (sends email)
	resendHandler := &ResendVerificationHandler{LifecycleService: r.LifecycleService}
	r.Mux.Handle("POST /v1/auth/resend-verification",
		httpx.Chain(resendHandler,
			r.limit("resend-verification", r.limits.Strict, ratelimit.ByClientIP()),
		),
	)

	// POST /forgot-password - strict rate limit by IP + email body field
	forgotHandler := &ForgotPasswordHandler{LifecycleService: r.LifecycleService}
	r.Mux.Handle("POST /v1/auth/forgot-password",
		httpx.Chain(forgotHandler,
			r.limit("forgot-password", r.limits.Strict, ratelimit.ByClientIPAndJSONField("email")),
		),
	)

	// POST /reset-password - moderate rate limit (token is the credential)
	resetHandler := &ResetPasswordHandler{LifecycleService: r.LifecycleService}
	r.Mux.Handle("POST /v1/auth/reset-password",
		httpx.Chain(resetHandler,
			r.limit("reset-password", r.limits.Moderate, ratelimit.ByClientIP()),
		),
	)
}

func (r *Router) registerOAuth() {
	// GET /oauth/{provider} - strict rate limit, same class as login
	startHandler := &OAuthStartHandler{Providers: r.Providers}
	r.Mux.Handle("GET /v1/auth/oauth/{provider}",
		httpx.Chain(startHandler,
			r.limit("oauth", r.limits.Strict, ratelimit.ByClientIP()),
		),
	)

	// GET /oauth/{provider}/callback - strict rate limit (issues tokens)
	callbackHandler := &OAuthCallbackHandler{
		Providers:    r.Providers,
		OAuthService: r.OAuthService,
		FrontendURL:  r.FrontendURL,
	}
	r.Mux.Handle("GET /v1/auth/oauth/{provider}/callback",
		httpx.Chain(callbackHandler,
			r.limit("oauth", r.limits.Strict, ratelimit.ByClientIP()),
		),
	)

	// POST /oauth/unlink - authenticated, moderate rate limit by user
	unlinkHandler := &OAuthUnlinkHandler{OAuthService: r.OAuthService}
	r.Mux.Handle("POST /v1/auth/oauth/unlink",
		httpx.Chain(unlinkHandler,
			httpx.AuthnMiddleware(r.verifier, r.cache),
			r.limit("oauth-unlink", r.limits.Moderate, ratelimit.ByUserID()),
		),
	)
}

func (r *Router) registerAccount() {
	// GET /me - authenticated read, lenient rate limit by user
	meHandler := &MeHandler{UserService: r.UserService}
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(meHandler,
			httpx.AuthnMiddleware(r.verifier, r.cache),
			r.limit("me", r.limits.Lenient, ratelimit.ByUserID()),
		),
	)

	// POST /change-password - authenticated, moderate rate limit by user
	// (re-verifies the current password, so brute force matters)
	changeHandler := &ChangePasswordHandler{UserService: r.UserService}
	r.Mux.Handle("POST /v1/auth/change-password",
		httpx.Chain(changeHandler,
			httpx.AuthnMiddleware(r.verifier, r.cache),
			r.limit("change-password", r.limits.Moderate, ratelimit.ByUserID()),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems
	// may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			r.limit("livez", r.limits.Lenient, ratelimit.ByClientIP()),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.cache),
			r.limit("readyz", r.limits.Lenient, ratelimit.ByClientIP()),
		),
	)
}

func (r *Router) limit(bucket string, l Limit, key ratelimit.KeyFunc) httpx.Middleware {
	return ratelimit.Middleware(r.limiter, bucket, l.Window, l.Max, key)
}
