package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paysignal/console-auth/internal/auth/cache"
	"github.com/paysignal/console-auth/internal/auth/domain"
	httpapi "github.com/paysignal/console-auth/internal/auth/http"
	"github.com/paysignal/console-auth/internal/auth/oauth"
	"github.com/paysignal/console-auth/internal/auth/service"
	"github.com/paysignal/console-auth/internal/auth/store"
	"github.com/paysignal/console-auth/internal/auth/store/drivers/postgres"
	"github.com/paysignal/console-auth/pkg/cryptox"
	"github.com/paysignal/console-auth/pkg/jwtx"
	"github.com/paysignal/console-auth/pkg/ratelimit"
	"github.com/paysignal/console-auth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db           store.Store
	sessionCache *cache.Cache
	rdb          *redis.Client
	access       *jwtx.Codec
	refresh      *jwtx.Codec

	// Services
	tokenService        *service.TokenService
	userService         *service.UserService
	lifecycleService    *service.LifecycleService
	oauthService        *service.OAuthService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates an Application instance with all dependencies initialized.
// The session cache is best effort: a dead Redis at boot logs a warning
// and the service starts degraded.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "console-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(cfg.PepperFile)

	ctx := context.Background()

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	app.initCache(ctx)

	if err := app.initCodecs(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.sessionCache.Close(); err != nil {
		app.logger.Error("error closing session cache", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase connects to Postgres and applies migrations. The store
// is the revocation authority, so failure here is fatal.
func (app *Application) initDatabase(ctx context.Context) error {
	db, err := postgres.NewStore(ctx, app.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCache connects the Redis session cache. A failed probe is logged
// and the cache runs its own reconnect schedule from there.
func (app *Application) initCache(ctx context.Context) {
	app.rdb = redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})
	app.sessionCache = cache.New(app.rdb, cache.WithLogger(app.logger))

	if err := app.sessionCache.Connect(ctx); err != nil {
		app.logger.Warn("session cache unavailable, starting degraded", "error", err)
	}
}

func (app *Application) initCodecs() error {
	access, err := jwtx.NewCodec(
		[]byte(app.cfg.AccessSecret),
		app.cfg.Issuer,
		app.cfg.Audience,
		app.cfg.AccessTTL,
	)
	if err != nil {
		return fmt.Errorf("access token codec: %w", err)
	}

	refresh, err := jwtx.NewCodec(
		[]byte(app.cfg.RefreshSecret),
		app.cfg.Issuer,
		app.cfg.Audience,
		app.cfg.RefreshTTL,
	)
	if err != nil {
		return fmt.Errorf("refresh token codec: %w", err)
	}

	app.access = access
	app.refresh = refresh
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Store:      app.db,
		Cache:      app.sessionCache,
		Access:     app.access,
		Refresh:    app.refresh,
		SessionTTL: app.cfg.SessionCacheTTL,
	}

	app.lifecycleService = &service.LifecycleService{
		Store: app.db,
		Mailer: &LogMailer{
			Logger:  app.logger,
			BaseURL: app.cfg.BaseURL,
		},
		VerificationTTL: app.cfg.VerificationTTL,
		ResetTTL:        app.cfg.ResetTTL,
	}

	app.userService = &service.UserService{
		Store:     app.db,
		Lifecycle: app.lifecycleService,
	}

	app.oauthService = &service.OAuthService{
		Store:  app.db,
		Tokens: app.tokenService,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the rate limiter, router, and server. The
// limiter prefers the shared Redis counter while the cache connection
// is healthy and falls back to the per-process counter otherwise.
func (app *Application) initHTTP() {
	limiter := ratelimit.New(
		ratelimit.NewMemoryCounter(),
		ratelimit.WithSharedBackend(ratelimit.NewRedisCounter(app.rdb), app.sessionCache.Healthy),
		ratelimit.WithLogger(app.logger),
	)

	limits := httpapi.RateLimits{
		Strict:   httpapi.Limit{Window: app.cfg.RateLimitWindow, Max: app.cfg.StrictLimit},
		Moderate: httpapi.Limit{Window: app.cfg.RateLimitWindow, Max: app.cfg.ModerateLimit},
		Lenient:  httpapi.Limit{Window: app.cfg.RateLimitWindow, Max: app.cfg.LenientLimit},
	}

	router := httpapi.NewRouter(
		app.access,
		BuildVersion,
		app.db,
		app.sessionCache,
		limiter,
		limits,
		app.logger,
	)

	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.LifecycleService = app.lifecycleService
	router.OAuthService = app.oauthService
	router.Providers = app.oauthProviders()
	router.FrontendURL = app.cfg.FrontendURL
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// oauthProviders builds the provider set from whatever credentials are
// configured. An empty set leaves the OAuth routes answering
// OAUTH_NOT_CONFIGURED.
func (app *Application) oauthProviders() map[string]oauth.Provider {
	providers := make(map[string]oauth.Provider)
	if app.cfg.GoogleClientID != "" && app.cfg.GoogleClientSecret != "" {
		providers[domain.ProviderGoogle] = oauth.NewGoogle(
			app.cfg.GoogleClientID,
			app.cfg.GoogleClientSecret,
			app.oauthCallbackURL(domain.ProviderGoogle),
		)
	}
	if app.cfg.GitHubClientID != "" && app.cfg.GitHubClientSecret != "" {
		providers[domain.ProviderGitHub] = oauth.NewGitHub(
			app.cfg.GitHubClientID,
			app.cfg.GitHubClientSecret,
			app.oauthCallbackURL(domain.ProviderGitHub),
		)
	}
	if len(providers) > 0 {
		app.logger.Info("oauth providers configured", "count", len(providers))
	}
	return providers
}

func (app *Application) oauthCallbackURL(provider string) string {
	return fmt.Sprintf("%s/v1/auth/oauth/%s/callback", app.cfg.BaseURL, provider)
}
