package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/portal/internal/portal/http"
	"github.com/aussiebroadwan/portal/internal/portal/idp"
	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/internal/portal/store/drivers/memory"
	"github.com/aussiebroadwan/portal/internal/portal/store/drivers/redis"
	"github.com/aussiebroadwan/portal/internal/portal/store/drivers/sqlite"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/relay"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	// tokenSealInfo labels the key derived for sealing IdP tokens at rest.
	tokenSealInfo = "portal-session-tokens"
)

// Application wires the portal's store, identity provider client, services
// and HTTP server together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	idp      *idp.Client
	forecast *relay.Relay

	authFlow            *service.AuthFlowService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application. Discovery against the identity provider
// happens here, so an unreachable provider fails startup.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "portal",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}
	slog.SetDefault(app.logger)

	ctx := context.Background()

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}

	if err := app.initUpstreams(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()

	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Handler exposes the router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Close releases the store of an application that was never Run.
func (app *Application) Close() error { return app.db.Close() }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("portal starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store", app.cfg.StoreDriver,
		"logout_scope", app.cfg.LogoutScope,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down portal...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("portal stopped")
	return nil
}

// initStore opens the configured session store and applies migrations.
func (app *Application) initStore(ctx context.Context) error {
	switch app.cfg.StoreDriver {
	case "sqlite":
		sealer, err := app.tokenSealer()
		if err != nil {
			return err
		}
		dsn := fmt.Sprintf("file:%s", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn, sealer)
		if err != nil {
			return fmt.Errorf("failed to initialize sqlite store: %w", err)
		}
		app.db = db

	case "redis":
		sealer, err := app.tokenSealer()
		if err != nil {
			return err
		}
		db, err := redis.NewStore(ctx, redis.Config{
			Addr:      app.cfg.RedisAddr,
			Password:  app.cfg.RedisPassword,
			DB:        app.cfg.RedisDB,
			KeyPrefix: app.cfg.RedisKeyPrefix,
		}, sealer)
		if err != nil {
			return fmt.Errorf("failed to initialize redis store: %w", err)
		}
		app.db = db

	default:
		app.db = memory.NewStore()
	}

	if err := app.db.ApplyMigrations(); err != nil {
		_ = app.db.Close()
		return fmt.Errorf("failed to apply store migrations: %w", err)
	}

	app.logger.Info("session store ready", "driver", app.cfg.StoreDriver)
	return nil
}

// tokenSealer derives the at-rest sealing key from the master key.
func (app *Application) tokenSealer() (*cryptox.Sealer, error) {
	key, ephemeral, err := cryptox.LoadMasterKey(app.cfg.MasterKeyPath, app.cfg.MasterKey)
	if err != nil {
		return nil, err
	}
	if ephemeral {
		app.logger.Warn("no master key configured, using an ephemeral key; stored sessions will not survive a restart")
	}
	return cryptox.NewSealer(key, tokenSealInfo)
}

// initUpstreams runs identity provider discovery and prepares the forecast relay.
func (app *Application) initUpstreams(ctx context.Context) error {
	client, err := idp.New(ctx, idp.Config{
		IssuerURL:         app.cfg.IssuerURL,
		ClientID:          app.cfg.ClientID,
		ClientSecret:      app.cfg.ClientSecret,
		RedirectURI:       app.cfg.RedirectURI,
		Scopes:            app.cfg.Scopes,
		LogoutDomain:      app.cfg.LogoutDomain,
		LogoutRedirectURI: app.cfg.LogoutRedirectURI,
		VerifyIDToken:     app.cfg.VerifyIDToken,
		HTTPTimeout:       app.cfg.IdPTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize identity provider client: %w", err)
	}
	app.idp = client

	forecast, err := relay.New(relay.Config{
		URL:     app.cfg.ForecastURL,
		Timeout: app.cfg.ForecastTimeout,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize forecast relay: %w", err)
	}
	app.forecast = forecast

	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.authFlow = &service.AuthFlowService{
		Store:       app.db,
		IdP:         app.idp,
		SessionTTL:  app.cfg.SessionTTL,
		LoginTTL:    app.cfg.LoginTTL,
		LogoutScope: service.LogoutScope(app.cfg.LogoutScope),
	}
	if app.authFlow.LogoutScope == service.LogoutScopeAll {
		app.logger.Warn("logout clears every session; only use this for single user deployments")
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	sameSite, err := httpapi.ParseSameSite(app.cfg.CookieSameSite)
	if err != nil {
		return fmt.Errorf("PORTAL_COOKIE_SAMESITE: %w", err)
	}
	if sameSite == http.SameSiteNoneMode && !app.cfg.CookieSecure {
		app.logger.Warn("SameSite=None cookies are dropped by browsers unless PORTAL_COOKIE_SECURE=true")
	}

	cookies, err := httpapi.NewCookies([]byte(app.cfg.SessionSecret), app.cfg.CookieSecure, sameSite)
	if err != nil {
		return fmt.Errorf("PORTAL_SESSION_SECRET: %w", err)
	}

	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.logger,
		httpx.CORSConfig{
			AllowedOrigins:   app.cfg.AllowedOrigins,
			AllowCredentials: true,
		},
	)

	router.AuthFlow = app.authFlow
	router.Cookies = cookies
	router.Forecast = app.forecast
	router.LandingURL = app.cfg.LandingURL
	if app.cfg.RateLimits.Auth.Requests > 0 {
		router.RateLimits = app.cfg.RateLimits
	}
	if app.idp != nil {
		router.IdP = app.idp
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
