package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// NewServer serves the function on every path of cfg.Port.
func NewServer(cfg Config, logger *slog.Logger) *http.Server {
	if cfg.RateLimit.Requests <= 0 {
		cfg.RateLimit = httpx.DefaultRateLimits().Public
	}
	return &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: httpx.Chain(NewHandler(cfg, nil),
			slogx.HTTPMiddleware(logger),
			httpx.RateLimitByIP(cfg.RateLimit),
		),
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Run serves until ctx is cancelled and then drains for at most grace.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger, grace time.Duration) error {
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()

	logger.Info("weather function starting", "addr", srv.Addr)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down weather function...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("weather function stopped")
	return nil
}
