package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentrypost/authcore/config"
	httpx "github.com/sentrypost/authcore/internal/http"
	"github.com/sentrypost/authcore/internal/observability/metrics"
	"github.com/sentrypost/authcore/internal/service"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config  *config.AppConfig
	Auth    *AuthComponents
	Health  *service.HealthService
	Metrics *metrics.AuthMetrics
	Logger  *slog.Logger
}

// BuildHTTPHandler assembles the router for the auth surface.
func BuildHTTPHandler(cfg *HTTPServerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rs := httpx.RouterServices{Logger: logger}
	if cfg.Health != nil {
		rs.Health = cfg.Health
	}
	if cfg.Auth != nil {
		rs.Guard = cfg.Auth.Guard
		rs.Auth = cfg.Auth.Handlers
	}
	if cfg.Config != nil && cfg.Config.Observability.Metrics.Enabled {
		rs.Metrics = cfg.Metrics
	}
	return httpx.NewRouter(rs)
}

// StartHTTPServer creates the HTTP server and starts serving in the background.
// Listen errors are delivered on errCh.
func StartHTTPServer(cfg *HTTPServerConfig, errCh chan<- error) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpCfg := config.HTTPConfig{}
	if cfg.Config != nil {
		httpCfg = cfg.Config.HTTP
	}
	httpCfg.Sanitize()

	server := &http.Server{
		Addr:              httpCfg.Addr,
		Handler:           BuildHTTPHandler(cfg),
		ReadHeaderTimeout: httpCfg.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			if errCh != nil {
				errCh <- err
			}
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for graceful shutdown.
type ShutdownConfig struct {
	Server  *http.Server
	Audit   *service.AuditLogger
	Timeout time.Duration
	Logger  *slog.Logger
}

// Shutdown stops accepting requests, then drains the audit queue. Both share one deadline.
func Shutdown(ctx context.Context, cfg ShutdownConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if cfg.Server != nil {
		logger.Info("shutting down HTTP server")
		if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		} else {
			logger.Info("HTTP server stopped")
		}
	}
	if cfg.Audit != nil {
		if err := cfg.Audit.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
			logger.Warn("audit queue not fully drained", "error", err, "dropped", cfg.Audit.Dropped())
		}
	}
	return errors.Join(errs...)
}

// WaitForShutdown blocks until SIGINT/SIGTERM, ctx cancellation, or a server error, then shuts down.
func WaitForShutdown(ctx context.Context, errCh <-chan error, cfg ShutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	select {
	case <-quit:
		logger.Info("shutting down...")
		return Shutdown(context.WithoutCancel(ctx), cfg)
	case <-ctx.Done():
		return Shutdown(context.WithoutCancel(ctx), cfg)
	case err := <-errCh:
		logger.Error("service error", "error", err)
		if stopErr := Shutdown(context.WithoutCancel(ctx), cfg); stopErr != nil {
			logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}
