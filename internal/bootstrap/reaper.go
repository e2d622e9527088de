package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/sentrypost/authcore/config"
	"github.com/sentrypost/authcore/internal/observability/metrics"
	"github.com/sentrypost/authcore/internal/ports"
	"github.com/sentrypost/authcore/internal/service"
)

// StartSessionReaper runs the session index reaper in the background.
// The returned stop function cancels it and waits for the loop to exit.
func StartSessionReaper(
	ctx context.Context,
	cfg config.SessionConfig,
	store ports.SessionIndexPruner,
	m *metrics.AuthMetrics,
	logger *slog.Logger,
) (stop func(), err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.ReaperEnabled {
		logger.InfoContext(ctx, "session reaper disabled via config")
		return func() {}, nil
	}
	reaper, err := service.NewSessionReaper(service.SessionReaperOptions{
		Store:    store,
		Interval: cfg.ReaperInterval,
		Batch:    cfg.ReaperBatch,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := reaper.Run(runCtx); runErr != nil {
			logger.ErrorContext(runCtx, "session reaper exited", "error", runErr)
		}
	}()
	return func() {
		cancel()
		waitForService(done, "session reaper", logger)
	}, nil
}

const shutdownWaitTimeout = 10 * time.Second

func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
