package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/sentrypost/authcore/config"
	redisadapter "github.com/sentrypost/authcore/internal/adapters/redis"
	"github.com/sentrypost/authcore/internal/bootstrap"
	"github.com/sentrypost/authcore/internal/data"
	"github.com/sentrypost/authcore/internal/observability/metrics"
	"github.com/sentrypost/authcore/internal/service"
)

func main() {
	ctx := context.Background()
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.ErrorContext(ctx, "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
	logger := bootstrap.InitLogger(cfg.Observability.LogLevel)
	if err := run(ctx, &cfg, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	logger.InfoContext(ctx, "starting authcore",
		"env", cfg.Env,
		"platform_mode", cfg.Auth.PlatformMode,
		"trusted_mode", cfg.Auth.TrustedMode,
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
	)

	db, redisClient, err := initInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
		if cerr := redisClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}()

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	// The verifier's key refresh lives as long as the process.
	verifierCtx, cancelVerifier := context.WithCancel(ctx)
	defer cancelVerifier()
	verifier, err := bootstrap.BuildVerifier(verifierCtx, cfg.Auth, logger)
	if err != nil {
		return err
	}

	authMetrics := metrics.New()
	users := data.NewUserRepo(db)
	sessions := redisadapter.NewSessionStoreWithPrefix(redisClient, cfg.Sessions.KeyPrefix)

	auth, err := bootstrap.BuildAuth(bootstrap.AuthDeps{
		Config:   cfg,
		Users:    users,
		Sessions: sessions,
		Verifier: verifier,
		Metrics:  authMetrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	stopReaper, err := bootstrap.StartSessionReaper(ctx, cfg.Sessions, sessions, authMetrics, logger)
	if err != nil {
		return err
	}
	defer stopReaper()

	health := service.NewHealthService(service.HealthServiceOptions{
		Database: users,
		Sessions: sessions,
		Verifier: verifier,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	server := bootstrap.StartHTTPServer(&bootstrap.HTTPServerConfig{
		Config:  cfg,
		Auth:    auth,
		Health:  health,
		Metrics: authMetrics,
		Logger:  logger,
	}, errCh)

	return bootstrap.WaitForShutdown(ctx, errCh, bootstrap.ShutdownConfig{
		Server:  server,
		Audit:   auth.Audit,
		Timeout: cfg.HTTP.ShutdownTimeout,
		Logger:  logger,
	})
}

// initInfrastructure connects the shared datastores.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	dbCfg := bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}
	db, err := bootstrap.ConnectDB(ctx, dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	redisClient, err := bootstrap.ConnectRedis(ctx, dbCfg)
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
			return nil, nil, fmt.Errorf("connect redis: %w", errors.Join(err, fmt.Errorf("close database: %w", cerr)))
		}
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	return db, redisClient, nil
}
