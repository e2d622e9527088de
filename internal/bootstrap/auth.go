package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sentrypost/authcore/config"
	"github.com/sentrypost/authcore/internal/adapters/authroles"
	"github.com/sentrypost/authcore/internal/adapters/devauth"
	"github.com/sentrypost/authcore/internal/adapters/jwks"
	"github.com/sentrypost/authcore/internal/adapters/oidc"
	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	httpx "github.com/sentrypost/authcore/internal/http"
	"github.com/sentrypost/authcore/internal/observability/metrics"
	"github.com/sentrypost/authcore/internal/ports"
	"github.com/sentrypost/authcore/internal/service"
)

// BuildVerifier constructs the identity-platform verifier selected by cfg.PlatformMode.
// It returns a nil verifier when the platform is disabled; structured tokens are then rejected.
//
//nolint:ireturn // the concrete verifier depends on configuration.
func BuildVerifier(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (ports.IdentityVerifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.PlatformMode {
	case config.PlatformOIDC:
		v, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
			IssuerURL:         cfg.OIDC.IssuerURL,
			ClientID:          cfg.OIDC.ClientID,
			SkipClientIDCheck: cfg.OIDC.SkipClientIDCheck,
			SigningAlgs:       cfg.OIDC.SigningAlgs,
		})
		if err != nil {
			return nil, fmt.Errorf("build oidc verifier: %w", err)
		}
		logger.InfoContext(ctx, "identity platform configured", "mode", v.Mode(), "issuer", cfg.OIDC.IssuerURL)
		return v, nil
	case config.PlatformJWKS:
		jc := jwks.DefaultConfig()
		jc.JWKSURL = cfg.JWKS.URL
		jc.Issuer = cfg.JWKS.Issuer
		jc.Audience = cfg.JWKS.Audience
		if len(cfg.JWKS.Algorithms) > 0 {
			jc.AllowedAlgs = cfg.JWKS.Algorithms
		}
		jc.Leeway = cfg.JWKS.Leeway
		v, err := jwks.New(ctx, jc)
		if err != nil {
			return nil, fmt.Errorf("build jwks verifier: %w", err)
		}
		logger.InfoContext(ctx, "identity platform configured", "mode", v.Mode(), "jwks_url", cfg.JWKS.URL)
		return v, nil
	case config.PlatformDisabled:
		logger.WarnContext(ctx, "identity platform disabled; structured tokens will be rejected")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported platform mode %q", cfg.PlatformMode)
	}
}

// AuthDeps groups dependencies for BuildAuth.
type AuthDeps struct {
	Config   *config.AppConfig      // Required
	Users    ports.UserRepository   // Required
	Sessions ports.SessionStore     // Required
	Verifier ports.IdentityVerifier // Optional: structured tokens fail verification when nil
	Sink     ports.AuditSink        // Optional: JSON audit lines on AuditOutput when nil
	Metrics  *metrics.AuthMetrics   // Optional
	Logger   *slog.Logger

	// AuditOutput receives audit lines when Sink is nil. Defaults to stdout.
	AuditOutput io.Writer
}

// AuthComponents is the wired authentication core.
type AuthComponents struct {
	Authenticator *service.Authenticator
	Sessions      *service.SessionManager
	Audit         *service.AuditLogger
	Guard         *httpx.Guard
	Handlers      *httpx.AuthHandlers
}

// BuildAuth wires strategies, resolver, authenticator, sessions, audit and the HTTP guard.
func BuildAuth(deps AuthDeps) (*AuthComponents, error) {
	if deps.Config == nil {
		return nil, errors.New("AppConfig is required")
	}
	if deps.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("SessionStore is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	registry, err := buildStrategies(cfg, deps.Users, deps.Verifier)
	if err != nil {
		return nil, err
	}

	defaultRole, _ := domainauth.ParseRole(cfg.Auth.DefaultRole)
	defaultLevel, _ := domainauth.ParseAccessLevel(cfg.Auth.DefaultAccessLevel)
	mapper, err := authroles.NewClaimsMapper(authroles.Config{
		RolePaths:          cfg.Auth.Paths.Role,
		PermissionPaths:    cfg.Auth.Paths.Permissions,
		AccessLevelPaths:   cfg.Auth.Paths.AccessLevel,
		ProfilePaths:       cfg.Auth.Paths.Profile,
		DefaultRole:        defaultRole,
		DefaultAccessLevel: defaultLevel,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build claims mapper: %w", err)
	}

	defaults := service.DefaultProvisioning()
	if defaultRole != "" {
		defaults.Role = defaultRole
	}
	if defaultLevel != "" {
		defaults.AccessLevel = defaultLevel
	}
	resolver, err := service.NewIdentityResolver(service.IdentityResolverOptions{
		Users:    deps.Users,
		Claims:   mapper,
		Defaults: defaults,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build identity resolver: %w", err)
	}

	authenticator, err := service.NewAuthenticator(service.AuthenticatorOptions{
		Registry: registry,
		Resolver: resolver,
		Metrics:  deps.Metrics,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build authenticator: %w", err)
	}

	sessions, err := service.NewSessionManager(service.SessionManagerOptions{
		Store:   deps.Sessions,
		Users:   deps.Users,
		Metrics: deps.Metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build session manager: %w", err)
	}

	sink := deps.Sink
	if sink == nil {
		out := deps.AuditOutput
		if out == nil {
			out = os.Stdout
		}
		sink = service.NewSlogAuditSink(out)
	}
	audit, err := service.NewAuditLogger(service.AuditLoggerOptions{
		Sink:         sink,
		QueueSize:    cfg.Audit.QueueSize,
		WriteTimeout: cfg.Audit.WriteTimeout,
		Metrics:      deps.Metrics,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build audit logger: %w", err)
	}

	guard, err := httpx.NewGuard(httpx.GuardOptions{
		Auth:    authenticator,
		Audit:   audit,
		Metrics: deps.Metrics,
		Logger:  logger,
	})
	if err != nil {
		_ = audit.Close(context.Background())
		return nil, fmt.Errorf("build guard: %w", err)
	}

	return &AuthComponents{
		Authenticator: authenticator,
		Sessions:      sessions,
		Audit:         audit,
		Guard:         guard,
		Handlers:      &httpx.AuthHandlers{Sessions: sessions, Logger: logger},
	}, nil
}

func buildStrategies(
	cfg *config.AppConfig,
	users ports.UserRepository,
	verifier ports.IdentityVerifier,
) (*service.StrategyRegistry, error) {
	devCfg := devauth.Config{
		Production:    cfg.IsProduction(),
		TrustedMode:   cfg.Auth.TrustedMode,
		FallbackEmail: cfg.Auth.DevFallbackEmail,
	}
	direct, err := devauth.NewDirectStrategy(devCfg, users)
	if err != nil {
		return nil, fmt.Errorf("build direct strategy: %w", err)
	}
	shortcut, err := devauth.NewShortcutStrategy(devCfg, users)
	if err != nil {
		return nil, fmt.Errorf("build development strategy: %w", err)
	}
	return service.NewStrategyRegistry(service.StrategySet{
		Structured:  service.NewStructuredStrategy(verifier),
		Direct:      direct,
		Development: shortcut,
	}), nil
}
