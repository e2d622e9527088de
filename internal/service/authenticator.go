package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	"github.com/sentrypost/authcore/internal/observability/metrics"
)

const tracerName = "github.com/sentrypost/authcore/internal/service"

// AuthenticatorOptions groups dependencies for Authenticator.
type AuthenticatorOptions struct {
	Registry *StrategyRegistry    // Required
	Resolver *IdentityResolver    // Required
	Contexts *ContextBuilder      // Optional: real clock when nil
	Metrics  *metrics.AuthMetrics // Optional
	Tracer   trace.Tracer         // Optional: global tracer provider when nil
	Logger   *slog.Logger
}

// Authenticator runs the pipeline: classify, dispatch, verify, resolve, build context.
type Authenticator struct {
	registry *StrategyRegistry
	resolver *IdentityResolver
	contexts *ContextBuilder
	metrics  *metrics.AuthMetrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(opts AuthenticatorOptions) (*Authenticator, error) {
	if opts.Registry == nil {
		return nil, errors.New("StrategyRegistry is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("IdentityResolver is required")
	}
	contexts := opts.Contexts
	if contexts == nil {
		contexts = NewContextBuilder(nil)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		registry: opts.Registry,
		resolver: opts.Resolver,
		contexts: contexts,
		metrics:  opts.Metrics,
		tracer:   tracer,
		logger:   logger.With("component", "authenticator"),
	}, nil
}

// Authenticate turns a raw bearer credential into an immutable Context.
// Every returned error is an *errors.AppError; causes are logged, never rendered.
func (a *Authenticator) Authenticate(ctx context.Context, rawToken string) (*domainauth.Context, error) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "auth.authenticate")
	defer span.End()

	token := strings.TrimSpace(rawToken)
	if token == "" {
		err := apperrors.TokenRequired()
		a.finish(ctx, span, "", "", start, err)
		return nil, err
	}

	kind := domainauth.ClassifyToken(token)
	span.SetAttributes(attribute.String("auth.token_kind", string(kind)))

	strategy := a.registry.Get(kind)
	if strategy == nil {
		err := apperrors.UnsupportedTokenType()
		a.logger.WarnContext(ctx, "no strategy for token kind", "token_kind", kind, "token", domainauth.DescribeToken(token))
		a.finish(ctx, span, kind, "", start, err)
		return nil, err
	}
	method := strategy.Method()

	identity, err := strategy.Authenticate(ctx, token)
	if err != nil {
		a.logger.WarnContext(ctx, "strategy rejected token",
			"token_kind", kind,
			"method", method,
			"token", domainauth.DescribeToken(token),
			"error", err,
		)
		authErr := asAuthFailure(err)
		a.finish(ctx, span, kind, method, start, authErr)
		return nil, authErr
	}
	if identity.Method == "" {
		identity.Method = method
	}

	user, err := a.resolver.Resolve(ctx, identity)
	if err != nil {
		a.logger.WarnContext(ctx, "identity resolution failed",
			"token_kind", kind,
			"method", identity.Method,
			"error", err,
		)
		if apperrors.GetCode(err) == "" {
			err = apperrors.Wrap(err, apperrors.ErrCodeInternal, "resolve identity")
		}
		a.finish(ctx, span, kind, identity.Method, start, err)
		return nil, err
	}

	ac := a.contexts.Build(*user, kind, identity.Method, identity.Claims)
	span.SetAttributes(
		attribute.String("auth.method", string(identity.Method)),
		attribute.String("auth.correlation_id", ac.CorrelationID()),
	)
	a.finish(ctx, span, kind, identity.Method, start, nil)
	return ac, nil
}

func (a *Authenticator) finish(
	ctx context.Context,
	span trace.Span,
	kind domainauth.TokenKind,
	method domainauth.Method,
	start time.Time,
	err error,
) {
	attempt := metrics.AuthAttempt{Kind: string(kind), Method: string(method), Duration: time.Since(start)}
	if err != nil {
		code := apperrors.GetCode(err)
		attempt.Code = string(code)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.PublicCode(code)))
	} else {
		span.SetStatus(codes.Ok, "")
		a.logger.DebugContext(ctx, "authenticated", "token_kind", kind, "method", method)
	}
	a.metrics.ObserveAuthentication(attempt)
}

// asAuthFailure keeps an AppError that already carries a 401 code and wraps anything else.
func asAuthFailure(err error) error {
	if apperrors.IsAuthFailure(err) {
		return err
	}
	return apperrors.AuthenticationFailed(err)
}
