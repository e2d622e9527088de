package service

import (
	"context"
	"errors"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	"github.com/sentrypost/authcore/internal/ports"
)

var _ ports.Strategy = (*StructuredStrategy)(nil)

// StrategySet binds one strategy to each token kind. A nil field leaves that kind unsupported.
type StrategySet struct {
	Structured  ports.Strategy
	Direct      ports.Strategy
	Development ports.Strategy
}

// StrategyRegistry dispatches a classified token to its strategy. It is immutable after construction.
type StrategyRegistry struct {
	set StrategySet
}

// NewStrategyRegistry builds the registry once at startup.
func NewStrategyRegistry(set StrategySet) *StrategyRegistry {
	return &StrategyRegistry{set: set}
}

// Get returns the strategy for kind, or nil when none is bound.
func (r *StrategyRegistry) Get(kind domainauth.TokenKind) ports.Strategy {
	if r == nil {
		return nil
	}
	switch kind {
	case domainauth.TokenStructured:
		return r.set.Structured
	case domainauth.TokenDirectIdentifier:
		return r.set.Direct
	case domainauth.TokenDevelopmentShortcut:
		return r.set.Development
	default:
		return nil
	}
}

var (
	errMalformedStructured = errors.New("structured token failed shape check")
	errPlatformDisabled    = errors.New("identity platform verification is not configured")
)

// StructuredStrategy verifies signed credentials through the external identity platform.
type StructuredStrategy struct {
	verifier ports.IdentityVerifier
}

// NewStructuredStrategy wraps verifier. A nil verifier rejects every structured token.
func NewStructuredStrategy(verifier ports.IdentityVerifier) *StructuredStrategy {
	return &StructuredStrategy{verifier: verifier}
}

func (s *StructuredStrategy) Method() domainauth.Method { return domainauth.MethodIdentityPlatform }

// Authenticate runs the shape pre-check then delegates to the platform. Failures are not retried.
func (s *StructuredStrategy) Authenticate(ctx context.Context, raw string) (domainauth.VerifiedIdentity, error) {
	if !domainauth.IsStructuredToken(raw) {
		return domainauth.VerifiedIdentity{}, apperrors.AuthenticationFailed(errMalformedStructured)
	}
	if s.verifier == nil {
		return domainauth.VerifiedIdentity{}, apperrors.VerificationFailed(errPlatformDisabled)
	}
	id, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		return domainauth.VerifiedIdentity{}, apperrors.VerificationFailed(err)
	}
	if id.Subject == "" {
		return domainauth.VerifiedIdentity{}, apperrors.VerificationFailed(errors.New("verified identity has no subject"))
	}
	id.Method = domainauth.MethodIdentityPlatform
	return id, nil
}
