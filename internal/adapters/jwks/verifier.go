package jwks

// Package jwks verifies identity-platform access tokens against a JSON Web Key Set.

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	"github.com/sentrypost/authcore/internal/ports"
)

var _ ports.IdentityVerifier = (*Verifier)(nil)

// Config controls validation behavior for access tokens.
type Config struct {
	JWKSURL string
	Issuer  string
	// Audience is enforced when non-empty.
	Audience    string
	AllowedAlgs []string
	Leeway      time.Duration
}

// DefaultConfig returns a Config with safe defaults for algorithm and leeway.
func DefaultConfig() Config {
	return Config{
		AllowedAlgs: []string{"RS256"},
		Leeway:      30 * time.Second,
	}
}

// ErrUnauthorized indicates that the token failed signature, issuer, audience or time validation.
var ErrUnauthorized = errors.New("jwks: unauthorized")

// Verifier implements ports.IdentityVerifier over an auto-refreshing JWKS.
type Verifier struct {
	cfg     Config
	keyfunc jwt.Keyfunc
}

// New fetches the key set and keeps it refreshed until ctx is canceled.
func New(ctx context.Context, cfg Config) (*Verifier, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("jwks URL is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.JWKSURL})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}
	return NewWithKeyfunc(kf.Keyfunc, cfg), nil
}

// NewWithKeyfunc builds a verifier over an arbitrary key lookup.
func NewWithKeyfunc(kf jwt.Keyfunc, cfg Config) *Verifier {
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = DefaultConfig().AllowedAlgs
	}
	return &Verifier{
		cfg: cfg,
		keyfunc: func(t *jwt.Token) (any, error) {
			if alg := t.Method.Alg(); !slices.Contains(cfg.AllowedAlgs, alg) {
				return nil, fmt.Errorf("disallowed alg: %s", alg)
			}
			return kf(t)
		},
	}
}

// Mode implements ports.IdentityVerifier.
func (v *Verifier) Mode() string { return "jwks" }

// Verify implements ports.IdentityVerifier.
func (v *Verifier) Verify(_ context.Context, rawToken string) (domainauth.VerifiedIdentity, error) {
	if rawToken == "" {
		return domainauth.VerifiedIdentity{}, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithLeeway(v.cfg.Leeway),
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	parsed, err := jwt.NewParser(opts...).Parse(rawToken, v.keyfunc)
	if err != nil {
		return domainauth.VerifiedIdentity{}, fmt.Errorf("%w: token parse/verify failed: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return domainauth.VerifiedIdentity{}, errors.New("invalid claims type")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domainauth.VerifiedIdentity{}, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}

	email, _ := claims["email"].(string)
	first, _ := claims["given_name"].(string)
	last, _ := claims["family_name"].(string)
	return domainauth.VerifiedIdentity{
		Subject:   sub,
		Email:     email,
		FirstName: first,
		LastName:  last,
		Claims:    map[string]any(claims),
		Method:    domainauth.MethodIdentityPlatform,
	}, nil
}
