package devauth

// Package devauth provides the non-production authentication strategies:
// direct identifiers (a bare email in trusted mode) and development shortcut tokens.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	"github.com/sentrypost/authcore/internal/ports"
)

var (
	_ ports.Strategy = (*DirectStrategy)(nil)
	_ ports.Strategy = (*ShortcutStrategy)(nil)
)

// Strategy errors. Callers surface all of them as an authentication failure.
var (
	ErrProductionDisabled  = errors.New("devauth: strategy disabled in production")
	ErrTrustedModeRequired = errors.New("devauth: direct identifiers require trusted mode")
	ErrMalformedToken      = errors.New("devauth: malformed token")
	ErrUnknownUser         = errors.New("devauth: no user for identifier")
)

// ShortcutSubjectPrefix namespaces subjects minted for development shortcut users.
const ShortcutSubjectPrefix = "dev|"

// Config controls where the development strategies are allowed to run.
type Config struct {
	Production  bool
	TrustedMode bool
	// FallbackEmail is used when a development token's payload is not an email.
	FallbackEmail string
}

// DirectStrategy authenticates a bare email against an existing user.
// Allowed only in trusted mode outside production.
type DirectStrategy struct {
	cfg   Config
	users ports.UserRepository
}

// NewDirectStrategy constructs a DirectStrategy.
func NewDirectStrategy(cfg Config, users ports.UserRepository) (*DirectStrategy, error) {
	if users == nil {
		return nil, errors.New("devauth: user repository is required")
	}
	return &DirectStrategy{cfg: cfg, users: users}, nil
}

func (s *DirectStrategy) Method() domainauth.Method { return domainauth.MethodDirectIdentifier }

func (s *DirectStrategy) Authenticate(ctx context.Context, raw string) (domainauth.VerifiedIdentity, error) {
	if s.cfg.Production {
		return domainauth.VerifiedIdentity{}, ErrProductionDisabled
	}
	if !s.cfg.TrustedMode {
		return domainauth.VerifiedIdentity{}, ErrTrustedModeRequired
	}
	email := strings.TrimSpace(raw)
	if !domainauth.IsEmail(email) {
		return domainauth.VerifiedIdentity{}, ErrMalformedToken
	}

	user, err := s.users.GetByEmail(ctx, email)
	if apperrors.IsNotFound(err) {
		return domainauth.VerifiedIdentity{}, fmt.Errorf("%w: %s", ErrUnknownUser, domainauth.MaskEmail(email))
	}
	if err != nil {
		return domainauth.VerifiedIdentity{}, fmt.Errorf("devauth: lookup by email: %w", err)
	}

	return domainauth.VerifiedIdentity{
		Subject:   user.ExternalID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Claims:    map[string]any{"sub": user.ExternalID, "email": user.Email},
		Method:    domainauth.MethodDirectIdentifier,
	}, nil
}

// ShortcutStrategy authenticates "dev:<email>" tokens. Allowed only outside production.
// An existing user with the email is reused; otherwise a dev| subject is minted for provisioning.
type ShortcutStrategy struct {
	cfg   Config
	users ports.UserRepository
}

// NewShortcutStrategy constructs a ShortcutStrategy.
func NewShortcutStrategy(cfg Config, users ports.UserRepository) (*ShortcutStrategy, error) {
	if users == nil {
		return nil, errors.New("devauth: user repository is required")
	}
	if cfg.FallbackEmail != "" && !domainauth.IsEmail(cfg.FallbackEmail) {
		return nil, fmt.Errorf("devauth: fallback email %q is not an email", cfg.FallbackEmail)
	}
	return &ShortcutStrategy{cfg: cfg, users: users}, nil
}

func (s *ShortcutStrategy) Method() domainauth.Method { return domainauth.MethodDevelopment }

func (s *ShortcutStrategy) Authenticate(ctx context.Context, raw string) (domainauth.VerifiedIdentity, error) {
	if s.cfg.Production {
		return domainauth.VerifiedIdentity{}, ErrProductionDisabled
	}
	email, ok := domainauth.ExtractEmailFromDevToken(raw)
	if !ok {
		if s.cfg.FallbackEmail == "" {
			return domainauth.VerifiedIdentity{}, ErrMalformedToken
		}
		email = s.cfg.FallbackEmail
	}
	email = strings.ToLower(email)

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return domainauth.VerifiedIdentity{
			Subject:   user.ExternalID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Claims:    map[string]any{"sub": user.ExternalID, "email": user.Email},
			Method:    domainauth.MethodDevelopment,
		}, nil
	case !apperrors.IsNotFound(err):
		return domainauth.VerifiedIdentity{}, fmt.Errorf("devauth: lookup by email: %w", err)
	}

	subject := ShortcutSubjectPrefix + email
	return domainauth.VerifiedIdentity{
		Subject: subject,
		Email:   email,
		Claims:  map[string]any{"sub": subject, "email": email},
		Method:  domainauth.MethodDevelopment,
	}, nil
}
