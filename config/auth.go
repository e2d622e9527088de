package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
)

// PlatformMode selects how structured tokens are verified.
type PlatformMode string

const (
	// PlatformOIDC uses OpenID Connect discovery and ID-token verification.
	PlatformOIDC PlatformMode = "oidc"
	// PlatformJWKS validates access tokens against a JWKS endpoint.
	PlatformJWKS PlatformMode = "jwks"
	// PlatformDisabled rejects every structured token.
	PlatformDisabled PlatformMode = "disabled"
)

// UnmarshalText implements encoding.TextUnmarshaler for PlatformMode.
func (m *PlatformMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oidc", "jwks", "disabled":
		*m = PlatformMode(v)
		return nil
	default:
		return fmt.Errorf("invalid PlatformMode: %q (valid options: oidc, jwks, disabled)", v)
	}
}

// OIDCConfig contains OpenID Connect verifier configuration.
type OIDCConfig struct {
	IssuerURL         string   `env:"ISSUER_URL"`
	ClientID          string   `env:"CLIENT_ID"`
	SkipClientIDCheck bool     `env:"SKIP_CLIENT_ID_CHECK" envDefault:"false"`
	SigningAlgs       []string `env:"SIGNING_ALGS"         envDefault:"RS256"  envSeparator:","`
}

// JWKSConfig contains JWKS access-token verifier configuration.
type JWKSConfig struct {
	URL        string        `env:"URL"`
	Issuer     string        `env:"ISSUER"`
	Audience   string        `env:"AUDIENCE"`
	Algorithms []string      `env:"ALGORITHMS" envDefault:"RS256" envSeparator:","`
	Leeway     time.Duration `env:"LEEWAY"     envDefault:"30s"`
}

// ClaimPathsConfig lists the JMESPath expressions tried in order for each attribute.
// Lists are ';'-separated since JMESPath multiselects contain commas. Empty lists use the built-in chains.
type ClaimPathsConfig struct {
	Role        []string `env:"ROLE_PATHS"         envSeparator:";"`
	Permissions []string `env:"PERMISSION_PATHS"   envSeparator:";"`
	AccessLevel []string `env:"ACCESS_LEVEL_PATHS" envSeparator:";"`
	Profile     []string `env:"PROFILE_PATHS"      envSeparator:";"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// TrustedMode enables bare-email direct identifiers outside production.
	TrustedMode bool `env:"AUTH_TRUSTED_MODE" envDefault:"false"`

	// DevFallbackEmail is used when a development token does not carry an email.
	DevFallbackEmail string `env:"AUTH_DEV_FALLBACK_EMAIL"`

	// PlatformMode selects the structured-token verifier.
	PlatformMode PlatformMode `env:"AUTH_PLATFORM_MODE" envDefault:"oidc"`

	OIDC OIDCConfig `envPrefix:"AUTH_OIDC_"`
	JWKS JWKSConfig `envPrefix:"AUTH_JWKS_"`

	Paths ClaimPathsConfig `envPrefix:"AUTH_"`

	// Provisioning defaults for users created on first authentication.
	DefaultRole        string `env:"AUTH_DEFAULT_ROLE"         envDefault:"client"`
	DefaultAccessLevel string `env:"AUTH_DEFAULT_ACCESS_LEVEL" envDefault:"standard"`
}

// Sanitize trims values and forces the development-only switches off in production.
func (a *AuthConfig) Sanitize(production bool) {
	a.DevFallbackEmail = strings.TrimSpace(a.DevFallbackEmail)
	a.OIDC.IssuerURL = strings.TrimSpace(a.OIDC.IssuerURL)
	a.JWKS.URL = strings.TrimSpace(a.JWKS.URL)
	a.DefaultRole = strings.ToLower(strings.TrimSpace(a.DefaultRole))
	a.DefaultAccessLevel = strings.ToLower(strings.TrimSpace(a.DefaultAccessLevel))
	if a.PlatformMode == "" {
		a.PlatformMode = PlatformOIDC
	}
	if a.JWKS.Leeway < 0 {
		a.JWKS.Leeway = 0
	}
	if production {
		a.TrustedMode = false
	}
	a.Paths.Role = trimAll(a.Paths.Role)
	a.Paths.Permissions = trimAll(a.Paths.Permissions)
	a.Paths.AccessLevel = trimAll(a.Paths.AccessLevel)
	a.Paths.Profile = trimAll(a.Paths.Profile)
}

// Validate checks that the selected platform mode is fully configured.
func (a *AuthConfig) Validate() error {
	var errs []error
	switch a.PlatformMode {
	case PlatformOIDC:
		if a.OIDC.IssuerURL == "" {
			errs = append(errs, errors.New("AUTH_OIDC_ISSUER_URL is required when AUTH_PLATFORM_MODE=oidc"))
		}
		if a.OIDC.ClientID == "" && !a.OIDC.SkipClientIDCheck {
			errs = append(errs, errors.New("AUTH_OIDC_CLIENT_ID is required unless AUTH_OIDC_SKIP_CLIENT_ID_CHECK=true"))
		}
	case PlatformJWKS:
		if a.JWKS.URL == "" {
			errs = append(errs, errors.New("AUTH_JWKS_URL is required when AUTH_PLATFORM_MODE=jwks"))
		}
	}
	if _, ok := domainauth.ParseRole(a.DefaultRole); !ok {
		errs = append(errs, fmt.Errorf("AUTH_DEFAULT_ROLE %q is not a known role", a.DefaultRole))
	}
	if _, ok := domainauth.ParseAccessLevel(a.DefaultAccessLevel); !ok {
		errs = append(errs, fmt.Errorf("AUTH_DEFAULT_ACCESS_LEVEL %q is not a known access level", a.DefaultAccessLevel))
	}
	if a.DevFallbackEmail != "" {
		if _, err := mail.ParseAddress(a.DevFallbackEmail); err != nil {
			errs = append(errs, fmt.Errorf("AUTH_DEV_FALLBACK_EMAIL: %w", err))
		}
	}
	return errors.Join(errs...)
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
