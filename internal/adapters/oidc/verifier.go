package oidc

// Package oidc verifies identity-platform ID tokens using OIDC discovery.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	"github.com/sentrypost/authcore/internal/ports"
)

var _ ports.IdentityVerifier = (*Verifier)(nil)

// VerifierConfig holds configuration for the OIDC verifier.
type VerifierConfig struct {
	// IssuerURL is the issuer or its discovery URL; a trailing
	// "/.well-known/openid-configuration" is stripped.
	IssuerURL string
	ClientID  string
	// SkipClientIDCheck accepts tokens minted for any audience.
	SkipClientIDCheck bool
	SigningAlgs       []string
	HTTPClient        *http.Client // Optional, defaults to a 30s client
}

// Verifier implements ports.IdentityVerifier with go-oidc.
type Verifier struct {
	verifier   *gooidc.IDTokenVerifier
	httpClient *http.Client
}

// NewVerifier performs discovery against the issuer and builds a verifier whose
// key set refreshes on unknown key ids.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if cfg.ClientID == "" && !cfg.SkipClientIDCheck {
		return nil, errors.New("client ID is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	issuer := strings.TrimSuffix(cfg.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")

	op, err := gooidc.NewProvider(oauth2Context(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	return &Verifier{
		verifier:   op.Verifier(verifierConfig(cfg)),
		httpClient: httpClient,
	}, nil
}

// NewStaticVerifier builds a verifier over a fixed key set without discovery.
func NewStaticVerifier(issuer string, keySet gooidc.KeySet, cfg VerifierConfig) *Verifier {
	return &Verifier{verifier: gooidc.NewVerifier(issuer, keySet, verifierConfig(cfg))}
}

func verifierConfig(cfg VerifierConfig) *gooidc.Config {
	return &gooidc.Config{
		ClientID:             cfg.ClientID,
		SkipClientIDCheck:    cfg.SkipClientIDCheck,
		SupportedSigningAlgs: cfg.SigningAlgs,
	}
}

func oauth2Context(ctx context.Context, c *http.Client) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c)
}

// Mode implements ports.IdentityVerifier.
func (v *Verifier) Mode() string { return "oidc" }

// Verify checks signature, issuer, audience and expiry, then maps the claims.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (domainauth.VerifiedIdentity, error) {
	idTok, err := v.verifier.Verify(oauth2Context(ctx, v.httpClient), rawToken)
	if err != nil {
		return domainauth.VerifiedIdentity{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims map[string]any
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return domainauth.VerifiedIdentity{}, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	return identityFromClaims(idTok.Subject, claims), nil
}

// identityFromClaims accepts both standard OIDC and AD/ADFS claim shapes.
func identityFromClaims(subject string, claims map[string]any) domainauth.VerifiedIdentity {
	return domainauth.VerifiedIdentity{
		Subject:   firstNonEmpty(subject, str(claims, "sub")),
		Email:     firstNonEmpty(str(claims, "email"), str(claims, "mail")),
		FirstName: firstNonEmpty(str(claims, "given_name"), str(claims, "firstname")),
		LastName:  firstNonEmpty(str(claims, "family_name"), str(claims, "lastname")),
		Claims:    claims,
		Method:    domainauth.MethodIdentityPlatform,
	}
}

func str(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
