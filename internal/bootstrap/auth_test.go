package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrypost/authcore/config"
	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	httpx "github.com/sentrypost/authcore/internal/http"
	authmocks "github.com/sentrypost/authcore/internal/mocks/auth"
	"github.com/sentrypost/authcore/internal/observability/metrics"
	"github.com/sentrypost/authcore/internal/service"
	"github.com/sentrypost/authcore/internal/testutil"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func devConfig() *config.AppConfig {
	cfg := &config.AppConfig{Env: config.EnvDevelopment}
	cfg.Auth.PlatformMode = config.PlatformDisabled
	cfg.Sanitize()
	return cfg
}

func TestBuildVerifier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	idp := testutil.NewTestIdP(t)

	t.Run("disabled", func(t *testing.T) {
		v, err := BuildVerifier(ctx, config.AuthConfig{PlatformMode: config.PlatformDisabled}, discardLogger())
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("oidc", func(t *testing.T) {
		v, err := BuildVerifier(ctx, config.AuthConfig{
			PlatformMode: config.PlatformOIDC,
			OIDC:         config.OIDCConfig{IssuerURL: idp.Issuer, ClientID: "authcore"},
		}, discardLogger())
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, "oidc", v.Mode())
	})

	t.Run("jwks", func(t *testing.T) {
		v, err := BuildVerifier(ctx, config.AuthConfig{
			PlatformMode: config.PlatformJWKS,
			JWKS: config.JWKSConfig{
				URL:    idp.JWKSURL(),
				Issuer: idp.Issuer,
				Leeway: time.Second,
			},
		}, discardLogger())
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, "jwks", v.Mode())

		token := idp.Sign(t, jwt.MapClaims{
			"iss":   idp.Issuer,
			"sub":   "user_123",
			"email": "ops@example.com",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
		id, err := v.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "user_123", id.Subject)
	})

	t.Run("oidc missing issuer", func(t *testing.T) {
		_, err := BuildVerifier(ctx, config.AuthConfig{PlatformMode: config.PlatformOIDC}, discardLogger())
		assert.Error(t, err)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := BuildVerifier(ctx, config.AuthConfig{PlatformMode: "saml"}, discardLogger())
		assert.ErrorContains(t, err, "unsupported platform mode")
	})
}

func TestBuildAuthRequiresDependencies(t *testing.T) {
	users := authmocks.NewMemoryUserRepository()
	store := authmocks.NewMemorySessionStore()

	_, err := BuildAuth(AuthDeps{Users: users, Sessions: store})
	assert.ErrorContains(t, err, "AppConfig")
	_, err = BuildAuth(AuthDeps{Config: devConfig(), Sessions: store})
	assert.ErrorContains(t, err, "UserRepository")
	_, err = BuildAuth(AuthDeps{Config: devConfig(), Users: users})
	assert.ErrorContains(t, err, "SessionStore")
}

func TestBuildAuthDevelopmentFlow(t *testing.T) {
	users := authmocks.NewMemoryUserRepository()
	sink := &authmocks.RecordingAuditSink{}
	cfg := devConfig()
	cfg.Auth.DefaultRole = "agent"

	auth, err := BuildAuth(AuthDeps{
		Config:   cfg,
		Users:    users,
		Sessions: authmocks.NewMemorySessionStore(),
		Sink:     sink,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)

	ac, err := auth.Authenticator.Authenticate(context.Background(), "dev:Ops@Example.com")
	require.NoError(t, err)
	assert.Equal(t, domainauth.MethodDevelopment, ac.Method())
	assert.Equal(t, domainauth.RoleAgent, ac.User().Role)
	assert.Equal(t, "ops@example.com", ac.User().Email)

	// Structured tokens fail closed without a configured platform.
	_, err = auth.Authenticator.Authenticate(context.Background(), "eyJhbGciOiJub25lIn0.eyJzdWIiOiJ4In0.c2ln")
	assert.True(t, apperrors.IsAuthFailure(err))

	handler := BuildHTTPHandler(&HTTPServerConfig{Config: cfg, Auth: auth, Logger: discardLogger()})
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer dev:ops@example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, auth.Audit.Close(context.Background()))
	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "auth.me", entries[0].Action)
}

func TestBuildAuthDevelopmentShortcutReusesExistingUser(t *testing.T) {
	users := authmocks.NewMemoryUserRepository(domainauth.User{
		ID:          "admin-1",
		ExternalID:  "oidc|42",
		Email:       "admin@example.com",
		Role:        domainauth.RoleAdmin,
		Status:      domainauth.UserStatusActive,
		AccessLevel: domainauth.AccessAdmin,
	})
	auth, err := BuildAuth(AuthDeps{
		Config:      devConfig(),
		Users:       users,
		Sessions:    authmocks.NewMemorySessionStore(),
		AuditOutput: io.Discard,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = auth.Audit.Close(context.Background()) })

	ac, err := auth.Authenticator.Authenticate(context.Background(), "dev:admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, users.Count())
	assert.Equal(t, "admin-1", ac.UserID())
	assert.Equal(t, domainauth.RoleAdmin, ac.User().Role)
	assert.Equal(t, "oidc|42", ac.User().ExternalID)
}

func TestBuildHTTPHandlerAuditsRejectedCredentials(t *testing.T) {
	sink := &authmocks.RecordingAuditSink{}
	cfg := devConfig()
	auth, err := BuildAuth(AuthDeps{
		Config:   cfg,
		Users:    authmocks.NewMemoryUserRepository(),
		Sessions: authmocks.NewMemorySessionStore(),
		Sink:     sink,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)
	handler := BuildHTTPHandler(&HTTPServerConfig{Config: cfg, Auth: auth, Logger: discardLogger()})

	for _, header := range []string{"", "Bearer eyJhbGciOiJub25lIn0.eyJzdWIiOiJ4In0.c2ln"} {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	require.NoError(t, auth.Audit.Close(context.Background()))
	entries := sink.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, httpx.AuditActionAuthFailed, e.Action)
		assert.Empty(t, e.UserID)
		assert.Equal(t, http.StatusUnauthorized, e.Metadata.StatusCode)
	}
}

func TestBuildAuthProductionRejectsDevTokens(t *testing.T) {
	cfg := devConfig()
	cfg.Env = config.EnvProduction
	cfg.Sanitize()

	auth, err := BuildAuth(AuthDeps{
		Config:      cfg,
		Users:       authmocks.NewMemoryUserRepository(),
		Sessions:    authmocks.NewMemorySessionStore(),
		AuditOutput: io.Discard,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = auth.Audit.Close(context.Background()) })

	_, err = auth.Authenticator.Authenticate(context.Background(), "dev:ops@example.com")
	assert.Equal(t, apperrors.ErrCodeAuthenticationFailed, apperrors.GetCode(err))
	_, err = auth.Authenticator.Authenticate(context.Background(), "ops@example.com")
	assert.Equal(t, apperrors.ErrCodeAuthenticationFailed, apperrors.GetCode(err))
}

func TestBuildHTTPHandlerMetricsToggle(t *testing.T) {
	cfg := devConfig()
	m := metrics.New()
	health := service.NewHealthService(service.HealthServiceOptions{})

	get := func(h http.Handler, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	h := BuildHTTPHandler(&HTTPServerConfig{Config: cfg, Health: health, Metrics: m, Logger: discardLogger()})
	assert.Equal(t, http.StatusNotFound, get(h, "/metrics").Code)

	rec := get(h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var report service.HealthReport
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&report))
	assert.Equal(t, service.HealthDegraded, report.Status)

	cfg.Observability.Metrics.Enabled = true
	h = BuildHTTPHandler(&HTTPServerConfig{Config: cfg, Health: health, Metrics: m, Logger: discardLogger()})
	require.Equal(t, http.StatusOK, get(h, "/healthz").Code)
	rec = get(h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "authcore_http_requests_total")
}

func TestShutdownDrainsAudit(t *testing.T) {
	sink := &authmocks.RecordingAuditSink{}
	audit, err := service.NewAuditLogger(service.AuditLoggerOptions{Sink: sink, Logger: discardLogger()})
	require.NoError(t, err)
	audit.Record(domainauth.AuditEntry{Action: "session.create"})

	server := &http.Server{ReadHeaderTimeout: time.Second}
	require.NoError(t, Shutdown(context.Background(), ShutdownConfig{
		Server:  server,
		Audit:   audit,
		Timeout: time.Second,
		Logger:  discardLogger(),
	}))
	assert.Len(t, sink.Entries(), 1)
}

type countingPruner struct{ calls chan struct{} }

func (p countingPruner) PruneStaleIndexes(context.Context, int) (int, error) {
	select {
	case p.calls <- struct{}{}:
	default:
	}
	return 0, nil
}

func TestStartSessionReaper(t *testing.T) {
	pruner := countingPruner{calls: make(chan struct{}, 1)}

	stop, err := StartSessionReaper(context.Background(), config.SessionConfig{ReaperEnabled: false}, pruner, nil, discardLogger())
	require.NoError(t, err)
	stop()
	assert.Empty(t, pruner.calls)

	stop, err = StartSessionReaper(context.Background(), config.SessionConfig{
		ReaperEnabled:  true,
		ReaperInterval: time.Millisecond,
		ReaperBatch:    10,
	}, pruner, nil, discardLogger())
	require.NoError(t, err)
	select {
	case <-pruner.calls:
	case <-time.After(time.Second):
		t.Fatal("reaper never ran")
	}
	stop()
}
