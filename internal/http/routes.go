package httpx

import (
	"log/slog"
	"net/http"

	"github.com/sentrypost/authcore/internal/observability/metrics"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Guard   *Guard
	Auth    *AuthHandlers
	Health  HealthChecker
	Metrics *metrics.AuthMetrics // Optional: enables /metrics and per-route instrumentation
	Logger  *slog.Logger
}

// NewRouter creates the HTTP handler with logging and panic recovery applied.
func NewRouter(s RouterServices) http.Handler {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, s.Metrics.Instrument(pattern, h))
	}

	if s.Health != nil {
		health := healthHandler(s.Health)
		handle("GET /healthz", health)
		handle("HEAD /healthz", health)
	}
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}

	if s.Guard != nil && s.Auth != nil {
		registerAuthRoutes(handle, s.Guard, s.Auth)
	}

	return Chain(mux, Logging(logger), Recover(logger))
}

func registerAuthRoutes(handle func(string, http.Handler), g *Guard, h *AuthHandlers) {
	authed := func(action, target string, fn http.HandlerFunc) http.Handler {
		return Chain(fn, g.RequireAuth(), g.Audit(action, target))
	}

	handle("GET /api/auth/me", authed("auth.me", "user", h.Me))
	handle("GET /api/auth/token-info", Chain(http.HandlerFunc(h.TokenInfo), g.OptionalAuth()))

	handle("POST /api/auth/sessions", authed("session.create", "session", h.CreateSession))
	handle("POST /api/auth/sessions/validate", http.HandlerFunc(h.ValidateSession))
	handle("DELETE /api/auth/sessions/current", authed("session.revoke", "session", h.RevokeCurrentSession))
	handle("DELETE /api/auth/sessions", authed("session.revoke_all", "session", h.RevokeAllSessions))

	handle("DELETE /api/admin/users/{id}/sessions", Chain(http.HandlerFunc(h.AdminRevokeUserSessions),
		g.RequireAuth(),
		g.Audit("admin.session.revoke_all", "user"),
		g.RequireAdminWithAccess(),
	))

	handle("GET /api/realtime/handshake", Chain(http.HandlerFunc(h.Handshake),
		g.RequireHandshakeAuth(),
		g.Audit("realtime.handshake", "connection"),
	))
}
