package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	"github.com/sentrypost/authcore/internal/observability/metrics"
	"github.com/sentrypost/authcore/internal/service"
)

// Authenticator turns a raw bearer credential into an authentication context.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*domainauth.Context, error)
}

// AuditRecorder accepts audit entries without blocking.
type AuditRecorder interface {
	Record(entry domainauth.AuditEntry)
}

// GuardOptions groups dependencies for Guard.
type GuardOptions struct {
	Auth    Authenticator        // Required
	Audit   AuditRecorder        // Optional: Audit middleware is a pass-through when nil
	Metrics *metrics.AuthMetrics // Optional
	Logger  *slog.Logger
}

// Guard provides the authentication, authorization and audit middlewares.
type Guard struct {
	auth      Authenticator
	audit     AuditRecorder
	metrics   *metrics.AuthMetrics
	logger    *slog.Logger
	authorize func(*domainauth.Context, service.Requirement) error
}

// NewGuard constructs a Guard.
func NewGuard(opts GuardOptions) (*Guard, error) {
	if opts.Auth == nil {
		return nil, errors.New("Authenticator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		auth:    opts.Auth,
		audit:   opts.Audit,
		metrics: opts.Metrics,
		logger:  logger.With("component", "auth_guard"),

		authorize: service.Authorize,
	}, nil
}

// AccessTokenQueryParam is the query parameter accepted by the real-time handshake.
const AccessTokenQueryParam = "access_token"

// tokenSource extracts a raw credential from a request.
type tokenSource func(r *http.Request) string

// BearerToken returns the credential from "Authorization: Bearer <token>".
// Any other scheme, or a missing header, yields "".
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// handshakeToken prefers the header and falls back to the access_token query parameter.
func handshakeToken(r *http.Request) string {
	if tok := BearerToken(r); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.URL.Query().Get(AccessTokenQueryParam))
}

// RequireAuth authenticates the bearer token and attaches the context, or renders a 401.
func (g *Guard) RequireAuth() func(http.Handler) http.Handler {
	return g.requireAuth(BearerToken)
}

// RequireHandshakeAuth is RequireAuth for the real-time handshake, which also accepts
// the access_token query parameter when no Authorization header is sent.
func (g *Guard) RequireHandshakeAuth() func(http.Handler) http.Handler {
	return g.requireAuth(handshakeToken)
}

func (g *Guard) requireAuth(source tokenSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, err := g.auth.Authenticate(r.Context(), source(r))
			if err != nil {
				g.logger.InfoContext(r.Context(), "authentication rejected",
					"path", r.URL.Path,
					"code", apperrors.GetCode(err),
					"error", err,
				)
				ww := newRespWriter(w)
				WriteError(ww, err)
				g.recordAuthFailure(r, ww.status, err)
				return
			}
			noteCorrelationID(w, ac.CorrelationID())
			next.ServeHTTP(w, r.WithContext(SetAuthInContext(r.Context(), ac)))
		})
	}
}

// OptionalAuth attaches a context when the request carries a valid credential and
// otherwise continues anonymously. Failures are swallowed.
func (g *Guard) OptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := BearerToken(r); tok != "" {
				if ac, err := g.auth.Authenticate(r.Context(), tok); err == nil {
					noteCorrelationID(w, ac.CorrelationID())
					r = r.WithContext(SetAuthInContext(r.Context(), ac))
				} else {
					g.logger.DebugContext(r.Context(), "optional authentication failed", "code", apperrors.GetCode(err))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RoleOption adds a requirement beyond the role list.
type RoleOption func(*service.Requirement)

// WithPermissions requires every listed permission.
func WithPermissions(perms ...string) RoleOption {
	return func(req *service.Requirement) { req.Permissions = append(req.Permissions, perms...) }
}

// WithMinAccessLevel requires at least level.
func WithMinAccessLevel(level domainauth.AccessLevel) RoleOption {
	return func(req *service.Requirement) { req.MinAccessLevel = level }
}

// RequireRole enforces roles and options against the context attached by RequireAuth.
// Checks run in order: authenticated, role, permissions, access level.
func (g *Guard) RequireRole(roles []domainauth.Role, opts ...RoleOption) func(http.Handler) http.Handler {
	req := service.Requirement{Roles: append([]domainauth.Role(nil), roles...)}
	for _, opt := range opts {
		opt(&req)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, _ := GetAuthFromContext(r.Context())
			if err := g.decide(r, ac, req); err != nil {
				g.metrics.AuthorizationDenied(string(apperrors.GetCode(err)))
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// decide runs the authorization check; a fault inside it becomes AUTHORIZATION_ERROR.
func (g *Guard) decide(r *http.Request, ac *domainauth.Context, req service.Requirement) (err error) {
	defer func() {
		if p := recover(); p != nil {
			g.logger.ErrorContext(r.Context(), "authorization check panicked", "panic", p, "path", r.URL.Path)
			err = apperrors.Wrap(fmt.Errorf("panic: %v", p), apperrors.ErrCodeAuthorizationError,
				apperrors.PublicMessage(apperrors.ErrCodeAuthorizationError))
		}
	}()
	err = g.authorize(ac, req)
	if err != nil && ac != nil {
		g.logger.InfoContext(r.Context(), "authorization denied",
			"user_id", ac.UserID(),
			"code", apperrors.GetCode(err),
			"path", r.URL.Path,
			"correlation_id", ac.CorrelationID(),
		)
	}
	return err
}

// RequireAdminOrSupervisor allows admins and supervisors.
func (g *Guard) RequireAdminOrSupervisor() func(http.Handler) http.Handler {
	return g.RequireRole([]domainauth.Role{domainauth.RoleAdmin, domainauth.RoleSupervisor})
}

// RequireAdminWithAccess allows admins holding at least the admin access level.
func (g *Guard) RequireAdminWithAccess() func(http.Handler) http.Handler {
	return g.RequireRole([]domainauth.Role{domainauth.RoleAdmin}, WithMinAccessLevel(domainauth.AccessAdmin))
}

// RequireClient allows clients only.
func (g *Guard) RequireClient() func(http.Handler) http.Handler {
	return g.RequireRole([]domainauth.Role{domainauth.RoleClient})
}

// RequireAgentOrAbove allows agents, supervisors and admins.
func (g *Guard) RequireAgentOrAbove() func(http.Handler) http.Handler {
	return g.RequireRole([]domainauth.Role{domainauth.RoleAgent, domainauth.RoleSupervisor, domainauth.RoleAdmin})
}

// RequireSupervisorOrAbove allows supervisors and admins.
func (g *Guard) RequireSupervisorOrAbove() func(http.Handler) http.Handler {
	return g.RequireRole([]domainauth.Role{domainauth.RoleSupervisor, domainauth.RoleAdmin})
}

// AuditActionAuthFailed is recorded for every credential rejected by RequireAuth.
const AuditActionAuthFailed = "auth.failed"

// Audit records an entry after the handler has written its response.
// It must run inside RequireAuth or OptionalAuth to see the caller.
func (g *Guard) Audit(action, targetType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if g.audit == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := newRespWriter(w)
			next.ServeHTTP(ww, r)

			entry := auditEntry(r, action, targetType, ww.status)
			if ac, ok := GetAuthFromContext(r.Context()); ok {
				entry.UserID = ac.UserID()
				entry.Metadata.CorrelationID = ac.CorrelationID()
			}
			g.audit.Record(entry)
		})
	}
}

// recordAuthFailure audits a rejected credential. There is no user to attribute it to.
func (g *Guard) recordAuthFailure(r *http.Request, status int, err error) {
	if g.audit == nil {
		return
	}
	entry := auditEntry(r, AuditActionAuthFailed, "", status)
	entry.Extra = map[string]any{"code": string(apperrors.PublicCode(apperrors.GetCode(err)))}
	g.audit.Record(entry)
}

func auditEntry(r *http.Request, action, targetType string, status int) domainauth.AuditEntry {
	return domainauth.AuditEntry{
		Action:     action,
		TargetType: targetType,
		TargetID:   r.PathValue("id"),
		IP:         clientIP(r),
		UserAgent:  r.UserAgent(),
		Metadata: domainauth.AuditMetadata{
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: status,
		},
	}
}
