package httpx

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	"github.com/sentrypost/authcore/internal/service"
)

// SessionHeader names the device session token for DELETE /api/auth/sessions/current.
const SessionHeader = "X-Session-Token"

// AuthHandlers serves the authentication and session endpoints.
type AuthHandlers struct {
	Sessions *service.SessionManager
	Logger   *slog.Logger
}

type authInfo struct {
	TokenKind       domainauth.TokenKind `json:"token_kind"`
	Method          domainauth.Method    `json:"method"`
	CorrelationID   string               `json:"correlation_id"`
	AuthenticatedAt time.Time            `json:"authenticated_at"`
}

type meResponse struct {
	User domainauth.User `json:"user"`
	Auth authInfo        `json:"auth"`
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Me returns the authenticated user and how they authenticated.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := GetAuthFromContext(r.Context())
	if !ok {
		WriteError(w, apperrors.New(apperrors.ErrCodeAuthenticationRequired, "Authentication required"))
		return
	}
	WriteData(w, http.StatusOK, meResponse{
		User: ac.User(),
		Auth: authInfo{
			TokenKind:       ac.TokenKind(),
			Method:          ac.Method(),
			CorrelationID:   ac.CorrelationID(),
			AuthenticatedAt: ac.AuthenticatedAt(),
		},
	})
}

type tokenInfoResponse struct {
	Present       bool                 `json:"present"`
	Kind          domainauth.TokenKind `json:"kind,omitempty"`
	Description   string               `json:"description"`
	Authenticated bool                 `json:"authenticated"`
	UserID        string               `json:"user_id,omitempty"`
}

// TokenInfo classifies the presented token and describes it without echoing it.
func (h *AuthHandlers) TokenInfo(w http.ResponseWriter, r *http.Request) {
	tok := BearerToken(r)
	resp := tokenInfoResponse{Description: domainauth.DescribeToken(tok)}
	if tok != "" {
		resp.Present = true
		resp.Kind = domainauth.ClassifyToken(tok)
	}
	if ac, ok := GetAuthFromContext(r.Context()); ok {
		resp.Authenticated = true
		resp.UserID = ac.UserID()
	}
	WriteData(w, http.StatusOK, resp)
}

type createSessionRequest struct {
	Device *domainauth.DeviceInfo `json:"device,omitempty"`
}

type createSessionResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// CreateSession issues a device session for the authenticated user.
func (h *AuthHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		WriteError(w, apperrors.New(apperrors.ErrCodeAuthenticationRequired, "Authentication required"))
		return
	}
	var req createSessionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	device := req.Device
	if device == nil {
		device = &domainauth.DeviceInfo{}
	}
	device.UserAgent = r.UserAgent()
	device.IP = clientIP(r)

	token, err := h.Sessions.CreateSession(r.Context(), user.ID, device)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "create session failed", "user_id", user.ID, "error", err)
		WriteError(w, err)
		return
	}
	WriteData(w, http.StatusCreated, createSessionResponse{
		Token:     token,
		ExpiresIn: int64(service.SessionTTL / time.Second),
	})
}

type validateSessionRequest struct {
	Token string `json:"token"`
}

// ValidateSession reports only whether the token is a live session.
func (h *AuthHandlers) ValidateSession(w http.ResponseWriter, r *http.Request) {
	var req validateSessionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	valid := h.Sessions.ValidateSession(r.Context(), strings.TrimSpace(req.Token))
	WriteData(w, http.StatusOK, map[string]bool{"valid": valid})
}

// RevokeCurrentSession revokes the caller's session named in the X-Session-Token header.
func (h *AuthHandlers) RevokeCurrentSession(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		WriteError(w, apperrors.New(apperrors.ErrCodeAuthenticationRequired, "Authentication required"))
		return
	}
	token := strings.TrimSpace(r.Header.Get(SessionHeader))
	if token == "" {
		WriteError(w, apperrors.ValidationField("session_token", SessionHeader+" header is required"))
		return
	}
	if err := h.Sessions.RevokeOwnedSession(r.Context(), user.ID, token); err != nil {
		h.logger().ErrorContext(r.Context(), "revoke session failed", "user_id", user.ID, "error", err)
		WriteError(w, err)
		return
	}
	WriteData(w, http.StatusOK, nil)
}

// RevokeAllSessions revokes every session of the caller.
func (h *AuthHandlers) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		WriteError(w, apperrors.New(apperrors.ErrCodeAuthenticationRequired, "Authentication required"))
		return
	}
	h.revokeAll(w, r, user.ID)
}

// AdminRevokeUserSessions revokes every session of the user named in the path.
func (h *AuthHandlers) AdminRevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	h.revokeAll(w, r, r.PathValue("id"))
}

func (h *AuthHandlers) revokeAll(w http.ResponseWriter, r *http.Request, userID string) {
	n, err := h.Sessions.RevokeAllUserSessions(r.Context(), userID)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "revoke user sessions failed", "user_id", userID, "error", err)
		WriteError(w, err)
		return
	}
	WriteData(w, http.StatusOK, map[string]int{"revoked": n})
}

type handshakeResponse struct {
	UserID        string          `json:"user_id"`
	Role          domainauth.Role `json:"role"`
	CorrelationID string          `json:"correlation_id"`
}

// Handshake acknowledges an authenticated real-time connection attempt.
func (h *AuthHandlers) Handshake(w http.ResponseWriter, r *http.Request) {
	ac, ok := GetAuthFromContext(r.Context())
	if !ok {
		WriteError(w, apperrors.New(apperrors.ErrCodeAuthenticationRequired, "Authentication required"))
		return
	}
	user := ac.User()
	WriteData(w, http.StatusOK, handshakeResponse{
		UserID:        user.ID,
		Role:          user.Role,
		CorrelationID: ac.CorrelationID(),
	})
}
