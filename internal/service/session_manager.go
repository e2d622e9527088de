package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sentrypost/authcore/internal/data"
	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	"github.com/sentrypost/authcore/internal/observability/metrics"
	"github.com/sentrypost/authcore/internal/ports"
)

const (
	// SessionTTL is the fixed lifetime of a device session.
	SessionTTL = 24 * time.Hour

	sessionTokenBytes = 32
)

// Reasons logged when a session fails validation.
const (
	sessionReasonNotFound     = "not_found"
	sessionReasonExpired      = "expired"
	sessionReasonUserInactive = "user_inactive"
	sessionReasonStoreError   = "store_error"
)

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Store   ports.SessionStore   // Required
	Users   ports.UserRepository // Optional: when set, sessions of inactive users fail validation
	Clock   data.TimeProvider    // Optional: real time when nil
	TTL     time.Duration        // Optional: SessionTTL when zero
	Metrics *metrics.AuthMetrics // Optional
	Random  io.Reader            // Optional: crypto/rand when nil
	Logger  *slog.Logger
}

// SessionManager owns the lifecycle of secondary device sessions.
type SessionManager struct {
	store   ports.SessionStore
	users   ports.UserRepository
	clock   data.TimeProvider
	ttl     time.Duration
	metrics *metrics.AuthMetrics
	random  io.Reader
	logger  *slog.Logger
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.Store == nil {
		return nil, errors.New("SessionStore is required")
	}
	m := &SessionManager{
		store:   opts.Store,
		users:   opts.Users,
		clock:   opts.Clock,
		ttl:     opts.TTL,
		metrics: opts.Metrics,
		random:  opts.Random,
		logger:  opts.Logger,
	}
	if m.clock == nil {
		m.clock = data.RealTimeProvider{}
	}
	if m.ttl <= 0 {
		m.ttl = SessionTTL
	}
	if m.random == nil {
		m.random = rand.Reader
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "session_manager")
	return m, nil
}

// CreateSession issues a new opaque session token bound to userID and device.
func (m *SessionManager) CreateSession(ctx context.Context, userID string, device *domainauth.DeviceInfo) (string, error) {
	if userID == "" {
		return "", apperrors.ValidationField("user_id", "user id is required")
	}
	buf := make([]byte, sessionTokenBytes)
	if _, err := io.ReadFull(m.random, buf); err != nil {
		m.metrics.SessionOp("create", metrics.ResultError)
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	now := m.clock.Now().UTC()
	rec := domainauth.SessionRecord{
		Token:     token,
		UserID:    userID,
		Device:    device,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, rec, m.ttl); err != nil {
		m.metrics.SessionOp("create", metrics.ResultError)
		return "", fmt.Errorf("save session: %w", err)
	}
	m.metrics.SessionOp("create", metrics.ResultSuccess)
	m.logger.InfoContext(ctx, "session created", "user_id", userID, "expires_at", rec.ExpiresAt)
	return token, nil
}

// ValidateSession reports whether token names a live session of an active user.
// The reason for a false result is only logged.
func (m *SessionManager) ValidateSession(ctx context.Context, token string) bool {
	_, reason := m.lookup(ctx, token)
	if reason != "" {
		m.metrics.SessionOp("validate", metrics.ResultFailure)
		m.logger.DebugContext(ctx, "session rejected", "reason", reason)
		return false
	}
	m.metrics.SessionOp("validate", metrics.ResultSuccess)
	return true
}

func (m *SessionManager) lookup(ctx context.Context, token string) (*domainauth.SessionRecord, string) {
	if token == "" {
		return nil, sessionReasonNotFound
	}
	rec, err := m.store.Get(ctx, token)
	switch {
	case apperrors.IsNotFound(err):
		return nil, sessionReasonNotFound
	case err != nil:
		m.logger.WarnContext(ctx, "session store lookup failed", "error", err)
		return nil, sessionReasonStoreError
	}
	if rec.ExpiredAt(m.clock.Now()) {
		if err := m.store.Delete(ctx, token); err != nil {
			m.logger.WarnContext(ctx, "delete expired session", "error", err)
		}
		return nil, sessionReasonExpired
	}
	if m.users != nil {
		user, err := m.users.GetByID(ctx, rec.UserID)
		switch {
		case apperrors.IsNotFound(err):
			return nil, sessionReasonUserInactive
		case err != nil:
			m.logger.WarnContext(ctx, "session user lookup failed", "error", err)
			return nil, sessionReasonStoreError
		case !user.IsActive():
			return nil, sessionReasonUserInactive
		}
	}
	return rec, ""
}

// RevokeSession deletes a session. Unknown tokens are not an error.
func (m *SessionManager) RevokeSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, token); err != nil {
		m.metrics.SessionOp("revoke", metrics.ResultError)
		return fmt.Errorf("revoke session: %w", err)
	}
	m.metrics.SessionOp("revoke", metrics.ResultSuccess)
	return nil
}

// RevokeOwnedSession deletes token only when it belongs to userID.
// A session owned by someone else is left alone and reported as success, like an unknown one.
func (m *SessionManager) RevokeOwnedSession(ctx context.Context, userID, token string) error {
	if token == "" {
		return nil
	}
	rec, err := m.store.Get(ctx, token)
	if apperrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if rec.UserID != userID {
		m.logger.WarnContext(ctx, "refused to revoke foreign session", "user_id", userID)
		return nil
	}
	return m.RevokeSession(ctx, token)
}

// RevokeAllUserSessions deletes every session of userID and returns the count removed.
func (m *SessionManager) RevokeAllUserSessions(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, apperrors.ValidationField("user_id", "user id is required")
	}
	n, err := m.store.DeleteByUser(ctx, userID)
	if err != nil {
		m.metrics.SessionOp("revoke_all", metrics.ResultError)
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	m.metrics.SessionOp("revoke_all", metrics.ResultSuccess)
	m.logger.InfoContext(ctx, "user sessions revoked", "user_id", userID, "count", n)
	return n, nil
}
