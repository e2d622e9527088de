package auth

// Package auth contains domain-level types for authentication, authorization and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and JSON.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleClient     Role = "client"
	RoleAgent      Role = "agent"
)

// AllRoles returns the closed set of roles.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleSupervisor, RoleClient, RoleAgent}
}

// ParseRole normalizes a role string case-insensitively.
// It reports false for anything outside the closed set.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleSupervisor, RoleClient, RoleAgent:
		return r, true
	default:
		return "", false
	}
}

// UserStatus is the account status of an application user.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// Method labels how a request was authenticated.
type Method string

const (
	MethodIdentityPlatform Method = "identity_platform"
	MethodDirectIdentifier Method = "direct_identifier"
	MethodDevelopment      Method = "development"
)

// VerifiedIdentity is the output of a successful strategy execution, prior to
// application-level user resolution. It never carries token material.
type VerifiedIdentity struct {
	Subject   string // external subject identifier
	Email     string
	FirstName string
	LastName  string
	Claims    map[string]any
	Method    Method
}

// User is the application-level account resolved from a VerifiedIdentity.
type User struct {
	ID          string         `json:"id"`
	ExternalID  string         `json:"external_id"`
	Email       string         `json:"email"`
	FirstName   string         `json:"first_name,omitempty"`
	LastName    string         `json:"last_name,omitempty"`
	Role        Role           `json:"role"`
	Status      UserStatus     `json:"status"`
	Permissions []string       `json:"permissions"`
	AccessLevel AccessLevel    `json:"access_level"`
	Profile     map[string]any `json:"profile,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsActive reports whether the user may authenticate.
func (u *User) IsActive() bool { return u != nil && u.Status == UserStatusActive }

// HasPermissions reports whether every required permission is granted.
func (u *User) HasPermissions(required []string) bool {
	if len(required) == 0 {
		return true
	}
	if u == nil {
		return false
	}
	granted := make(map[string]struct{}, len(u.Permissions))
	for _, p := range u.Permissions {
		granted[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := granted[p]; !ok {
			return false
		}
	}
	return true
}

// Context is the immutable per-request authentication record.
// Fields are unexported; use the accessors.
type Context struct {
	user            User
	tokenKind       TokenKind
	method          Method
	correlationID   string
	claims          map[string]any
	authenticatedAt time.Time
}

// ContextParams groups the values a Context is built from.
type ContextParams struct {
	User            User
	TokenKind       TokenKind
	Method          Method
	CorrelationID   string
	Claims          map[string]any
	AuthenticatedAt time.Time
}

// NewContext builds an immutable Context. Callers must only do this after a successful verification.
func NewContext(p ContextParams) *Context {
	return &Context{
		user:            cloneUser(p.User),
		tokenKind:       p.TokenKind,
		method:          p.Method,
		correlationID:   p.CorrelationID,
		claims:          cloneClaims(p.Claims),
		authenticatedAt: p.AuthenticatedAt,
	}
}

// User returns a copy of the resolved user.
func (c *Context) User() User { return cloneUser(c.user) }

// UserID returns the internal user identifier.
func (c *Context) UserID() string { return c.user.ID }

// TokenKind returns the classified kind of the presented credential.
func (c *Context) TokenKind() TokenKind { return c.tokenKind }

// Method returns the authentication method label.
func (c *Context) Method() Method { return c.method }

// CorrelationID returns the request-scoped trace identifier.
func (c *Context) CorrelationID() string { return c.correlationID }

// Claims returns a copy of the raw claims.
func (c *Context) Claims() map[string]any { return cloneClaims(c.claims) }

// AuthenticatedAt returns the capture time of the authentication.
func (c *Context) AuthenticatedAt() time.Time { return c.authenticatedAt }

// DeviceInfo describes the device a session is bound to.
type DeviceInfo struct {
	Name      string `json:"name,omitempty"`
	Platform  string `json:"platform,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// SessionRecord is the persisted secondary session owned by the session manager.
type SessionRecord struct {
	Token     string      `json:"-"`
	UserID    string      `json:"user_id"`
	Device    *DeviceInfo `json:"device,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// ExpiredAt reports whether the record has expired at the given instant.
func (s SessionRecord) ExpiredAt(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// AuditEntry is a write-only record of an authentication or authorization decision.
type AuditEntry struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id,omitempty"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type,omitempty"`
	TargetID   string         `json:"target_id,omitempty"`
	IP         string         `json:"ip,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	Metadata   AuditMetadata  `json:"metadata"`
	Extra      map[string]any `json:"extra,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// AuditMetadata holds the fixed request facts recorded with every entry.
type AuditMetadata struct {
	Method        string `json:"method"`
	Path          string `json:"path"`
	StatusCode    int    `json:"status_code"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func cloneUser(u User) User {
	out := u
	if u.Permissions != nil {
		out.Permissions = append([]string(nil), u.Permissions...)
	}
	out.Profile = cloneClaims(u.Profile)
	return out
}

func cloneClaims(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
