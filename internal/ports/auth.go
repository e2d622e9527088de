package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
)

// Strategy verifies one kind of bearer credential and yields a verified identity.
type Strategy interface {
	Method() domainauth.Method
	Authenticate(ctx context.Context, rawToken string) (domainauth.VerifiedIdentity, error)
}

// IdentityVerifier validates a structured credential against the external identity platform.
// Implementations must not retry; a rejection or outage is returned as an error.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (domainauth.VerifiedIdentity, error)
	// Mode names the verification backend ("oidc", "jwks") for health reporting.
	Mode() string
}

// UpsertUserInput carries the fields for provisioning or refreshing a user.
// The Update* flags control whether an existing row takes the incoming value or keeps its own.
type UpsertUserInput struct {
	ExternalID  string
	Email       string
	FirstName   string
	LastName    string
	Role        domainauth.Role
	Status      domainauth.UserStatus
	Permissions []string
	AccessLevel domainauth.AccessLevel
	Profile     map[string]any

	UpdateRole        bool
	UpdatePermissions bool
	UpdateAccessLevel bool
	UpdateProfile     bool
}

// UserRepository persists application users. Lookups return an errors.NotFound AppError when absent.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domainauth.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*domainauth.User, error)
	GetByEmail(ctx context.Context, email string) (*domainauth.User, error)
	// Upsert inserts or updates keyed on the unique external id; concurrent calls converge on one row.
	Upsert(ctx context.Context, in UpsertUserInput) (*domainauth.User, error)
	Ping(ctx context.Context) error
}

// SessionStore persists secondary device sessions.
type SessionStore interface {
	Save(ctx context.Context, rec domainauth.SessionRecord, ttl time.Duration) error
	// Get returns an errors.NotFound AppError when the token is unknown.
	Get(ctx context.Context, token string) (*domainauth.SessionRecord, error)
	// Delete is idempotent.
	Delete(ctx context.Context, token string) error
	// DeleteByUser removes every session owned by userID and returns how many were removed.
	DeleteByUser(ctx context.Context, userID string) (int, error)
	Ping(ctx context.Context) error
}

// SessionIndexPruner removes per-user index entries whose session record has already expired.
type SessionIndexPruner interface {
	// PruneStaleIndexes inspects at most batch index keys per node and returns how many entries were removed.
	PruneStaleIndexes(ctx context.Context, batch int) (int, error)
}

// ClaimAttributes is the normalized authorization metadata extracted from raw claims.
// The *Found flags report whether the claim was explicitly present upstream.
type ClaimAttributes struct {
	Role             domainauth.Role
	RoleFound        bool
	Permissions      []string
	PermissionsFound bool
	AccessLevel      domainauth.AccessLevel
	AccessLevelFound bool
	Profile          map[string]any
}

// ClaimsMapper extracts role, permissions, access level and profile from identity claims.
type ClaimsMapper interface {
	Map(claims map[string]any) ClaimAttributes
}

// AuditSink receives audit entries from the background audit worker.
type AuditSink interface {
	Write(ctx context.Context, entry domainauth.AuditEntry) error
}
