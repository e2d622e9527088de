package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	"github.com/sentrypost/authcore/internal/ports"
)

// ProvisioningDefaults are applied to users created on first authentication.
type ProvisioningDefaults struct {
	Role        domainauth.Role
	Status      domainauth.UserStatus
	AccessLevel domainauth.AccessLevel
	Permissions []string
}

// DefaultProvisioning returns client / active / standard with no permissions.
func DefaultProvisioning() ProvisioningDefaults {
	return ProvisioningDefaults{
		Role:        domainauth.RoleClient,
		Status:      domainauth.UserStatusActive,
		AccessLevel: domainauth.AccessStandard,
		Permissions: []string{},
	}
}

// IdentityResolverOptions groups dependencies for IdentityResolver.
type IdentityResolverOptions struct {
	Users    ports.UserRepository // Required
	Claims   ports.ClaimsMapper   // Optional: without it no role metadata is read from claims
	Defaults ProvisioningDefaults // Optional: zero fields fall back to DefaultProvisioning
	Logger   *slog.Logger
}

// IdentityResolver maps a verified identity to an application user, provisioning on first sight.
type IdentityResolver struct {
	users    ports.UserRepository
	claims   ports.ClaimsMapper
	defaults ProvisioningDefaults
	logger   *slog.Logger
}

// NewIdentityResolver constructs an IdentityResolver.
func NewIdentityResolver(opts IdentityResolverOptions) (*IdentityResolver, error) {
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	d := opts.Defaults
	base := DefaultProvisioning()
	if d.Role == "" {
		d.Role = base.Role
	}
	if d.Status == "" {
		d.Status = base.Status
	}
	if d.AccessLevel == "" {
		d.AccessLevel = base.AccessLevel
	}
	if d.Permissions == nil {
		d.Permissions = base.Permissions
	}
	if _, ok := domainauth.ParseRole(string(d.Role)); !ok {
		return nil, fmt.Errorf("invalid default role %q", d.Role)
	}
	if _, ok := domainauth.ParseAccessLevel(string(d.AccessLevel)); !ok {
		return nil, fmt.Errorf("invalid default access level %q", d.AccessLevel)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityResolver{
		users:    opts.Users,
		claims:   opts.Claims,
		defaults: d,
		logger:   logger.With("component", "identity_resolver"),
	}, nil
}

// Resolve returns the active user for id. Unknown subjects are provisioned and
// changed upstream metadata is written back through an idempotent upsert.
func (r *IdentityResolver) Resolve(ctx context.Context, id domainauth.VerifiedIdentity) (*domainauth.User, error) {
	if id.Subject == "" {
		return nil, apperrors.AuthenticationFailed(errors.New("verified identity has no subject"))
	}

	var attrs ports.ClaimAttributes
	if r.claims != nil {
		attrs = r.claims.Map(id.Claims)
	}

	existing, err := r.users.GetByExternalID(ctx, id.Subject)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "lookup user")
	}

	user := existing
	if existing == nil || needsUpdate(existing, id, attrs) {
		user, err = r.users.Upsert(ctx, r.upsertInput(id, attrs))
		if apperrors.IsConflict(err) {
			// The email is already bound to a user with a different subject.
			r.logger.WarnContext(ctx, "identity email belongs to another user",
				"method", id.Method,
				"email", domainauth.MaskEmail(id.Email),
			)
			return nil, apperrors.AuthenticationFailed(err)
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "provision user")
		}
		if existing == nil {
			r.logger.InfoContext(ctx, "provisioned user",
				"user_id", user.ID,
				"method", id.Method,
				"role", user.Role,
			)
		}
	}

	if !user.IsActive() {
		return nil, apperrors.AuthenticationFailed(fmt.Errorf("disabled account: user %s is %s", user.ID, user.Status))
	}
	return user, nil
}

func (r *IdentityResolver) upsertInput(id domainauth.VerifiedIdentity, attrs ports.ClaimAttributes) ports.UpsertUserInput {
	in := ports.UpsertUserInput{
		ExternalID:        id.Subject,
		Email:             id.Email,
		FirstName:         id.FirstName,
		LastName:          id.LastName,
		Role:              r.defaults.Role,
		Status:            r.defaults.Status,
		Permissions:       r.defaults.Permissions,
		AccessLevel:       r.defaults.AccessLevel,
		Profile:           attrs.Profile,
		UpdateRole:        attrs.RoleFound,
		UpdatePermissions: attrs.PermissionsFound,
		UpdateAccessLevel: attrs.AccessLevelFound,
		UpdateProfile:     attrs.Profile != nil,
	}
	if attrs.RoleFound {
		in.Role = attrs.Role
	}
	if attrs.PermissionsFound {
		in.Permissions = attrs.Permissions
	}
	if attrs.AccessLevelFound {
		in.AccessLevel = attrs.AccessLevel
	}
	return in
}

func needsUpdate(u *domainauth.User, id domainauth.VerifiedIdentity, attrs ports.ClaimAttributes) bool {
	switch {
	case id.Email != "" && id.Email != u.Email,
		id.FirstName != "" && id.FirstName != u.FirstName,
		id.LastName != "" && id.LastName != u.LastName:
		return true
	case attrs.RoleFound && attrs.Role != u.Role:
		return true
	case attrs.PermissionsFound && !slices.Equal(attrs.Permissions, u.Permissions):
		return true
	case attrs.AccessLevelFound && attrs.AccessLevel != u.AccessLevel:
		return true
	case attrs.Profile != nil && !reflect.DeepEqual(attrs.Profile, u.Profile):
		return true
	}
	return false
}
