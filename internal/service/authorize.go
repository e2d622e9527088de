package service

import (
	"fmt"
	"slices"
	"strings"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
)

// Requirement describes what a route demands of the caller. Zero fields impose nothing.
type Requirement struct {
	Roles          []domainauth.Role
	Permissions    []string
	MinAccessLevel domainauth.AccessLevel
}

// Authorize checks ac against req in a fixed order: authentication, role,
// permissions, then access level. The first failing check decides the error.
func Authorize(ac *domainauth.Context, req Requirement) error {
	if ac == nil {
		return apperrors.New(apperrors.ErrCodeAuthenticationRequired,
			apperrors.PublicMessage(apperrors.ErrCodeAuthenticationRequired))
	}
	user := ac.User()

	if len(req.Roles) > 0 && !slices.Contains(req.Roles, user.Role) {
		return apperrors.New(apperrors.ErrCodeInsufficientRole,
			fmt.Sprintf("Required role: %s. Current role: %s", joinRoles(req.Roles), user.Role))
	}
	if !user.HasPermissions(req.Permissions) {
		return apperrors.New(apperrors.ErrCodeInsufficientPermissions,
			apperrors.PublicMessage(apperrors.ErrCodeInsufficientPermissions))
	}
	if req.MinAccessLevel != "" && !user.AccessLevel.AtLeast(req.MinAccessLevel) {
		return apperrors.New(apperrors.ErrCodeInsufficientAccessLevel,
			fmt.Sprintf("Required access level: %s", req.MinAccessLevel))
	}
	return nil
}

func joinRoles(roles []domainauth.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, " or ")
}
