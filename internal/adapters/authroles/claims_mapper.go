package authroles

// Package authroles normalizes identity-platform claims into application roles,
// permissions and access levels.

import (
	"fmt"
	"log/slog"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	"github.com/sentrypost/authcore/internal/ports"
)

var _ ports.ClaimsMapper = (*ClaimsMapper)(nil)

// Default extraction chains: top-level claim, then public metadata, then private metadata.
var (
	DefaultRolePaths        = []string{"role", "public_metadata.role", "private_metadata.role"}
	DefaultPermissionPaths  = []string{"permissions", "public_metadata.permissions", "private_metadata.permissions"}
	DefaultAccessLevelPaths = []string{"access_level", "public_metadata.access_level", "private_metadata.access_level"}
	DefaultProfilePaths     = []string{"public_metadata.profile"}
)

// Config lists the JMESPath expressions tried in order for each attribute.
type Config struct {
	RolePaths          []string
	PermissionPaths    []string
	AccessLevelPaths   []string
	ProfilePaths       []string
	DefaultRole        domainauth.Role
	DefaultAccessLevel domainauth.AccessLevel
	Logger             *slog.Logger
}

// ClaimsMapper evaluates ordered JMESPath chains over raw claims.
type ClaimsMapper struct {
	role, permissions, accessLevel, profile []jmespath.JMESPath

	defaultRole        domainauth.Role
	defaultAccessLevel domainauth.AccessLevel
	logger             *slog.Logger
}

// NewClaimsMapper compiles every configured expression. Empty chains use the defaults.
func NewClaimsMapper(cfg Config) (*ClaimsMapper, error) {
	m := &ClaimsMapper{
		defaultRole:        cfg.DefaultRole,
		defaultAccessLevel: cfg.DefaultAccessLevel,
		logger:             cfg.Logger,
	}
	if m.defaultRole == "" {
		m.defaultRole = domainauth.RoleClient
	}
	if _, ok := domainauth.ParseRole(string(m.defaultRole)); !ok {
		return nil, fmt.Errorf("invalid default role %q", m.defaultRole)
	}
	if m.defaultAccessLevel == "" {
		m.defaultAccessLevel = domainauth.AccessStandard
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	var err error
	if m.role, err = compileChain(orDefault(cfg.RolePaths, DefaultRolePaths)); err != nil {
		return nil, fmt.Errorf("role paths: %w", err)
	}
	if m.permissions, err = compileChain(orDefault(cfg.PermissionPaths, DefaultPermissionPaths)); err != nil {
		return nil, fmt.Errorf("permission paths: %w", err)
	}
	if m.accessLevel, err = compileChain(orDefault(cfg.AccessLevelPaths, DefaultAccessLevelPaths)); err != nil {
		return nil, fmt.Errorf("access level paths: %w", err)
	}
	if m.profile, err = compileChain(orDefault(cfg.ProfilePaths, DefaultProfilePaths)); err != nil {
		return nil, fmt.Errorf("profile paths: %w", err)
	}
	return m, nil
}

func orDefault(paths, def []string) []string {
	if len(paths) == 0 {
		return def
	}
	return paths
}

func compileChain(paths []string) ([]jmespath.JMESPath, error) {
	out := make([]jmespath.JMESPath, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		expr, err := jmespath.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		out = append(out, expr)
	}
	return out, nil
}

// Map implements ports.ClaimsMapper. A present but unrecognized role or access level
// normalizes to the configured default and still counts as found.
func (m *ClaimsMapper) Map(claims map[string]any) ports.ClaimAttributes {
	attrs := ports.ClaimAttributes{
		Role:        m.defaultRole,
		AccessLevel: m.defaultAccessLevel,
	}
	if len(claims) == 0 {
		return attrs
	}

	if raw, ok := first(m.role, claims, isNonEmptyString); ok {
		attrs.RoleFound = true
		if role, valid := domainauth.ParseRole(raw.(string)); valid {
			attrs.Role = role
		} else {
			m.logger.Warn("unknown role claim, using default", "default_role", m.defaultRole)
		}
	}

	if raw, ok := first(m.permissions, claims, isPermissionValue); ok {
		attrs.Permissions = toPermissions(raw)
		attrs.PermissionsFound = true
	}

	if raw, ok := first(m.accessLevel, claims, isNonEmptyString); ok {
		attrs.AccessLevelFound = true
		if lvl, valid := domainauth.ParseAccessLevel(raw.(string)); valid {
			attrs.AccessLevel = lvl
		} else {
			m.logger.Warn("unknown access level claim, using default", "default_access_level", m.defaultAccessLevel)
		}
	}

	if raw, ok := first(m.profile, claims, isObject); ok {
		attrs.Profile = raw.(map[string]any)
	}
	return attrs
}

func first(chain []jmespath.JMESPath, claims map[string]any, accept func(any) bool) (any, bool) {
	for _, expr := range chain {
		v, err := expr.Search(claims)
		if err != nil || v == nil {
			continue
		}
		if accept(v) {
			return v, true
		}
	}
	return nil, false
}

func isNonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func isPermissionValue(v any) bool {
	switch t := v.(type) {
	case []any:
		return true
	case []string:
		return true
	case string:
		return strings.TrimSpace(t) != ""
	default:
		return false
	}
}

// toPermissions accepts a list or a comma/space separated string and drops duplicates.
func toPermissions(v any) []string {
	var raw []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = t
	case string:
		raw = strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ' ' })
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
