package auth

import "strings"

// AccessLevel is an ordered authorization tier orthogonal to Role.
type AccessLevel string

const (
	AccessStandard   AccessLevel = "standard"
	AccessElevated   AccessLevel = "elevated"
	AccessAdmin      AccessLevel = "admin"
	AccessSuperAdmin AccessLevel = "super_admin"
)

// accessRank orders levels: standard < elevated < admin < super_admin.
var accessRank = map[AccessLevel]int{
	AccessStandard:   1,
	AccessElevated:   2,
	AccessAdmin:      3,
	AccessSuperAdmin: 4,
}

// ParseAccessLevel normalizes a level string; "super-admin" and "superadmin" are accepted aliases.
func ParseAccessLevel(s string) (AccessLevel, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "-", "_")
	if v == "superadmin" {
		v = string(AccessSuperAdmin)
	}
	lvl := AccessLevel(v)
	if _, ok := accessRank[lvl]; !ok {
		return "", false
	}
	return lvl, true
}

// AtLeast reports whether l is at or above min. Unknown levels never satisfy a requirement.
func (l AccessLevel) AtLeast(min AccessLevel) bool {
	have, ok := accessRank[l]
	if !ok {
		return false
	}
	want, ok := accessRank[min]
	if !ok {
		return false
	}
	return have >= want
}
