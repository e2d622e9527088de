package auth

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	tests := map[string]struct {
		want Role
		ok   bool
	}{
		"admin":        {RoleAdmin, true},
		"  Supervisor": {RoleSupervisor, true},
		"CLIENT":       {RoleClient, true},
		"agent":        {RoleAgent, true},
		"root":         {"", false},
		"":             {"", false},
	}
	for in, tc := range tests {
		got, ok := ParseRole(in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseRole(%q) = (%q, %v), want (%q, %v)", in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestUser_HasPermissions(t *testing.T) {
	u := &User{Permissions: []string{"sites:read", "shifts:write"}}
	if !u.HasPermissions(nil) {
		t.Fatalf("empty requirement must pass")
	}
	if !u.HasPermissions([]string{"sites:read", "shifts:write"}) {
		t.Fatalf("expected all permissions present")
	}
	if u.HasPermissions([]string{"sites:read", "billing:read"}) {
		t.Fatalf("did not expect partial match to pass")
	}
	var nilUser *User
	if nilUser.HasPermissions([]string{"x"}) {
		t.Fatalf("nil user has no permissions")
	}
}

func TestUser_IsActive(t *testing.T) {
	if !(&User{Status: UserStatusActive}).IsActive() {
		t.Fatalf("expected active")
	}
	if (&User{Status: UserStatusSuspended}).IsActive() {
		t.Fatalf("suspended is not active")
	}
}

func TestContext_IsImmutable(t *testing.T) {
	claims := map[string]any{"sub": "ext-1"}
	perms := []string{"a"}
	now := time.Now()
	c := NewContext(ContextParams{
		User:            User{ID: "u1", Permissions: perms},
		TokenKind:       TokenStructured,
		Method:          MethodIdentityPlatform,
		CorrelationID:   "structured_u1_1_abc",
		Claims:          claims,
		AuthenticatedAt: now,
	})

	claims["sub"] = "mutated"
	perms[0] = "mutated"
	got := c.User()
	got.Permissions[0] = "changed-by-caller"

	if c.Claims()["sub"] != "ext-1" {
		t.Fatalf("claims leaked mutation: %v", c.Claims())
	}
	if c.User().Permissions[0] != "a" {
		t.Fatalf("permissions leaked mutation: %v", c.User().Permissions)
	}
	if c.UserID() != "u1" || c.Method() != MethodIdentityPlatform || !c.AuthenticatedAt().Equal(now) {
		t.Fatalf("unexpected context fields")
	}
}

func TestSessionRecord_ExpiredAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := SessionRecord{CreatedAt: created, ExpiresAt: created.Add(24 * time.Hour)}
	if s.ExpiredAt(created.Add(23*time.Hour + 59*time.Minute)) {
		t.Fatalf("should be valid before expiry")
	}
	if !s.ExpiredAt(created.Add(24 * time.Hour)) {
		t.Fatalf("should be expired at expiry")
	}
}
