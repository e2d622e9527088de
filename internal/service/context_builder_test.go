package service

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sentrypost/authcore/internal/data"
	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
)

func TestContextBuilderBuild(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewContextBuilder(data.NewFixedTimeProvider(at))

	user := domainauth.User{ID: "0f3c2a9e-1111-2222-3333-444455556666", Role: domainauth.RoleAgent}
	claims := map[string]any{"sub": "idp|1"}
	ac := b.Build(user, domainauth.TokenStructured, domainauth.MethodIdentityPlatform, claims)

	assert.Equal(t, at, ac.AuthenticatedAt())
	assert.Equal(t, domainauth.TokenStructured, ac.TokenKind())
	assert.Equal(t, domainauth.MethodIdentityPlatform, ac.Method())
	assert.Equal(t, user.ID, ac.UserID())
	assert.Regexp(t, regexp.MustCompile(`^structured_0f3c2a9e_1772366400000_[a-z0-9]{6}$`), ac.CorrelationID())

	claims["sub"] = "mutated"
	assert.Equal(t, "idp|1", ac.Claims()["sub"])
}

func TestCorrelationIDShortUserID(t *testing.T) {
	id := CorrelationID(domainauth.TokenDevelopmentShortcut, "abc", 5)
	assert.Regexp(t, `^development_shortcut_abc_5_[a-z0-9]{6}$`, id)
}
