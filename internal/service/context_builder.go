package service

import (
	"fmt"
	"math/rand/v2"

	"github.com/sentrypost/authcore/internal/data"
	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
)

const correlationAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// ContextBuilder assembles immutable authentication contexts.
type ContextBuilder struct {
	clock data.TimeProvider
}

// NewContextBuilder returns a builder reading capture time from clock (real time when nil).
func NewContextBuilder(clock data.TimeProvider) *ContextBuilder {
	if clock == nil {
		clock = data.RealTimeProvider{}
	}
	return &ContextBuilder{clock: clock}
}

// Build stamps a Context for a user that has already been verified and resolved.
func (b *ContextBuilder) Build(
	user domainauth.User,
	kind domainauth.TokenKind,
	method domainauth.Method,
	claims map[string]any,
) *domainauth.Context {
	now := b.clock.Now().UTC()
	return domainauth.NewContext(domainauth.ContextParams{
		User:            user,
		TokenKind:       kind,
		Method:          method,
		CorrelationID:   CorrelationID(kind, user.ID, now.UnixMilli()),
		Claims:          claims,
		AuthenticatedAt: now,
	})
}

// CorrelationID formats {kind}_{first 8 of userID}_{unix millis}_{6 random chars}.
// It is a log correlation handle, not a secret.
func CorrelationID(kind domainauth.TokenKind, userID string, unixMillis int64) string {
	prefix := userID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = correlationAlphabet[rand.IntN(len(correlationAlphabet))]
	}
	return fmt.Sprintf("%s_%s_%d_%s", kind, prefix, unixMillis, suffix)
}
