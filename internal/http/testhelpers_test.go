package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
)

// fakeAuthenticator maps raw tokens to users.
type fakeAuthenticator struct {
	users map[string]domainauth.User
	seen  []string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, raw string) (*domainauth.Context, error) {
	f.seen = append(f.seen, raw)
	if raw == "" {
		return nil, apperrors.TokenRequired()
	}
	u, ok := f.users[raw]
	if !ok {
		return nil, apperrors.AuthenticationFailed(nil)
	}
	return domainauth.NewContext(domainauth.ContextParams{
		User:            u,
		TokenKind:       domainauth.ClassifyToken(raw),
		Method:          domainauth.MethodDevelopment,
		CorrelationID:   "test_" + u.ID,
		AuthenticatedAt: time.Unix(0, 0).UTC(),
	}), nil
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []domainauth.AuditEntry
}

func (m *memoryAudit) Record(e domainauth.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *memoryAudit) all() []domainauth.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domainauth.AuditEntry(nil), m.entries...)
}

var (
	testAdmin = domainauth.User{
		ID: "admin-1", Role: domainauth.RoleAdmin, Status: domainauth.UserStatusActive,
		AccessLevel: domainauth.AccessAdmin, Permissions: []string{"users:write"},
	}
	testJuniorAdmin = domainauth.User{
		ID: "admin-2", Role: domainauth.RoleAdmin, Status: domainauth.UserStatusActive,
		AccessLevel: domainauth.AccessElevated,
	}
	testClient = domainauth.User{
		ID: "client-1", Role: domainauth.RoleClient, Status: domainauth.UserStatusActive,
		AccessLevel: domainauth.AccessStandard,
	}
	testAgent = domainauth.User{
		ID: "agent-1", Role: domainauth.RoleAgent, Status: domainauth.UserStatusActive,
		AccessLevel: domainauth.AccessStandard,
	}
)

func newTestGuard(t *testing.T, audit AuditRecorder) (*Guard, *fakeAuthenticator) {
	t.Helper()
	fa := &fakeAuthenticator{users: map[string]domainauth.User{
		"admin-token":  testAdmin,
		"junior-token": testJuniorAdmin,
		"client-token": testClient,
		"agent-token":  testAgent,
	}}
	g, err := NewGuard(GuardOptions{Auth: fa, Audit: audit})
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	return g, fa
}

func bearer(r *http.Request, token string) *http.Request {
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteData(w, http.StatusOK, map[string]string{"ok": "yes"})
	})
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}
