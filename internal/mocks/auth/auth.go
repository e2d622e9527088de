package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	"github.com/sentrypost/authcore/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionStore     = (*MemorySessionStore)(nil)
	_ ports.UserRepository   = (*MemoryUserRepository)(nil)
	_ ports.IdentityVerifier = (*StubVerifier)(nil)
	_ ports.Strategy         = (*StubStrategy)(nil)
	_ ports.AuditSink        = (*RecordingAuditSink)(nil)
)

// MemorySessionStore is an in-memory session store for unit tests.
// Expiry is left to the caller; the store only records it.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.SessionRecord

	// GetErr, when set, is returned from Get.
	GetErr error
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domainauth.SessionRecord)}
}

func (m *MemorySessionStore) Save(_ context.Context, rec domainauth.SessionRecord, _ time.Duration) error {
	if rec.Token == "" {
		return apperrors.Validation("session token cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[rec.Token] = rec
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, token string) (*domainauth.SessionRecord, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[token]
	if !ok {
		return nil, apperrors.NotFound("session not found")
	}
	return &rec, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemorySessionStore) DeleteByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for tok, rec := range m.sessions {
		if rec.UserID == userID {
			delete(m.sessions, tok)
			n++
		}
	}
	return n, nil
}

func (m *MemorySessionStore) Ping(context.Context) error { return nil }

// Len returns the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MemoryUserRepository is a goroutine-safe in-memory user store with the same
// upsert semantics as the Postgres repository.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*domainauth.User // by id

	// Err, when set, is returned from every call.
	Err error
	// UpsertCalls counts Upsert invocations.
	UpsertCalls int
}

// NewMemoryUserRepository returns a repository seeded with users.
func NewMemoryUserRepository(seed ...domainauth.User) *MemoryUserRepository {
	r := &MemoryUserRepository{users: make(map[string]*domainauth.User)}
	for i := range seed {
		u := seed[i]
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		r.users[u.ID] = &u
	}
	return r
}

func (r *MemoryUserRepository) find(match func(*domainauth.User) bool) (*domainauth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domainauth.User, error) {
	return r.find(func(u *domainauth.User) bool { return u.ID == id })
}

func (r *MemoryUserRepository) GetByExternalID(_ context.Context, externalID string) (*domainauth.User, error) {
	return r.find(func(u *domainauth.User) bool { return u.ExternalID == externalID })
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domainauth.User, error) {
	return r.find(func(u *domainauth.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryUserRepository) Upsert(_ context.Context, in ports.UpsertUserInput) (*domainauth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UpsertCalls++
	if r.Err != nil {
		return nil, r.Err
	}
	if in.Email != "" {
		for _, u := range r.users {
			if u.ExternalID != in.ExternalID && strings.EqualFold(u.Email, in.Email) {
				return nil, apperrors.Conflict("email already belongs to another user")
			}
		}
	}
	now := time.Now().UTC()
	for _, u := range r.users {
		if u.ExternalID != in.ExternalID {
			continue
		}
		if in.Email != "" {
			u.Email = in.Email
		}
		if in.FirstName != "" {
			u.FirstName = in.FirstName
		}
		if in.LastName != "" {
			u.LastName = in.LastName
		}
		if in.UpdateRole {
			u.Role = in.Role
		}
		if in.UpdatePermissions {
			u.Permissions = append([]string(nil), in.Permissions...)
		}
		if in.UpdateAccessLevel {
			u.AccessLevel = in.AccessLevel
		}
		if in.UpdateProfile {
			u.Profile = in.Profile
		}
		u.UpdatedAt = now
		cp := *u
		return &cp, nil
	}
	u := &domainauth.User{
		ID:          uuid.NewString(),
		ExternalID:  in.ExternalID,
		Email:       in.Email,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Role:        in.Role,
		Status:      in.Status,
		Permissions: append([]string{}, in.Permissions...),
		AccessLevel: in.AccessLevel,
		Profile:     in.Profile,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) Ping(context.Context) error { return r.Err }

// Count returns the number of stored users.
func (r *MemoryUserRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// SetStatus changes a stored user's status.
func (r *MemoryUserRepository) SetStatus(id string, status domainauth.UserStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Status = status
	}
}

// StubVerifier returns a fixed identity or error.
type StubVerifier struct {
	Identity domainauth.VerifiedIdentity
	Err      error
	ModeName string

	mu    sync.Mutex
	calls int
}

func (s *StubVerifier) Verify(context.Context, string) (domainauth.VerifiedIdentity, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Err != nil {
		return domainauth.VerifiedIdentity{}, s.Err
	}
	return s.Identity, nil
}

func (s *StubVerifier) Mode() string {
	if s.ModeName == "" {
		return "stub"
	}
	return s.ModeName
}

// Calls returns how many times Verify was invoked.
func (s *StubVerifier) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// StubStrategy is a ports.Strategy backed by a function.
type StubStrategy struct {
	M  domainauth.Method
	Fn func(ctx context.Context, raw string) (domainauth.VerifiedIdentity, error)
}

func (s *StubStrategy) Method() domainauth.Method { return s.M }

func (s *StubStrategy) Authenticate(ctx context.Context, raw string) (domainauth.VerifiedIdentity, error) {
	return s.Fn(ctx, raw)
}

// RecordingAuditSink collects written entries.
type RecordingAuditSink struct {
	mu      sync.Mutex
	entries []domainauth.AuditEntry

	// WriteFunc, when set, runs before the entry is recorded; a non-nil error skips recording.
	WriteFunc func(domainauth.AuditEntry) error
}

func (s *RecordingAuditSink) Write(_ context.Context, e domainauth.AuditEntry) error {
	if s.WriteFunc != nil {
		if err := s.WriteFunc(e); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a copy of recorded entries.
func (s *RecordingAuditSink) Entries() []domainauth.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domainauth.AuditEntry(nil), s.entries...)
}
