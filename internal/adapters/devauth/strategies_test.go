package devauth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	"github.com/sentrypost/authcore/internal/mocks"
)

func TestDirectStrategy_Gating(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"production", Config{Production: true, TrustedMode: true}, ErrProductionDisabled},
		{"untrusted", Config{}, ErrTrustedModeRequired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewDirectStrategy(tc.cfg, repo)
			require.NoError(t, err)
			_, err = s.Authenticate(context.Background(), "ops@example.com")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDirectStrategy_ResolvesExistingUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	repo.EXPECT().GetByEmail(gomock.Any(), "ops@example.com").Return(&domainauth.User{
		ID: "u1", ExternalID: "ext-1", Email: "ops@example.com", FirstName: "Olive",
	}, nil)

	s, err := NewDirectStrategy(Config{TrustedMode: true}, repo)
	require.NoError(t, err)
	assert.Equal(t, domainauth.MethodDirectIdentifier, s.Method())

	id, err := s.Authenticate(context.Background(), " ops@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", id.Subject)
	assert.Equal(t, "Olive", id.FirstName)
	assert.Equal(t, domainauth.MethodDirectIdentifier, id.Method)
}

func TestDirectStrategy_Failures(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	s, err := NewDirectStrategy(Config{TrustedMode: true}, repo)
	require.NoError(t, err)

	repo.EXPECT().GetByEmail(gomock.Any(), "ghost@example.com").Return(nil, apperrors.NotFound("user not found"))
	_, err = s.Authenticate(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.NotContains(t, err.Error(), "ghost@", "identifier must be masked")

	dbErr := errors.New("connection reset")
	repo.EXPECT().GetByEmail(gomock.Any(), "ops@example.com").Return(nil, dbErr)
	_, err = s.Authenticate(context.Background(), "ops@example.com")
	assert.ErrorIs(t, err, dbErr)

	_, err = s.Authenticate(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, ErrMalformedToken)

	_, err = NewDirectStrategy(Config{}, nil)
	assert.Error(t, err)
}

func TestShortcutStrategy(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	s, err := NewShortcutStrategy(Config{}, repo)
	require.NoError(t, err)
	assert.Equal(t, domainauth.MethodDevelopment, s.Method())

	repo.EXPECT().GetByEmail(gomock.Any(), "ops@example.com").Return(nil, apperrors.NotFound("user not found"))
	id, err := s.Authenticate(context.Background(), "dev:Ops@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "dev|ops@example.com", id.Subject)
	assert.Equal(t, "ops@example.com", id.Email)
	assert.Equal(t, domainauth.MethodDevelopment, id.Method)

	_, err = s.Authenticate(context.Background(), "dev:garbage")
	assert.ErrorIs(t, err, ErrMalformedToken)

	_, err = NewShortcutStrategy(Config{}, nil)
	assert.Error(t, err)
}

func TestShortcutStrategy_ReusesUserWithEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	repo.EXPECT().GetByEmail(gomock.Any(), "admin@example.com").Return(&domainauth.User{
		ID: "u1", ExternalID: "oidc|42", Email: "admin@example.com", FirstName: "Ada", Role: domainauth.RoleAdmin,
	}, nil)

	s, err := NewShortcutStrategy(Config{}, repo)
	require.NoError(t, err)

	id, err := s.Authenticate(context.Background(), "dev:Admin@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "oidc|42", id.Subject)
	assert.Equal(t, "oidc|42", id.Claims["sub"])
	assert.Equal(t, "Ada", id.FirstName)
	assert.Equal(t, domainauth.MethodDevelopment, id.Method)
}

func TestShortcutStrategy_LookupFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	dbErr := errors.New("connection reset")
	repo.EXPECT().GetByEmail(gomock.Any(), "ops@example.com").Return(nil, dbErr)

	s, err := NewShortcutStrategy(Config{}, repo)
	require.NoError(t, err)
	_, err = s.Authenticate(context.Background(), "dev:ops@example.com")
	assert.ErrorIs(t, err, dbErr)
}

func TestShortcutStrategy_FallbackEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	repo.EXPECT().GetByEmail(gomock.Any(), "fallback@example.com").Return(nil, apperrors.NotFound("user not found"))

	s, err := NewShortcutStrategy(Config{FallbackEmail: "fallback@example.com"}, repo)
	require.NoError(t, err)

	id, err := s.Authenticate(context.Background(), "dev:garbage")
	require.NoError(t, err)
	assert.Equal(t, "fallback@example.com", id.Email)

	_, err = NewShortcutStrategy(Config{FallbackEmail: "nope"}, repo)
	assert.Error(t, err)
}

func TestShortcutStrategy_ProductionDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	s, err := NewShortcutStrategy(Config{Production: true, FallbackEmail: "fallback@example.com"},
		mocks.NewMockUserRepository(ctrl))
	require.NoError(t, err)
	_, err = s.Authenticate(context.Background(), "dev:ops@example.com")
	assert.ErrorIs(t, err, ErrProductionDisabled)
}
