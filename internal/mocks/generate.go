// Package mocks provides gomock mock implementations of the auth ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockUserRepository(ctrl)
//	repo.EXPECT().GetByExternalID(gomock.Any(), "ext-1").Return(user, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_repository_mock.go github.com/sentrypost/authcore/internal/ports UserRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_verifier_mock.go github.com/sentrypost/authcore/internal/ports IdentityVerifier
