package data

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	"github.com/sentrypost/authcore/internal/ports"
	"github.com/sentrypost/authcore/internal/testutil"
)

func TestUserRepo_Integration_UpsertConverges(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	in := ports.UpsertUserInput{
		ExternalID:  "ext-concurrent",
		Email:       "c@example.com",
		Role:        domainauth.RoleClient,
		Status:      domainauth.UserStatusActive,
		AccessLevel: domainauth.AccessStandard,
	}

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := repo.Upsert(ctx, in)
			if assert.NoError(t, err) {
				ids[i] = u.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE external_id = $1`, "ext-concurrent").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUserRepo_Integration_UpdateFlags(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, ports.UpsertUserInput{
		ExternalID: "ext-flags", Email: "f@example.com",
		Role: domainauth.RoleSupervisor, AccessLevel: domainauth.AccessElevated, Permissions: []string{"x"},
	})
	require.NoError(t, err)

	u, err := repo.Upsert(ctx, ports.UpsertUserInput{
		ExternalID: "ext-flags", Role: domainauth.RoleClient, AccessLevel: domainauth.AccessStandard,
	})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleSupervisor, u.Role)
	assert.Equal(t, domainauth.AccessElevated, u.AccessLevel)
	assert.Equal(t, []string{"x"}, u.Permissions)
	assert.Equal(t, "f@example.com", u.Email)

	u, err = repo.Upsert(ctx, ports.UpsertUserInput{
		ExternalID: "ext-flags", Role: domainauth.RoleAdmin, UpdateRole: true, AccessLevel: domainauth.AccessStandard,
	})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, u.Role)

	byEmail, err := repo.GetByEmail(ctx, "F@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
}

func TestUserRepo_Integration_EmailUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, clientInput("ext-email-1", "dup@example.com"))
	require.NoError(t, err)

	_, err = repo.Upsert(ctx, clientInput("ext-email-2", "DUP@example.com"))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	_, err = repo.Upsert(ctx, clientInput("ext-email-3", ""))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, clientInput("ext-email-4", ""))
	require.NoError(t, err, "empty emails do not collide")
}

func clientInput(externalID, email string) ports.UpsertUserInput {
	return ports.UpsertUserInput{
		ExternalID:  externalID,
		Email:       email,
		Role:        domainauth.RoleClient,
		AccessLevel: domainauth.AccessStandard,
	}
}
