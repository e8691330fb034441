//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealboard/internal/database"
	"dealboard/internal/model"
	"dealboard/internal/repository"
	"dealboard/internal/service"
)

// Runs against a live postgres. Set TEST_DATABASE_URL and build with
// -tags integration; the schema is applied on first connect.

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, url, 4, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func TestLoginLifecycleAgainstPostgres(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	users := repository.NewUserRepository(db.Pool)
	roles := repository.NewRoleRepository(db.Pool)
	tokens := repository.NewTokenRepository(db.Pool)

	roleService := service.NewRoleService(roles)
	adminRole, err := roleService.EnsureBuiltins(ctx)
	require.NoError(t, err)

	hasher := service.NewBcryptHasher()
	hash, err := hasher.Hash("integration-pass")
	require.NoError(t, err)

	now := time.Now().UTC()
	email := uuid.NewString() + "@integration.test"
	user := model.User{
		ID: uuid.NewString(), Email: email, DisplayName: "Integration User",
		PasswordHash: hash, RoleID: adminRole.ID, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, users.Create(ctx, user))

	tokenService, err := service.NewTokenService("integration-secret", 15*time.Minute, time.Hour, tokens)
	require.NoError(t, err)

	t.Run("failure counter persists and resets", func(t *testing.T) {
		count, err := users.RecordLoginFailure(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = users.RecordLoginFailure(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		require.NoError(t, users.ResetLockout(ctx, user.ID))
		fresh, err := users.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Zero(t, fresh.FailedLoginAttempts)
		assert.Nil(t, fresh.LockedUntil)
	})

	t.Run("refresh rotation is transactional", func(t *testing.T) {
		pair, err := tokenService.Issue(ctx, user, adminRole, service.ClientMeta{IPAddress: "127.0.0.1"})
		require.NoError(t, err)

		next, err := tokenService.Refresh(ctx, pair.RefreshToken, user, adminRole, service.ClientMeta{})
		require.NoError(t, err)

		_, err = tokenService.Refresh(ctx, pair.RefreshToken, user, adminRole, service.ClientMeta{})
		assert.ErrorIs(t, err, model.ErrTokenRevoked)

		require.NoError(t, tokenService.RevokeAll(ctx, user.ID))
		_, err = tokenService.Refresh(ctx, next.RefreshToken, user, adminRole, service.ClientMeta{})
		assert.ErrorIs(t, err, model.ErrTokenRevoked)
	})

	t.Run("role assignment supersedes", func(t *testing.T) {
		mgrRole, err := roles.FindByName(ctx, "Sales Manager")
		require.NoError(t, err)

		_, err = roles.Assign(ctx, user.ID, mgrRole.ID, user.ID, "integration test")
		require.NoError(t, err)

		fresh, err := users.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, mgrRole.ID, fresh.RoleID)

		history, err := roles.AssignmentHistory(ctx, user.ID)
		require.NoError(t, err)

		active := 0
		for _, a := range history {
			if a.IsActive {
				active++
			}
		}
		assert.Equal(t, 1, active)
	})
}
