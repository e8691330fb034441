package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealboard/internal/model"
)

func newUserFixture(t *testing.T) (*UserService, *fakeUserStore, *fakeTokenStore) {
	t.Helper()

	_, role := testUserAndRole()
	roles := newFakeRoleStore(role)
	users := newFakeUserStore()
	tokenStore := newFakeTokenStore()
	tokens, err := NewTokenService("test-secret-0123456789", 15*time.Minute, 168*time.Hour, tokenStore)
	require.NoError(t, err)

	return NewUserService(users, roles, tokens, &plainHasher{}), users, tokenStore
}

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, users, _ := newUserFixture(t)

		u, err := svc.Create(ctx, " New.Rep@Dealboard.LOCAL ", "New Rep", "s3cret", "role-rep", nil)
		require.NoError(t, err)
		assert.Equal(t, "new.rep@dealboard.local", u.Email)
		assert.Equal(t, "hashed:s3cret", u.PasswordHash)
		assert.True(t, u.IsActive)
		assert.NoError(t, uuid.Validate(u.ID))
		assert.False(t, u.CreatedAt.IsZero())
		assert.False(t, u.UpdatedAt.IsZero())

		stored, err := users.FindByEmail(ctx, "new.rep@dealboard.local")
		require.NoError(t, err)
		assert.Equal(t, u.ID, stored.ID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, _, _ := newUserFixture(t)

		_, err := svc.Create(ctx, "dup@dealboard.local", "One", "pw", "role-rep", nil)
		require.NoError(t, err)
		_, err = svc.Create(ctx, "dup@dealboard.local", "Two", "pw", "role-rep", nil)
		assert.ErrorIs(t, err, model.ErrUserAlreadyExists)
	})

	t.Run("unknown role", func(t *testing.T) {
		svc, _, _ := newUserFixture(t)

		_, err := svc.Create(ctx, "x@dealboard.local", "X", "pw", "role-ghost", nil)
		assert.ErrorIs(t, err, model.ErrRoleNotFound)
	})

	t.Run("invalid input", func(t *testing.T) {
		svc, _, _ := newUserFixture(t)

		_, err := svc.Create(ctx, "not-an-email", "X", "pw", "role-rep", nil)
		assert.ErrorIs(t, err, model.ErrInvalidInput)

		_, err = svc.Create(ctx, "x@dealboard.local", " ", "pw", "role-rep", nil)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestUserService_SetActive(t *testing.T) {
	ctx := context.Background()
	svc, users, tokenStore := newUserFixture(t)

	u, err := svc.Create(ctx, "rep@dealboard.local", "Rep", "pw", "role-rep", nil)
	require.NoError(t, err)

	// Seed a live refresh token for the user.
	require.NoError(t, tokenStore.Store(ctx, model.RefreshTokenRecord{
		ID: "t-1", UserID: u.ID, TokenHash: "h-1",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	require.NoError(t, svc.SetActive(ctx, u.ID, false))
	assert.False(t, users.get(u.ID).IsActive)
	assert.Equal(t, 0, tokenStore.activeCountFor(u.ID))

	require.NoError(t, svc.SetActive(ctx, u.ID, true))
	assert.True(t, users.get(u.ID).IsActive)

	assert.ErrorIs(t, svc.SetActive(ctx, "ghost", false), model.ErrUserNotFound)
}
