package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealboard/internal/captcha"
	"dealboard/internal/model"
)

type authFixture struct {
	svc        *AuthService
	users      *fakeUserStore
	roles      *fakeRoleStore
	attempts   *fakeAttemptStore
	challenges *stubChallenges
	hasher     *plainHasher
	tokens     *fakeTokenStore
	clock      *time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	user, role := testUserAndRole()
	user.PasswordHash = "hashed:correct-horse"

	users := newFakeUserStore(user)
	roles := newFakeRoleStore(role)
	attempts := &fakeAttemptStore{}
	challenges := &stubChallenges{result: captcha.Verified}
	hasher := &plainHasher{}
	tokenStore := newFakeTokenStore()

	now := time.Now().UTC()
	clock := &now
	tick := func() time.Time { return *clock }

	tokens, err := NewTokenService("test-secret-0123456789", 15*time.Minute, 168*time.Hour, tokenStore)
	require.NoError(t, err)
	tokens.WithClock(tick)

	svc := NewAuthService(
		challenges, users, roles, attempts, hasher, tokens,
		LockoutPolicy{MaxAttempts: 5, LockDuration: 30 * time.Minute}, 5,
	).WithClock(tick)

	return &authFixture{
		svc: svc, users: users, roles: roles, attempts: attempts,
		challenges: challenges, hasher: hasher, tokens: tokenStore, clock: clock,
	}
}

func loginReq(password string) model.LoginRequest {
	return model.LoginRequest{
		Email:             "rep@dealboard.local",
		Password:          password,
		ChallengeID:       "challenge-1",
		ChallengeSolution: "ABC234",
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	fx := newAuthFixture(t)

	pair, err := fx.svc.Login(context.Background(), loginReq("correct-horse"), ClientMeta{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Sales Rep", pair.User.RoleName)

	attempt, ok := fx.attempts.last()
	require.True(t, ok)
	assert.True(t, attempt.Success)
	assert.Nil(t, attempt.FailureReason)
	assert.Equal(t, "10.0.0.1", attempt.IPAddress)
}

func TestAuthService_Login_EmailNormalized(t *testing.T) {
	fx := newAuthFixture(t)

	req := loginReq("correct-horse")
	req.Email = "  REP@Dealboard.LOCAL "
	_, err := fx.svc.Login(context.Background(), req, ClientMeta{})
	assert.NoError(t, err)
}

func TestAuthService_Login_CaptchaFailureShortCircuits(t *testing.T) {
	fx := newAuthFixture(t)
	fx.challenges.result = captcha.Expired

	_, err := fx.svc.Login(context.Background(), loginReq("correct-horse"), ClientMeta{})

	var denied *LoginDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, model.AttemptReasonCaptchaFailed, denied.Reason)
	assert.Nil(t, denied.AttemptsRemaining)

	// Neither the credential verifier nor the lockout counter ran.
	assert.Equal(t, 0, fx.hasher.calls())
	assert.Equal(t, 0, fx.users.get("user-1").FailedLoginAttempts)

	attempt, ok := fx.attempts.last()
	require.True(t, ok)
	require.NotNil(t, attempt.FailureReason)
	assert.Equal(t, model.AttemptReasonCaptchaFailed, *attempt.FailureReason)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	fx := newAuthFixture(t)

	req := loginReq("whatever")
	req.Email = "ghost@dealboard.local"
	_, err := fx.svc.Login(context.Background(), req, ClientMeta{})

	var denied *LoginDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, model.AttemptReasonUserNotFound, denied.Reason)
	assert.Equal(t, 0, fx.hasher.calls())
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	fx := newAuthFixture(t)
	require.NoError(t, fx.users.SetActive(context.Background(), "user-1", false))

	_, err := fx.svc.Login(context.Background(), loginReq("correct-horse"), ClientMeta{})

	var denied *LoginDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, model.AttemptReasonUserInactive, denied.Reason)
	assert.Equal(t, 0, fx.hasher.calls())
}

func TestAuthService_Login_LockoutProgression(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	// Four failures count down without locking.
	for want := 4; want >= 1; want-- {
		_, err := fx.svc.Login(ctx, loginReq("wrong"), ClientMeta{})
		var denied *LoginDenied
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, model.AttemptReasonInvalidPassword, denied.Reason)
		require.NotNil(t, denied.AttemptsRemaining)
		assert.Equal(t, want, *denied.AttemptsRemaining)
		assert.Nil(t, denied.LockedUntil)
	}

	// The fifth failure locks the account.
	_, err := fx.svc.Login(ctx, loginReq("wrong"), ClientMeta{})
	var denied *LoginDenied
	require.ErrorAs(t, err, &denied)
	require.NotNil(t, denied.LockedUntil)
	assert.Equal(t, 0, *denied.AttemptsRemaining)
	wantUntil := fx.clock.Add(30 * time.Minute)
	assert.WithinDuration(t, wantUntil, *denied.LockedUntil, time.Second)

	verifyCallsWhenLocked := fx.hasher.calls()

	// While locked, even the correct password is rejected without
	// touching the verifier.
	_, err = fx.svc.Login(ctx, loginReq("correct-horse"), ClientMeta{})
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, model.AttemptReasonAccountLocked, denied.Reason)
	require.NotNil(t, denied.LockedUntil)
	assert.Equal(t, verifyCallsWhenLocked, fx.hasher.calls())
}

func TestAuthService_Login_LockLapseResetsCounter(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = fx.svc.Login(ctx, loginReq("wrong"), ClientMeta{})
	}
	require.NotNil(t, fx.users.get("user-1").LockedUntil)

	// Let the lock lapse, then fail once more. The counter must have
	// been reset, so this reads as the first failure of a fresh window.
	*fx.clock = fx.clock.Add(31 * time.Minute)

	_, err := fx.svc.Login(ctx, loginReq("wrong"), ClientMeta{})
	var denied *LoginDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, model.AttemptReasonInvalidPassword, denied.Reason)
	require.NotNil(t, denied.AttemptsRemaining)
	assert.Equal(t, 4, *denied.AttemptsRemaining)
	assert.Nil(t, denied.LockedUntil)
}

func TestAuthService_Login_SuccessResetsCounter(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = fx.svc.Login(ctx, loginReq("wrong"), ClientMeta{})
	}
	require.Equal(t, 3, fx.users.get("user-1").FailedLoginAttempts)

	_, err := fx.svc.Login(ctx, loginReq("correct-horse"), ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, 0, fx.users.get("user-1").FailedLoginAttempts)

	// A later failure starts from a clean slate.
	_, err = fx.svc.Login(ctx, loginReq("wrong"), ClientMeta{})
	var denied *LoginDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, 4, *denied.AttemptsRemaining)
}

func TestAuthService_Login_MissingInput(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.Login(context.Background(), model.LoginRequest{}, ClientMeta{})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Equal(t, 0, fx.challenges.verifyCalls)
}

func TestAuthService_RefreshAndLogout(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	pair, err := fx.svc.Login(ctx, loginReq("correct-horse"), ClientMeta{})
	require.NoError(t, err)

	next, err := fx.svc.Refresh(ctx, pair.RefreshToken, ClientMeta{UserAgent: "phone"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", next.User.UserID)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	require.NoError(t, fx.svc.Logout(ctx, next.RefreshToken))
	_, err = fx.svc.Refresh(ctx, next.RefreshToken, ClientMeta{})
	assert.ErrorIs(t, err, model.ErrTokenRevoked)
}

func TestAuthService_Refresh_InactiveUser(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	pair, err := fx.svc.Login(ctx, loginReq("correct-horse"), ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, fx.users.SetActive(ctx, "user-1", false))
	_, err = fx.svc.Refresh(ctx, pair.RefreshToken, ClientMeta{})
	assert.ErrorIs(t, err, model.ErrUserInactive)
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("success revokes all sessions", func(t *testing.T) {
		fx := newAuthFixture(t)
		pair, err := fx.svc.Login(ctx, loginReq("correct-horse"), ClientMeta{})
		require.NoError(t, err)

		require.NoError(t, fx.svc.ChangePassword(ctx, "user-1", "correct-horse", "battery-staple"))
		assert.Equal(t, "hashed:battery-staple", fx.users.get("user-1").PasswordHash)
		assert.Equal(t, 0, fx.tokens.activeCountFor("user-1"))

		_, err = fx.svc.Refresh(ctx, pair.RefreshToken, ClientMeta{})
		assert.ErrorIs(t, err, model.ErrTokenRevoked)
	})

	t.Run("wrong current password", func(t *testing.T) {
		fx := newAuthFixture(t)
		err := fx.svc.ChangePassword(ctx, "user-1", "nope", "battery-staple")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("rejects current password as new", func(t *testing.T) {
		fx := newAuthFixture(t)
		err := fx.svc.ChangePassword(ctx, "user-1", "correct-horse", "correct-horse")
		assert.ErrorIs(t, err, model.ErrPasswordReused)
	})

	t.Run("rejects recent history", func(t *testing.T) {
		fx := newAuthFixture(t)
		require.NoError(t, fx.svc.ChangePassword(ctx, "user-1", "correct-horse", "second"))
		require.NoError(t, fx.svc.ChangePassword(ctx, "user-1", "second", "third"))

		err := fx.svc.ChangePassword(ctx, "user-1", "third", "correct-horse")
		assert.ErrorIs(t, err, model.ErrPasswordReused)
	})

	t.Run("empty new password", func(t *testing.T) {
		fx := newAuthFixture(t)
		err := fx.svc.ChangePassword(ctx, "user-1", "correct-horse", "  ")
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestAuthService_ResolvePrincipal(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	principal, err := fx.svc.ResolvePrincipal(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "rep@dealboard.local", principal.Email)
	assert.Equal(t, model.TierBase, principal.Tier)
	assert.True(t, principal.Permissions.ViewOwnEngagements)

	require.NoError(t, fx.users.SetActive(ctx, "user-1", false))
	_, err = fx.svc.ResolvePrincipal(ctx, "user-1")
	assert.ErrorIs(t, err, model.ErrUserInactive)

	_, err = fx.svc.ResolvePrincipal(ctx, "ghost")
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}
