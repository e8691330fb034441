package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dealboard/internal/captcha"
	"dealboard/internal/model"
)

// UserStore is the persistence surface the login flows need.
type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	RecordLoginFailure(ctx context.Context, userID string) (int, error)
	LockAccount(ctx context.Context, userID string, until time.Time) error
	ResetLockout(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID string, newHash string) error
	PasswordHistory(ctx context.Context, userID string, limit int) ([]string, error)
}

// AttemptStore records login attempt facts.
type AttemptStore interface {
	Record(ctx context.Context, attempt model.LoginAttempt) error
}

// RoleFinder resolves a user's current role.
type RoleFinder interface {
	FindByID(ctx context.Context, id string) (model.Role, error)
}

// LockoutPolicy is the consecutive-failure threshold and lock duration.
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// LoginDenied is the caller-visible login rejection. Reason holds the
// attempt-record code; the HTTP layer maps everything except AccountLocked
// to one generic message so callers cannot tell which factor failed.
type LoginDenied struct {
	Reason            string
	AttemptsRemaining *int
	LockedUntil       *time.Time
}

func (e *LoginDenied) Error() string {
	return fmt.Sprintf("login denied: %s", e.Reason)
}

// AuthService sequences the login, refresh, logout, and password-change
// flows: challenge verification, lockout policy, credential verification,
// token issuance, and attempt records, strictly in that order.
type AuthService struct {
	challenges   captcha.Store
	users        UserStore
	roles        RoleFinder
	attempts     AttemptStore
	hasher       Hasher
	tokens       *TokenService
	lockout      LockoutPolicy
	historyDepth int
	now          func() time.Time
}

func NewAuthService(
	challenges captcha.Store,
	users UserStore,
	roles RoleFinder,
	attempts AttemptStore,
	hasher Hasher,
	tokens *TokenService,
	lockout LockoutPolicy,
	historyDepth int,
) *AuthService {
	if lockout.MaxAttempts <= 0 {
		lockout.MaxAttempts = 5
	}
	if lockout.LockDuration <= 0 {
		lockout.LockDuration = 30 * time.Minute
	}
	if historyDepth < 0 {
		historyDepth = 0
	}

	return &AuthService{
		challenges:   challenges,
		users:        users,
		roles:        roles,
		attempts:     attempts,
		hasher:       hasher,
		tokens:       tokens,
		lockout:      lockout,
		historyDepth: historyDepth,
		now:          time.Now,
	}
}

// WithClock overrides the time source for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login runs the full authentication pipeline. Steps are strictly
// sequential: captcha, principal lookup, active check, lock check,
// credential verification, then issuance. Every outcome writes an
// attempt record.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest, meta ClientMeta) (model.TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return model.TokenPair{}, model.ErrInvalidInput
	}

	// Bot filter first: a failed captcha never touches the lockout
	// counters or the credential verifier.
	if result := s.challenges.Verify(req.ChallengeID, req.ChallengeSolution); result != captcha.Verified {
		s.recordAttempt(ctx, email, meta, false, model.AttemptReasonCaptchaFailed)
		loginsTotal.WithLabelValues("denied").Inc()
		return model.TokenPair{}, &LoginDenied{Reason: model.AttemptReasonCaptchaFailed}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		s.recordAttempt(ctx, email, meta, false, model.AttemptReasonUserNotFound)
		loginsTotal.WithLabelValues("denied").Inc()
		return model.TokenPair{}, &LoginDenied{Reason: model.AttemptReasonUserNotFound}
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	if !user.IsActive {
		s.recordAttempt(ctx, email, meta, false, model.AttemptReasonUserInactive)
		loginsTotal.WithLabelValues("denied").Inc()
		return model.TokenPair{}, &LoginDenied{Reason: model.AttemptReasonUserInactive}
	}

	now := s.now().UTC()
	if user.LockedUntil != nil {
		if now.Before(*user.LockedUntil) {
			// The password is deliberately not checked while locked.
			s.recordAttempt(ctx, email, meta, false, model.AttemptReasonAccountLocked)
			loginsTotal.WithLabelValues("denied").Inc()
			until := *user.LockedUntil
			return model.TokenPair{}, &LoginDenied{Reason: model.AttemptReasonAccountLocked, LockedUntil: &until}
		}
		// The lock lapsed. Clear it together with the counter so one
		// stale failure cannot re-lock the account instantly.
		if err := s.users.ResetLockout(ctx, user.ID); err != nil {
			return model.TokenPair{}, err
		}
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return model.TokenPair{}, s.handlePasswordFailure(ctx, user, email, meta)
	}

	if err := s.users.ResetLockout(ctx, user.ID); err != nil {
		return model.TokenPair{}, err
	}

	role, err := s.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		return model.TokenPair{}, err
	}

	pair, err := s.tokens.Issue(ctx, user, role, meta)
	if err != nil {
		return model.TokenPair{}, err
	}

	s.recordAttempt(ctx, email, meta, true, "")
	loginsTotal.WithLabelValues("success").Inc()
	return pair, nil
}

func (s *AuthService) handlePasswordFailure(ctx context.Context, user model.User, email string, meta ClientMeta) error {
	count, err := s.users.RecordLoginFailure(ctx, user.ID)
	if err != nil {
		return err
	}

	denied := &LoginDenied{Reason: model.AttemptReasonInvalidPassword}
	remaining := s.lockout.MaxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	denied.AttemptsRemaining = &remaining

	if count >= s.lockout.MaxAttempts {
		until := s.now().UTC().Add(s.lockout.LockDuration)
		if err := s.users.LockAccount(ctx, user.ID, until); err != nil {
			return err
		}
		denied.LockedUntil = &until
		lockoutsTotal.Inc()
		slog.Warn("account locked after repeated failures", "email", email, "locked_until", until)
	}

	s.recordAttempt(ctx, email, meta, false, model.AttemptReasonInvalidPassword)
	loginsTotal.WithLabelValues("denied").Inc()
	return denied
}

// Refresh rotates a refresh token into a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (model.TokenPair, error) {
	userID, err := s.tokens.OwnerOf(ctx, refreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.ErrTokenInvalid
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	role, err := s.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		return model.TokenPair{}, err
	}

	pair, err := s.tokens.Refresh(ctx, refreshToken, user, role, meta)
	if err != nil {
		if errors.Is(err, model.ErrUserInactive) {
			s.recordAttempt(ctx, user.Email, meta, false, model.AttemptReasonUserInactive)
		}
		tokenRefreshTotal.WithLabelValues("denied").Inc()
		return model.TokenPair{}, err
	}
	tokenRefreshTotal.WithLabelValues("success").Inc()
	return pair, nil
}

// Logout revokes the presented refresh token. Idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

// ChangePassword verifies the current secret, rejects reuse of the last
// historyDepth passwords, swaps the hash, and revokes every refresh token
// so all devices must re-authenticate.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return model.ErrInvalidInput
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return model.ErrInvalidCredentials
	}

	// Reuse check runs against the current hash plus the archived ones.
	if s.hasher.Verify(newPassword, user.PasswordHash) {
		return model.ErrPasswordReused
	}
	if s.historyDepth > 0 {
		history, err := s.users.PasswordHistory(ctx, userID, s.historyDepth)
		if err != nil {
			return err
		}
		for _, oldHash := range history {
			if s.hasher.Verify(newPassword, oldHash) {
				return model.ErrPasswordReused
			}
		}
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return err
	}

	return s.tokens.RevokeAll(ctx, userID)
}

// ResolvePrincipal turns verified access claims into a full principal with
// the current role's tier and permission matrix. Deactivated users resolve
// to an error even while their access token is still unexpired.
func (s *AuthService) ResolvePrincipal(ctx context.Context, userID string) (model.Principal, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.Principal{}, err
	}
	if !user.IsActive {
		return model.Principal{}, model.ErrUserInactive
	}

	role, err := s.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		return model.Principal{}, err
	}

	return model.Principal{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		RoleName:    role.Name,
		Tier:        role.DashboardAccess,
		Permissions: role.Permissions,
		ManagerID:   user.ManagerID,
	}, nil
}

// ValidateAccessToken exposes access-token validation for the middleware.
func (s *AuthService) ValidateAccessToken(tokenString string) (*model.AuthClaims, error) {
	return s.tokens.ValidateAccess(tokenString)
}

// recordAttempt never fails the caller: attempt records are best-effort
// audit facts, and losing one must not block an otherwise valid login.
func (s *AuthService) recordAttempt(ctx context.Context, email string, meta ClientMeta, success bool, reason string) {
	attempt := model.LoginAttempt{
		Email:       email,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		Success:     success,
		AttemptedAt: s.now().UTC(),
	}
	if reason != "" {
		attempt.FailureReason = &reason
	}
	if err := s.attempts.Record(ctx, attempt); err != nil {
		slog.Error("failed to record login attempt", "email", email, "error", err)
	}
}
