package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dealboard/internal/model"
)

// TokenStore is the persistence the token authority needs. Only refresh
// token hashes ever reach it.
type TokenStore interface {
	Store(ctx context.Context, rec model.RefreshTokenRecord) error
	FindByHash(ctx context.Context, tokenHash string) (model.RefreshTokenRecord, error)
	Rotate(ctx context.Context, oldID string, replacement model.RefreshTokenRecord) error
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	CleanExpired(ctx context.Context) (int64, error)
}

// ClientMeta is recorded alongside each issued refresh token.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// TokenService signs and validates access tokens and owns the refresh
// token lifecycle: issue, rotate (revoking the presented token in the same
// transaction), revoke, and bulk revoke.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	tokens     TokenStore
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration, tokens TokenStore) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}

	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		tokens:     tokens,
		now:        time.Now,
	}, nil
}

// WithClock overrides the time source. Tests use this to cross TTLs
// without sleeping.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue signs a fresh access/refresh pair for the user and persists the
// refresh token's hash with client metadata.
func (s *TokenService) Issue(ctx context.Context, user model.User, role model.Role, meta ClientMeta) (model.TokenPair, error) {
	now := s.now().UTC()

	accessToken, err := s.sign(jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  role.Name,
		"typ":   "access",
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	})
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, rec, err := s.buildRefreshToken(user.ID, now, meta)
	if err != nil {
		return model.TokenPair{}, err
	}
	if err := s.tokens.Store(ctx, rec); err != nil {
		return model.TokenPair{}, err
	}

	return s.pair(accessToken, refreshToken, user, role), nil
}

// ValidateAccess verifies an access token's signature, expiry, and type.
func (s *TokenService) ValidateAccess(tokenString string) (*model.AuthClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != "access" {
		return nil, model.ErrTokenInvalid
	}
	return claims, nil
}

// Refresh validates the presented refresh token against both its signature
// and its persisted hash, then rotates: the old row is revoked and the new
// pair issued atomically. Rejection reasons map to distinct errors:
// ErrTokenExpired, ErrTokenRevoked, ErrTokenNotFound, ErrUserInactive,
// ErrTokenInvalid (malformed or bad signature).
func (s *TokenService) Refresh(ctx context.Context, refreshToken string, user model.User, role model.Role, meta ClientMeta) (model.TokenPair, error) {
	rec, err := s.lookupRefresh(ctx, refreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}

	if !user.IsActive {
		return model.TokenPair{}, model.ErrUserInactive
	}

	now := s.now().UTC()
	accessToken, err := s.sign(jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  role.Name,
		"typ":   "access",
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	})
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	newRefreshToken, replacement, err := s.buildRefreshToken(user.ID, now, meta)
	if err != nil {
		return model.TokenPair{}, err
	}
	if err := s.tokens.Rotate(ctx, rec.ID, replacement); err != nil {
		return model.TokenPair{}, err
	}

	return s.pair(accessToken, newRefreshToken, user, role), nil
}

// OwnerOf resolves the user id behind a refresh token without rotating it.
// Used by the orchestrator to load the principal before Refresh.
func (s *TokenService) OwnerOf(ctx context.Context, refreshToken string) (string, error) {
	rec, err := s.lookupRefresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	return rec.UserID, nil
}

// Revoke marks the presented refresh token revoked. Unknown tokens are not
// an error; logout is idempotent.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, hashToken(refreshToken))
}

// RevokeAll revokes every refresh token for the user, forcing
// re-authentication on all devices.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// StartCleanupTicker deletes expired and revoked rows on a fixed interval.
// Each sweep runs under opTimeout so a stalled database cannot pin the
// goroutine between ticks.
func (s *TokenService) StartCleanupTicker(ctx context.Context, interval, opTimeout time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(ctx, opTimeout)
			removed, err := s.tokens.CleanExpired(opCtx)
			cancel()
			if err != nil {
				slog.Warn("refresh token cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Debug("refresh token cleanup", "removed", removed)
			}
		}
	}
}

func (s *TokenService) lookupRefresh(ctx context.Context, refreshToken string) (model.RefreshTokenRecord, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return model.RefreshTokenRecord{}, err
	}
	if claims.Type != "refresh" {
		return model.RefreshTokenRecord{}, model.ErrTokenInvalid
	}

	rec, err := s.tokens.FindByHash(ctx, hashToken(refreshToken))
	if err != nil {
		return model.RefreshTokenRecord{}, err
	}
	// Revocation wins over expiry so a revoked token never reads as
	// merely expired.
	if rec.Revoked {
		return model.RefreshTokenRecord{}, model.ErrTokenRevoked
	}
	if s.now().After(rec.ExpiresAt) {
		return model.RefreshTokenRecord{}, model.ErrTokenExpired
	}
	return rec, nil
}

func (s *TokenService) buildRefreshToken(userID string, now time.Time, meta ClientMeta) (string, model.RefreshTokenRecord, error) {
	expiresAt := now.Add(s.refreshTTL)
	refreshToken, err := s.sign(jwt.MapClaims{
		"sub": userID,
		"typ": "refresh",
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	})
	if err != nil {
		return "", model.RefreshTokenRecord{}, fmt.Errorf("sign refresh token: %w", err)
	}

	rec := model.RefreshTokenRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hashToken(refreshToken),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	return refreshToken, rec, nil
}

func (s *TokenService) pair(accessToken, refreshToken string, user model.User, role model.Role) model.TokenPair {
	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User: model.Principal{
			UserID:      user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			RoleName:    role.Name,
			Tier:        role.DashboardAccess,
			Permissions: role.Permissions,
			ManagerID:   user.ManagerID,
		},
	}
}

func (s *TokenService) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *TokenService) parse(tokenString string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, model.ErrTokenInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		// Expired and malformed/bad-signature must surface differently.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.ErrTokenExpired
		}
		return nil, model.ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, model.ErrTokenInvalid
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, model.ErrTokenInvalid
	}

	claims := &model.AuthClaims{}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Email, _ = claimsMap["email"].(string)
	claims.Role, _ = claimsMap["role"].(string)
	claims.Type, _ = claimsMap["typ"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.UserID == "" {
		return nil, model.ErrTokenInvalid
	}
	return claims, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
