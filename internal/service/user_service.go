package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealboard/internal/model"
)

// UserAdminStore is the persistence surface for user administration.
type UserAdminStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) error
	SetActive(ctx context.Context, userID string, active bool) error
	List(ctx context.Context) ([]model.User, error)
}

// UserService covers the administrative user operations: provisioning,
// listing, and deactivation. Login-path mutations live in AuthService.
type UserService struct {
	users  UserAdminStore
	roles  RoleFinder
	tokens *TokenService
	hasher Hasher
}

func NewUserService(users UserAdminStore, roles RoleFinder, tokens *TokenService, hasher Hasher) *UserService {
	return &UserService{users: users, roles: roles, tokens: tokens, hasher: hasher}
}

// Create provisions a user with the given role and initial password.
func (s *UserService) Create(ctx context.Context, email, displayName, password, roleID string, managerID *string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") || strings.TrimSpace(displayName) == "" || password == "" {
		return model.User{}, model.ErrInvalidInput
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return model.User{}, model.ErrUserAlreadyExists
	} else if !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, err
	}

	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		return model.User{}, err
	}
	if !role.IsActive {
		return model.User{}, model.ErrRoleNotFound
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		RoleID:       role.ID,
		ManagerID:    managerID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// SetActive flips a user's active flag. Deactivation also revokes every
// refresh token so the account goes dark as soon as the access token lapses.
func (s *UserService) SetActive(ctx context.Context, userID string, active bool) error {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return err
	}
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return err
	}
	if !active {
		return s.tokens.RevokeAll(ctx, userID)
	}
	return nil
}

func (s *UserService) Get(ctx context.Context, userID string) (model.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}
