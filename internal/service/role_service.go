package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealboard/internal/model"
)

// RoleStore is the persistence surface for roles and the append-only
// assignment history.
type RoleStore interface {
	FindByID(ctx context.Context, id string) (model.Role, error)
	FindByName(ctx context.Context, name string) (model.Role, error)
	Create(ctx context.Context, role model.Role) error
	UpdatePermissions(ctx context.Context, roleID string, perms model.PermissionSet) error
	Deactivate(ctx context.Context, roleID string) error
	List(ctx context.Context) ([]model.Role, error)
	Assign(ctx context.Context, userID, roleID, assignedBy, reason string) (model.RoleAssignment, error)
	AssignmentHistory(ctx context.Context, userID string) ([]model.RoleAssignment, error)
}

// RoleService manages the role catalog and role assignment. Assignment
// supersedes: the store closes the previous active assignment, activates
// the new one, and logs the change in a single transaction.
type RoleService struct {
	roles RoleStore
}

func NewRoleService(roles RoleStore) *RoleService {
	return &RoleService{roles: roles}
}

func (s *RoleService) Create(ctx context.Context, name, roleType, tier string, perms model.PermissionSet) (model.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Role{}, model.ErrInvalidInput
	}

	parsedTier, ok := model.ParseDashboardTier(tier)
	if !ok {
		return model.Role{}, model.ErrInvalidInput
	}

	switch roleType {
	case model.RoleTypeAdmin, model.RoleTypeManager, model.RoleTypeRep, model.RoleTypeCustom:
	default:
		return model.Role{}, model.ErrInvalidInput
	}

	now := time.Now().UTC()
	role := model.Role{
		ID:              uuid.NewString(),
		Name:            name,
		RoleType:        roleType,
		DashboardAccess: parsedTier,
		Permissions:     perms,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return model.Role{}, err
	}
	return role, nil
}

func (s *RoleService) UpdatePermissions(ctx context.Context, roleID string, perms model.PermissionSet) error {
	if strings.TrimSpace(roleID) == "" {
		return model.ErrInvalidInput
	}
	return s.roles.UpdatePermissions(ctx, roleID, perms)
}

func (s *RoleService) Deactivate(ctx context.Context, roleID string) error {
	if strings.TrimSpace(roleID) == "" {
		return model.ErrInvalidInput
	}
	return s.roles.Deactivate(ctx, roleID)
}

func (s *RoleService) List(ctx context.Context) ([]model.Role, error) {
	return s.roles.List(ctx)
}

// Assign gives the user a new current role and records the supersession.
func (s *RoleService) Assign(ctx context.Context, userID, roleID, assignedBy, reason string) (model.RoleAssignment, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(roleID) == "" {
		return model.RoleAssignment{}, model.ErrInvalidInput
	}
	return s.roles.Assign(ctx, userID, roleID, assignedBy, reason)
}

func (s *RoleService) AssignmentHistory(ctx context.Context, userID string) ([]model.RoleAssignment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, model.ErrInvalidInput
	}
	return s.roles.AssignmentHistory(ctx, userID)
}

// EnsureBuiltins creates the three built-in roles when missing. Returns
// the admin role so the bootstrap user can reference it.
func (s *RoleService) EnsureBuiltins(ctx context.Context) (model.Role, error) {
	builtins := []struct {
		name     string
		roleType string
		tier     model.DashboardTier
		perms    model.PermissionSet
	}{
		{"Administrator", model.RoleTypeAdmin, model.TierFull, model.AdminPermissions()},
		{"Sales Manager", model.RoleTypeManager, model.TierElevated, model.ManagerPermissions()},
		{"Sales Rep", model.RoleTypeRep, model.TierBase, model.RepPermissions()},
	}

	var admin model.Role
	for _, b := range builtins {
		role, err := s.roles.FindByName(ctx, b.name)
		if err == nil {
			if b.roleType == model.RoleTypeAdmin {
				admin = role
			}
			continue
		}
		if !errors.Is(err, model.ErrRoleNotFound) {
			return model.Role{}, err
		}

		now := time.Now().UTC()
		role = model.Role{
			ID:              uuid.NewString(),
			Name:            b.name,
			RoleType:        b.roleType,
			DashboardAccess: b.tier,
			Permissions:     b.perms,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.roles.Create(ctx, role); err != nil {
			return model.Role{}, err
		}
		if b.roleType == model.RoleTypeAdmin {
			admin = role
		}
	}
	return admin, nil
}
