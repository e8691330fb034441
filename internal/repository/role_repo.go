package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealboard/internal/ids"
	"dealboard/internal/model"
)

type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

const roleColumns = `id, name, role_type, dashboard_access, permissions, is_active, created_at, updated_at`

func scanRole(row pgx.Row) (model.Role, error) {
	var (
		r    model.Role
		tier string
	)
	err := row.Scan(&r.ID, &r.Name, &r.RoleType, &tier, &r.Permissions, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return model.Role{}, err
	}
	parsed, ok := model.ParseDashboardTier(tier)
	if !ok {
		return model.Role{}, fmt.Errorf("role %s has unknown dashboard tier %q", r.ID, tier)
	}
	r.DashboardAccess = parsed
	return r, nil
}

func (r *RoleRepository) FindByID(ctx context.Context, id string) (model.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Role{}, model.ErrRoleNotFound
	}
	if err != nil {
		return model.Role{}, fmt.Errorf("find role by id: %w", err)
	}
	return role, nil
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (model.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE lower(name) = lower($1)`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Role{}, model.ErrRoleNotFound
	}
	if err != nil {
		return model.Role{}, fmt.Errorf("find role by name: %w", err)
	}
	return role, nil
}

func (r *RoleRepository) Create(ctx context.Context, role model.Role) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO roles (id, name, role_type, dashboard_access, permissions, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		role.ID, role.Name, role.RoleType, role.DashboardAccess.String(), role.Permissions,
		role.IsActive, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

func (r *RoleRepository) UpdatePermissions(ctx context.Context, roleID string, perms model.PermissionSet) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET permissions = $2, updated_at = $3 WHERE id = $1`,
		roleID, perms, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update role permissions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRoleNotFound
	}
	return nil
}

// Deactivate soft-disables a role. Roles referenced by any user cannot be
// deactivated; history rows keep referencing them forever either way.
func (r *RoleRepository) Deactivate(ctx context.Context, roleID string) error {
	var referenced bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE role_id = $1 AND is_active)`, roleID).Scan(&referenced)
	if err != nil {
		return fmt.Errorf("check role references: %w", err)
	}
	if referenced {
		return model.ErrRoleInUse
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET is_active = FALSE, updated_at = $2 WHERE id = $1`,
		roleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRoleNotFound
	}
	return nil
}

func (r *RoleRepository) List(ctx context.Context) ([]model.Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]model.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Assign supersedes the user's current role in one transaction: the active
// assignment row is closed, the new one inserted, users.role_id updated,
// and an immutable change-log entry written. At most one assignment stays
// active per user.
func (r *RoleRepository) Assign(ctx context.Context, userID, roleID, assignedBy, reason string) (model.RoleAssignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.RoleAssignment{}, fmt.Errorf("begin assign role: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var previousRoleName *string
	err = tx.QueryRow(ctx,
		`SELECT r.name FROM users u JOIN roles r ON r.id = u.role_id WHERE u.id = $1 FOR UPDATE OF u`,
		userID).Scan(&previousRoleName)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RoleAssignment{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.RoleAssignment{}, fmt.Errorf("load current role: %w", err)
	}

	var newRoleName string
	err = tx.QueryRow(ctx,
		`SELECT name FROM roles WHERE id = $1 AND is_active`, roleID).Scan(&newRoleName)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RoleAssignment{}, model.ErrRoleNotFound
	}
	if err != nil {
		return model.RoleAssignment{}, fmt.Errorf("load new role: %w", err)
	}

	now := time.Now().UTC()

	if _, err := tx.Exec(ctx,
		`UPDATE role_assignments SET is_active = FALSE, effective_until = $2
		 WHERE user_id = $1 AND is_active`,
		userID, now); err != nil {
		return model.RoleAssignment{}, fmt.Errorf("close active assignment: %w", err)
	}

	assignment := model.RoleAssignment{
		ID:            ids.New(),
		UserID:        userID,
		RoleID:        roleID,
		AssignedBy:    assignedBy,
		EffectiveFrom: now,
		IsActive:      true,
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO role_assignments (id, user_id, role_id, assigned_by, effective_from, is_active)
		 VALUES ($1, $2, $3, $4, $5, TRUE)`,
		assignment.ID, assignment.UserID, assignment.RoleID, assignment.AssignedBy, assignment.EffectiveFrom); err != nil {
		return model.RoleAssignment{}, fmt.Errorf("insert assignment: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET role_id = $2, updated_at = $3 WHERE id = $1`,
		userID, roleID, now); err != nil {
		return model.RoleAssignment{}, fmt.Errorf("update user role: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO role_change_logs (id, user_id, previous_role, new_role, changed_by, reason, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ids.New(), userID, previousRoleName, newRoleName, assignedBy, reason, now); err != nil {
		return model.RoleAssignment{}, fmt.Errorf("log role change: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.RoleAssignment{}, fmt.Errorf("commit assign role: %w", err)
	}
	return assignment, nil
}

// AssignmentHistory returns the append-only assignment rows, newest first.
func (r *RoleRepository) AssignmentHistory(ctx context.Context, userID string) ([]model.RoleAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, role_id, assigned_by, effective_from, effective_until, is_active
		 FROM role_assignments WHERE user_id = $1 ORDER BY effective_from DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	history := make([]model.RoleAssignment, 0)
	for rows.Next() {
		var a model.RoleAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleID, &a.AssignedBy, &a.EffectiveFrom, &a.EffectiveUntil, &a.IsActive); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		history = append(history, a)
	}
	return history, rows.Err()
}
