package model

type LoginRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ChallengeID       string `json:"challenge_id"`
	ChallengeSolution string `json:"challenge_solution"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type CreateEngagementRequest struct {
	Title       string `json:"title"`
	AccountName string `json:"account_name"`
	Stage       string `json:"stage"`
	ValueCents  int64  `json:"value_cents"`
}

// UpdateEngagementRequest uses pointers so omitted fields are left alone.
type UpdateEngagementRequest struct {
	Title       *string `json:"title"`
	AccountName *string `json:"account_name"`
	Stage       *string `json:"stage"`
	ValueCents  *int64  `json:"value_cents"`
}

type CreateUserRequest struct {
	Email       string  `json:"email"`
	DisplayName string  `json:"display_name"`
	Password    string  `json:"password"`
	RoleID      string  `json:"role_id"`
	ManagerID   *string `json:"manager_id"`
}

type SetUserActiveRequest struct {
	Active bool `json:"active"`
}

type CreateRoleRequest struct {
	Name            string        `json:"name"`
	RoleType        string        `json:"role_type"`
	DashboardAccess string        `json:"dashboard_access"`
	Permissions     PermissionSet `json:"permissions"`
}

type UpdateRolePermissionsRequest struct {
	Permissions PermissionSet `json:"permissions"`
}

type AssignRoleRequest struct {
	RoleID string `json:"role_id"`
	Reason string `json:"reason"`
}
