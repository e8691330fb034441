package model

import "time"

// User is an authenticatable principal. The lockout counters live on the
// row itself so the failure increment can be a single atomic UPDATE.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	DisplayName         string     `json:"display_name"`
	PasswordHash        string     `json:"-"`
	RoleID              string     `json:"role_id"`
	ManagerID           *string    `json:"manager_id,omitempty"`
	IsActive            bool       `json:"is_active"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Principal is the resolved identity attached to a request after token
// validation: the user plus their current role's tier and permission matrix.
type Principal struct {
	UserID      string        `json:"id"`
	Email       string        `json:"email"`
	DisplayName string        `json:"display_name"`
	RoleName    string        `json:"role"`
	Tier        DashboardTier `json:"dashboard_access"`
	Permissions PermissionSet `json:"-"`
	ManagerID   *string       `json:"-"`
}

// AuthClaims are the verified access-token claims before role resolution.
type AuthClaims struct {
	UserID  string `json:"sub"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Type    string `json:"typ"`
	TokenID string `json:"jti"`
}

// TokenPair is the login/refresh response payload.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	User         Principal `json:"user"`
}
