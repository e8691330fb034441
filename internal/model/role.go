package model

import (
	"strings"
	"time"
)

// DashboardTier is the ordered coarse access level attached to a role.
// Higher tiers include everything below them.
type DashboardTier int

const (
	TierBase     DashboardTier = 1
	TierElevated DashboardTier = 2
	TierFull     DashboardTier = 3
)

// MeetsMinimum reports whether the tier satisfies the required tier.
func (t DashboardTier) MeetsMinimum(required DashboardTier) bool {
	return t >= required
}

func (t DashboardTier) String() string {
	switch t {
	case TierBase:
		return "base"
	case TierElevated:
		return "elevated"
	case TierFull:
		return "full"
	default:
		return "unknown"
	}
}

// ParseDashboardTier maps the stored tier name back to its ordinal.
func ParseDashboardTier(raw string) (DashboardTier, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "base":
		return TierBase, true
	case "elevated":
		return TierElevated, true
	case "full":
		return TierFull, true
	default:
		return 0, false
	}
}

// Role types. CUSTOM marks administrator-defined roles whose capability
// set does not follow any of the built-in templates.
const (
	RoleTypeAdmin   = "ADMIN"
	RoleTypeManager = "MANAGER"
	RoleTypeRep     = "REP"
	RoleTypeCustom  = "CUSTOM"
)

// PermissionSet is the fixed-shape capability matrix carried by every role.
// Access decisions read these booleans directly; nothing is ever inferred
// from the role's name or type, so custom roles can mix capabilities freely.
type PermissionSet struct {
	CreateEngagements   bool `json:"create_engagements"`
	ViewOwnEngagements  bool `json:"view_own_engagements"`
	ViewTeamEngagements bool `json:"view_team_engagements"`
	ViewAllEngagements  bool `json:"view_all_engagements"`
	EditOwnEngagements  bool `json:"edit_own_engagements"`
	EditTeamEngagements bool `json:"edit_team_engagements"`
	EditAllEngagements  bool `json:"edit_all_engagements"`
	DeleteEngagements   bool `json:"delete_engagements"`
	CreateAccounts      bool `json:"create_accounts"`
	EditAccounts        bool `json:"edit_accounts"`
	DeleteAccounts      bool `json:"delete_accounts"`
	ViewReports         bool `json:"view_reports"`
	ViewTeamReports     bool `json:"view_team_reports"`
	ExportData          bool `json:"export_data"`
	ImportData          bool `json:"import_data"`
	ManageUsers         bool `json:"manage_users"`
	ManageRoles         bool `json:"manage_roles"`
	AssignRoles         bool `json:"assign_roles"`
	ViewAuditLog        bool `json:"view_audit_log"`
	ManagePipelines     bool `json:"manage_pipelines"`
}

// AccessScope is the breadth of resources a capability grants: none, the
// principal's own records, their team's (direct reports), or all records.
type AccessScope int

const (
	ScopeNone AccessScope = iota
	ScopeOwn
	ScopeTeam
	ScopeAll
)

func (s AccessScope) String() string {
	switch s {
	case ScopeOwn:
		return "own"
	case ScopeTeam:
		return "team"
	case ScopeAll:
		return "all"
	default:
		return "none"
	}
}

// ViewScope returns the widest engagement-viewing scope the matrix grants.
func (p PermissionSet) ViewScope() AccessScope {
	switch {
	case p.ViewAllEngagements:
		return ScopeAll
	case p.ViewTeamEngagements:
		return ScopeTeam
	case p.ViewOwnEngagements:
		return ScopeOwn
	default:
		return ScopeNone
	}
}

// EditScope returns the widest engagement-editing scope the matrix grants.
func (p PermissionSet) EditScope() AccessScope {
	switch {
	case p.EditAllEngagements:
		return ScopeAll
	case p.EditTeamEngagements:
		return ScopeTeam
	case p.EditOwnEngagements:
		return ScopeOwn
	default:
		return ScopeNone
	}
}

// Role bundles a dashboard tier with a permission matrix. Exactly one role
// is active per user at any instant; assignments supersede, never stack.
type Role struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	RoleType        string        `json:"role_type"`
	DashboardAccess DashboardTier `json:"dashboard_access"`
	Permissions     PermissionSet `json:"permissions"`
	IsActive        bool          `json:"is_active"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// RoleAssignment is one row of the append-only assignment history. The
// current role is the active assignment with no expiry or a future expiry.
type RoleAssignment struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	RoleID         string     `json:"role_id"`
	AssignedBy     string     `json:"assigned_by"`
	EffectiveFrom  time.Time  `json:"effective_from"`
	EffectiveUntil *time.Time `json:"effective_until,omitempty"`
	IsActive       bool       `json:"is_active"`
}

// RoleChangeLog records a role supersession: previous role -> new role.
type RoleChangeLog struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	PreviousRole *string   `json:"previous_role,omitempty"`
	NewRole      string    `json:"new_role"`
	ChangedBy    string    `json:"changed_by"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// AdminPermissions returns the capability matrix granted to built-in admins.
func AdminPermissions() PermissionSet {
	return PermissionSet{
		CreateEngagements: true, ViewOwnEngagements: true, ViewTeamEngagements: true,
		ViewAllEngagements: true, EditOwnEngagements: true, EditTeamEngagements: true,
		EditAllEngagements: true, DeleteEngagements: true, CreateAccounts: true,
		EditAccounts: true, DeleteAccounts: true, ViewReports: true,
		ViewTeamReports: true, ExportData: true, ImportData: true,
		ManageUsers: true, ManageRoles: true, AssignRoles: true,
		ViewAuditLog: true, ManagePipelines: true,
	}
}

// ManagerPermissions returns the built-in manager template: team-wide
// visibility and editing, no user or role administration.
func ManagerPermissions() PermissionSet {
	return PermissionSet{
		CreateEngagements: true, ViewOwnEngagements: true, ViewTeamEngagements: true,
		EditOwnEngagements: true, EditTeamEngagements: true, CreateAccounts: true,
		EditAccounts: true, ViewReports: true, ViewTeamReports: true,
		ExportData: true,
	}
}

// RepPermissions returns the built-in sales-rep template: own records only.
func RepPermissions() PermissionSet {
	return PermissionSet{
		CreateEngagements: true, ViewOwnEngagements: true,
		EditOwnEngagements: true, CreateAccounts: true, EditAccounts: true,
	}
}
