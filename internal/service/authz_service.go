package service

import (
	"context"
	"strings"

	"dealboard/internal/model"
)

// Capability names a single permission-matrix boolean. Route guards refer
// to capabilities by these keys; resolution is a direct field lookup.
type Capability string

const (
	CapCreateEngagements Capability = "create_engagements"
	CapViewEngagements   Capability = "view_engagements"
	CapEditEngagements   Capability = "edit_engagements"
	CapDeleteEngagements Capability = "delete_engagements"
	CapCreateAccounts    Capability = "create_accounts"
	CapEditAccounts      Capability = "edit_accounts"
	CapDeleteAccounts    Capability = "delete_accounts"
	CapViewReports       Capability = "view_reports"
	CapViewTeamReports   Capability = "view_team_reports"
	CapExportData        Capability = "export_data"
	CapImportData        Capability = "import_data"
	CapManageUsers       Capability = "manage_users"
	CapManageRoles       Capability = "manage_roles"
	CapAssignRoles       Capability = "assign_roles"
	CapViewAuditLog      Capability = "view_audit_log"
	CapManagePipelines   Capability = "manage_pipelines"
)

// EngagementFinder is the slice of storage the engine needs for
// resource-scoped decisions.
type EngagementFinder interface {
	FindByID(ctx context.Context, id string) (model.Engagement, error)
}

// AuthzService evaluates access decisions. Two mechanisms compose: the
// ordered dashboard tier for coarse "at least manager" gates, and the
// per-role permission matrix for everything else, with ownership scoping
// layered on top for engagement access. Every decision fails closed.
type AuthzService struct {
	engagements EngagementFinder
}

func NewAuthzService(engagements EngagementFinder) *AuthzService {
	return &AuthzService{engagements: engagements}
}

// MeetsMinimum is the coarse tier gate. MeetsMinimum(x, x) is true for
// every tier.
func (s *AuthzService) MeetsMinimum(principal model.Principal, required model.DashboardTier) bool {
	return principal.Tier.MeetsMinimum(required)
}

// HasCapability reads the principal's permission matrix directly. Scoped
// capabilities (view/edit engagements) are granted at any scope here; the
// scope itself is enforced by CanAccessEngagement.
func (s *AuthzService) HasCapability(principal model.Principal, capability Capability) bool {
	p := principal.Permissions
	switch capability {
	case CapCreateEngagements:
		return p.CreateEngagements
	case CapViewEngagements:
		return p.ViewScope() != model.ScopeNone
	case CapEditEngagements:
		return p.EditScope() != model.ScopeNone
	case CapDeleteEngagements:
		return p.DeleteEngagements
	case CapCreateAccounts:
		return p.CreateAccounts
	case CapEditAccounts:
		return p.EditAccounts
	case CapDeleteAccounts:
		return p.DeleteAccounts
	case CapViewReports:
		return p.ViewReports
	case CapViewTeamReports:
		return p.ViewTeamReports
	case CapExportData:
		return p.ExportData
	case CapImportData:
		return p.ImportData
	case CapManageUsers:
		return p.ManageUsers
	case CapManageRoles:
		return p.ManageRoles
	case CapAssignRoles:
		return p.AssignRoles
	case CapViewAuditLog:
		return p.ViewAuditLog
	case CapManagePipelines:
		return p.ManagePipelines
	default:
		return false
	}
}

// EngagementAction selects which scope column of the matrix applies.
type EngagementAction int

const (
	ActionView EngagementAction = iota
	ActionEdit
	ActionDelete
)

// CanAccessEngagement is the resource-scoped decision. Check order is
// fixed: parameter validation, then existence, then ownership, so the
// error shape does not leak whether a record exists.
//
// Full-tier principals are always allowed. Own-scope principals are
// allowed iff they own the record. Team-scope principals are allowed iff
// they own it or manage its owner.
func (s *AuthzService) CanAccessEngagement(ctx context.Context, principal model.Principal, engagementID string, action EngagementAction) (model.Engagement, error) {
	if strings.TrimSpace(engagementID) == "" {
		return model.Engagement{}, model.ErrInvalidInput
	}

	engagement, err := s.engagements.FindByID(ctx, engagementID)
	if err != nil {
		// Storage failures deny; only a clean NotFound is reported as such.
		return model.Engagement{}, err
	}

	if principal.Tier == model.TierFull {
		return engagement, nil
	}

	scope := s.scopeFor(principal, action)
	switch scope {
	case model.ScopeAll:
		return engagement, nil
	case model.ScopeTeam:
		if engagement.OwnerID == principal.UserID {
			return engagement, nil
		}
		if engagement.OwnerManagerID != nil && *engagement.OwnerManagerID == principal.UserID {
			return engagement, nil
		}
	case model.ScopeOwn:
		if engagement.OwnerID == principal.UserID {
			return engagement, nil
		}
	}

	return model.Engagement{}, model.ErrForbidden
}

// VisibleScope returns the listing scope for the principal; full tier
// always sees everything.
func (s *AuthzService) VisibleScope(principal model.Principal) model.AccessScope {
	if principal.Tier == model.TierFull {
		return model.ScopeAll
	}
	return principal.Permissions.ViewScope()
}

func (s *AuthzService) scopeFor(principal model.Principal, action EngagementAction) model.AccessScope {
	switch action {
	case ActionView:
		return principal.Permissions.ViewScope()
	case ActionEdit:
		return principal.Permissions.EditScope()
	case ActionDelete:
		if principal.Permissions.DeleteEngagements {
			// Deletion rides the edit scope: who you may edit, you may
			// delete, provided the delete capability itself is granted.
			return principal.Permissions.EditScope()
		}
		return model.ScopeNone
	default:
		return model.ScopeNone
	}
}
