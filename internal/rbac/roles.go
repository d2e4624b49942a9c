package rbac

// Quality-specific roles a staff member can hold
const (
	RoleTeamLeader        = "team_leader"
	RoleQualityStaff      = "quality_staff"
	RoleSiteSupervisor    = "site_supervisor"
	RoleProjectManager    = "project_manager"
	RoleOperationsManager = "operations_manager"
)

// Main staff roles that carry break-glass rights
const (
	RoleGeneralManager = "general_manager"
	RoleBusinessAdmin  = "business_admin"
)

// QualityRoles lists every assignable quality role
var QualityRoles = []string{
	RoleTeamLeader,
	RoleQualityStaff,
	RoleSiteSupervisor,
	RoleProjectManager,
	RoleOperationsManager,
}

// overrideRoles is fixed and not configurable per tenant
var overrideRoles = map[string]bool{
	RoleOperationsManager: true,
	RoleGeneralManager:    true,
	RoleBusinessAdmin:     true,
}

// Permissions are the capability flags derived from a quality role
type Permissions struct {
	CanCreate             bool `json:"can_create"`
	CanReview             bool `json:"can_review"`
	CanApprove            bool `json:"can_approve"`
	CanOverride           bool `json:"can_override"`
	CanViewAll            bool `json:"can_view_all"`
	CanExport             bool `json:"can_export"`
	CanDelete             bool `json:"can_delete"`
	RestrictToOwnProjects bool `json:"restrict_to_own_projects"`
}

var defaultPermissions = map[string]Permissions{
	RoleQualityStaff: {
		CanCreate:             true,
		RestrictToOwnProjects: true,
	},
	RoleTeamLeader: {
		CanCreate:             true,
		CanReview:             true,
		RestrictToOwnProjects: true,
	},
	RoleSiteSupervisor: {
		CanCreate:             true,
		CanReview:             true,
		CanExport:             true,
		RestrictToOwnProjects: true,
	},
	RoleProjectManager: {
		CanCreate:  true,
		CanReview:  true,
		CanApprove: true,
		CanViewAll: true,
		CanExport:  true,
	},
	RoleOperationsManager: {
		CanCreate:   true,
		CanReview:   true,
		CanApprove:  true,
		CanOverride: true,
		CanViewAll:  true,
		CanExport:   true,
		CanDelete:   true,
	},
}

// IsQualityRole reports whether role is one of the five assignable quality roles
func IsQualityRole(role string) bool {
	_, ok := defaultPermissions[role]
	return ok
}

// DefaultPermissions returns the permission flags for a role. Unknown roles
// get no permissions beyond the own-project restriction.
func DefaultPermissions(role string) Permissions {
	if p, ok := defaultPermissions[role]; ok {
		return p
	}
	if overrideRoles[role] {
		// senior main roles see and export everything
		return Permissions{CanViewAll: true, CanExport: true, CanOverride: true}
	}
	return Permissions{RestrictToOwnProjects: true}
}

// CanOverrideRole reports whether role belongs to the fixed break-glass list
func CanOverrideRole(role string) bool {
	return overrideRoles[role]
}
