package rbac

// EffectiveRole is the resolved role of a staff member within a tenant.
// The quality role takes precedence over the main role when both are set.
type EffectiveRole struct {
	UserID  string `json:"user_id"`
	Main    string `json:"main_role"`
	Quality string `json:"quality_role,omitempty"`
}

// Name returns the role used for every permission decision
func (r EffectiveRole) Name() string {
	if r.Quality != "" {
		return r.Quality
	}
	return r.Main
}

// In reports whether the effective role is a member of roles
func (r EffectiveRole) In(roles []string) bool {
	name := r.Name()
	if name == "" {
		return false
	}
	for _, role := range roles {
		if role == name {
			return true
		}
	}
	return false
}

// Is reports whether the effective role equals role
func (r EffectiveRole) Is(role string) bool {
	return role != "" && r.Name() == role
}

// CanOverride checks the effective role against the fixed break-glass list
func (r EffectiveRole) CanOverride() bool {
	return CanOverrideRole(r.Name())
}

// Permissions returns the static permission flags of the effective role
func (r EffectiveRole) Permissions() Permissions {
	return DefaultPermissions(r.Name())
}
