package authz

// Check evaluates a permission list against a concrete project, environment,
// and action. Entries are tried in order and the first match grants access;
// there is no deny-override, so any broader grant wins regardless of later
// entries. Project and environment comparison is exact (case-sensitive).
func Check(permissions []Permission, project, environment string, action Action) bool {
	for _, p := range permissions {
		if p.Project != Wildcard && p.Project != project {
			continue
		}
		if p.Environment != Wildcard && p.Environment != environment {
			continue
		}
		if p.Role.Allows(action) {
			return true
		}
	}
	return false
}

// IsGlobalAdmin reports whether the permission list carries an admin grant
// over all projects. Used for operations with no natural project/environment
// scoping, such as grant management.
func IsGlobalAdmin(permissions []Permission) bool {
	for _, p := range permissions {
		if p.Project == Wildcard && p.Role == RoleAdmin {
			return true
		}
	}
	return false
}
