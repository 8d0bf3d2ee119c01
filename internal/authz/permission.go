package authz

import (
	"encoding/json"
	"fmt"
)

// Wildcard matches any project or environment in a permission entry.
const Wildcard = "*"

// Role is the closed set of permission roles. Roles are strictly ordered:
// every action a viewer may perform is also available to operators, and every
// operator action is available to admins.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// ParseRole converts a role string into a Role, rejecting anything outside
// the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleViewer, RoleOperator, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Action is the closed set of operations the evaluator can gate.
type Action string

const (
	ActionRead       Action = "READ"
	ActionDeploy     Action = "DEPLOY"
	ActionRestart    Action = "RESTART"
	ActionScale      Action = "SCALE"
	ActionInvalidate Action = "INVALIDATE"
	ActionRDSControl Action = "RDS_CONTROL"
	ActionAdmin      Action = "ADMIN"
)

// roleActions maps each role to its action set. The sets are built
// cumulatively so the ordering invariant (admin ⊇ operator ⊇ viewer) holds by
// construction rather than by convention.
var roleActions = func() map[Role]map[Action]struct{} {
	build := func(base map[Action]struct{}, extra ...Action) map[Action]struct{} {
		set := make(map[Action]struct{}, len(base)+len(extra))
		for a := range base {
			set[a] = struct{}{}
		}
		for _, a := range extra {
			set[a] = struct{}{}
		}
		return set
	}

	viewer := build(nil, ActionRead)
	operator := build(viewer, ActionDeploy, ActionRestart, ActionScale, ActionInvalidate, ActionRDSControl)
	admin := build(operator, ActionAdmin)

	return map[Role]map[Action]struct{}{
		RoleViewer:   viewer,
		RoleOperator: operator,
		RoleAdmin:    admin,
	}
}()

// Allows reports whether the role's action set contains the action.
func (r Role) Allows(action Action) bool {
	set, ok := roleActions[r]
	if !ok {
		return false
	}
	_, ok = set[action]
	return ok
}

// Actions returns the role's action set as a slice. The result is a copy and
// safe to mutate.
func (r Role) Actions() []Action {
	set := roleActions[r]
	out := make([]Action, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	return out
}

// Permission grants a role over a project/environment scope. Project and
// Environment may be the wildcard "*". Resources optionally narrows a grant to
// named resources; an empty list means the whole scope.
type Permission struct {
	Project     string   `json:"project"`
	Environment string   `json:"environment"`
	Role        Role     `json:"role"`
	Resources   []string `json:"resources,omitempty"`
}

// UnmarshalJSON enforces the closed role set when decoding permission JSON.
func (p *Permission) UnmarshalJSON(data []byte) error {
	type raw Permission
	var decoded raw
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if !Role(decoded.Role).Valid() {
		return fmt.Errorf("unknown role %q", decoded.Role)
	}
	*p = Permission(decoded)
	return nil
}
