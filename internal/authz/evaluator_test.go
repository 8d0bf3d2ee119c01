package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_GlobalAdminGrantsEverything(t *testing.T) {
	perms := []Permission{{Project: "*", Environment: "*", Role: RoleAdmin}}

	actions := []Action{ActionRead, ActionDeploy, ActionRestart, ActionScale, ActionInvalidate, ActionRDSControl, ActionAdmin}
	for _, action := range actions {
		assert.True(t, Check(perms, "acme", "production", action), "action %s", action)
		assert.True(t, Check(perms, "other", "staging", action), "action %s", action)
	}
}

func TestCheck_ScopedViewer(t *testing.T) {
	perms := []Permission{{Project: "acme", Environment: "staging", Role: RoleViewer}}

	assert.True(t, Check(perms, "acme", "staging", ActionRead))
	assert.False(t, Check(perms, "acme", "staging", ActionDeploy))
	assert.False(t, Check(perms, "acme", "production", ActionRead))
	assert.False(t, Check(perms, "other", "staging", ActionRead))
}

func TestCheck_WildcardEnvironment(t *testing.T) {
	perms := []Permission{{Project: "acme", Environment: "*", Role: RoleOperator}}

	assert.True(t, Check(perms, "acme", "staging", ActionRestart))
	assert.True(t, Check(perms, "acme", "production", ActionScale))
	assert.False(t, Check(perms, "acme", "production", ActionAdmin))
	assert.False(t, Check(perms, "other", "production", ActionRead))
}

func TestCheck_AnyMatchGrants(t *testing.T) {
	// A narrow entry after a broad one changes nothing: first match wins and
	// there is no deny-override.
	perms := []Permission{
		{Project: "*", Environment: "*", Role: RoleOperator},
		{Project: "acme", Environment: "production", Role: RoleViewer},
	}

	assert.True(t, Check(perms, "acme", "production", ActionDeploy))
}

func TestCheck_EmptyListDenies(t *testing.T) {
	assert.False(t, Check(nil, "acme", "staging", ActionRead))
	assert.False(t, Check([]Permission{}, "acme", "staging", ActionRead))
}

func TestCheck_CaseSensitiveScopes(t *testing.T) {
	perms := []Permission{{Project: "acme", Environment: "staging", Role: RoleViewer}}

	assert.False(t, Check(perms, "Acme", "staging", ActionRead))
	assert.False(t, Check(perms, "acme", "Staging", ActionRead))
}

func TestIsGlobalAdmin(t *testing.T) {
	assert.True(t, IsGlobalAdmin([]Permission{{Project: "*", Environment: "*", Role: RoleAdmin}}))
	assert.True(t, IsGlobalAdmin([]Permission{
		{Project: "acme", Environment: "*", Role: RoleViewer},
		{Project: "*", Environment: "production", Role: RoleAdmin},
	}))

	assert.False(t, IsGlobalAdmin([]Permission{{Project: "acme", Environment: "*", Role: RoleAdmin}}))
	assert.False(t, IsGlobalAdmin([]Permission{{Project: "*", Environment: "*", Role: RoleOperator}}))
	assert.False(t, IsGlobalAdmin(nil))
}

func TestRoleActionSetsAreMonotonic(t *testing.T) {
	for _, action := range RoleViewer.Actions() {
		assert.True(t, RoleOperator.Allows(action), "operator missing viewer action %s", action)
		assert.True(t, RoleAdmin.Allows(action), "admin missing viewer action %s", action)
	}
	for _, action := range RoleOperator.Actions() {
		assert.True(t, RoleAdmin.Allows(action), "admin missing operator action %s", action)
	}
}

func TestRoleAllows(t *testing.T) {
	assert.True(t, RoleViewer.Allows(ActionRead))
	assert.False(t, RoleViewer.Allows(ActionDeploy))

	assert.True(t, RoleOperator.Allows(ActionRDSControl))
	assert.False(t, RoleOperator.Allows(ActionAdmin))

	assert.True(t, RoleAdmin.Allows(ActionAdmin))

	assert.False(t, Role("owner").Allows(ActionRead))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("operator")
	require.NoError(t, err)
	assert.Equal(t, RoleOperator, role)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}
