package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermissionsJSON_Valid(t *testing.T) {
	doc := `[
		{"project": "acme", "environment": "staging", "role": "viewer"},
		{"project": "*", "environment": "*", "role": "admin", "resources": ["web", "worker"]}
	]`

	perms, err := ParsePermissionsJSON(doc)
	require.NoError(t, err)
	require.Len(t, perms, 2)

	assert.Equal(t, RoleViewer, perms[0].Role)
	assert.Equal(t, "acme", perms[0].Project)
	assert.Equal(t, []string{"web", "worker"}, perms[1].Resources)
}

func TestParsePermissionsJSON_EmptyList(t *testing.T) {
	perms, err := ParsePermissionsJSON(`[]`)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestParsePermissionsJSON_Rejections(t *testing.T) {
	cases := map[string]string{
		"unknown role":       `[{"project": "acme", "environment": "staging", "role": "superuser"}]`,
		"missing project":    `[{"environment": "staging", "role": "viewer"}]`,
		"empty environment":  `[{"project": "acme", "environment": "", "role": "viewer"}]`,
		"extra field":        `[{"project": "acme", "environment": "staging", "role": "viewer", "scope": "all"}]`,
		"not an array":       `{"project": "acme", "environment": "staging", "role": "viewer"}`,
		"not JSON":           `viewer`,
		"numeric role":       `[{"project": "acme", "environment": "staging", "role": 3}]`,
		"non-string project": `[{"project": 12, "environment": "staging", "role": "viewer"}]`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePermissionsJSON(doc)
			assert.Error(t, err)
		})
	}
}

func TestEncodePermissionsJSON_RoundTrip(t *testing.T) {
	perms := []Permission{
		{Project: "acme", Environment: "production", Role: RoleOperator},
	}

	encoded, err := EncodePermissionsJSON(perms)
	require.NoError(t, err)

	decoded, err := ParsePermissionsJSON(encoded)
	require.NoError(t, err)
	assert.Equal(t, perms, decoded)
}

func TestEncodePermissionsJSON_NilEncodesEmptyArray(t *testing.T) {
	encoded, err := EncodePermissionsJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", encoded)
}
