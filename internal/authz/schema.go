package authz

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// permissionsSchema constrains the permissions JSON accepted from the
// trusted-edge header before it is decoded. Validating up front keeps
// malformed assertions out of the evaluator entirely.
const permissionsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["project", "environment", "role"],
    "additionalProperties": false,
    "properties": {
      "project": {"type": "string", "minLength": 1},
      "environment": {"type": "string", "minLength": 1},
      "role": {"enum": ["viewer", "operator", "admin"]},
      "resources": {
        "type": "array",
        "items": {"type": "string", "minLength": 1}
      }
    }
  }
}`

var (
	compiledSchema     *jsonschema.Schema
	compileSchemaOnce  sync.Once
	compileSchemaError error
)

func permissionsJSONSchema() (*jsonschema.Schema, error) {
	compileSchemaOnce.Do(func() {
		parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(permissionsSchema))
		if err != nil {
			compileSchemaError = fmt.Errorf("parse permissions schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		compiler.DefaultDraft(jsonschema.Draft7)
		if err := compiler.AddResource("permissions.json", parsed); err != nil {
			compileSchemaError = fmt.Errorf("add permissions schema resource: %w", err)
			return
		}

		compiledSchema, compileSchemaError = compiler.Compile("permissions.json")
	})
	return compiledSchema, compileSchemaError
}

// ParsePermissionsJSON validates a permissions document against the embedded
// schema and decodes it into typed permissions. Any schema violation rejects
// the whole document; there are no partially-accepted permission lists.
func ParsePermissionsJSON(doc string) ([]Permission, error) {
	schema, err := permissionsJSONSchema()
	if err != nil {
		return nil, err
	}

	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse permissions JSON: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("permissions JSON rejected by schema: %w", err)
	}

	var permissions []Permission
	if err := json.Unmarshal([]byte(doc), &permissions); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	return permissions, nil
}

// EncodePermissionsJSON serializes permissions for the process-boundary
// decision contract.
func EncodePermissionsJSON(permissions []Permission) (string, error) {
	if permissions == nil {
		permissions = []Permission{}
	}
	encoded, err := json.Marshal(permissions)
	if err != nil {
		return "", fmt.Errorf("encode permissions: %w", err)
	}
	return string(encoded), nil
}
