package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// A handful of mutating entries declare an argument schema so a script
// passing a malformed payload fails before the call ever reaches the
// adapter, rather than surfacing as an opaque upstream 400. Grounded on the
// teacher's pkg/firewall tool-parameter schemas — there, a schema gates a
// tool call's arguments before CallTool; here it gates a catalog method's
// args before the proxy dispatches to the adapter.
const createPolicyArgsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "minItems": 1,
  "prefixItems": [
    {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1}
      }
    }
  ]
}`

const createComputerGroupArgsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "minItems": 1,
  "prefixItems": [
    {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "isSmart": {"type": "boolean"}
      }
    }
  ]
}`

const createUserArgsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "minItems": 1,
  "prefixItems": [
    {
      "type": "object",
      "required": ["name", "email"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "email": {"type": "string", "minLength": 3}
      }
    }
  ]
}`

var (
	schemaMu    sync.Mutex
	schemaCache = make(map[string]*jsonschema.Schema)
)

func compiledSchema(name, raw string) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[name]; ok {
		return s, nil
	}
	compiler := jsonschema.NewCompiler()
	resource := "mem://" + name + ".json"
	if err := compiler.AddResource(resource, strings.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	schemaCache[name] = schema
	return schema, nil
}

// ValidateArgs checks args against the entry's ArgsSchema, if any. An entry
// with no schema always validates.
func ValidateArgs(e Entry, args []any) error {
	if e.ArgsSchema == "" {
		return nil
	}
	schema, err := compiledSchema(e.Name, e.ArgsSchema)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal args: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("argument validation failed for %q: %w", e.Name, err)
	}
	return nil
}
