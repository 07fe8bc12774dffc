package toolregistry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache compiles each tool's schema once; schemas are static for the
// lifetime of a registered tool.
var (
	schemaCacheMu sync.Mutex
	schemaCache   = map[string]*jsonschema.Schema{}
)

// ValidateArgs checks params against schema before a tool ever runs. No
// teacher file validates tool arguments against schema pre-dispatch (the
// teacher relies on the provider having sent well-formed arguments); this is
// a new safety net against malformed or adversarial provider output.
func ValidateArgs(schema json.RawMessage, params json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}
	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var doc any
	if len(params) == 0 {
		doc = map[string]any{}
	} else if err := json.Unmarshal(params, &doc); err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}
	return compiled.Validate(doc)
}

func compileSchema(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schema)
	schemaCacheMu.Lock()
	if s, ok := schemaCache[key]; ok {
		schemaCacheMu.Unlock()
		return s, nil
	}
	schemaCacheMu.Unlock()

	compiler := jsonschema.NewCompiler()
	const resourceName = "tool-schema.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(schema)); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, err
	}

	schemaCacheMu.Lock()
	schemaCache[key] = compiled
	schemaCacheMu.Unlock()
	return compiled, nil
}
