package toolregistry

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
)

// reflectCache memoizes the reflected schema under the name the caller
// passes to ReflectSchema, so a tool whose parameters are a Go struct only
// pays the reflection cost once.
var (
	reflectCacheMu sync.Mutex
	reflectCache   = map[string]json.RawMessage{}
)

// ReflectSchema derives a JSON Schema from a Go struct via field tags
// (`json`, `jsonschema`), for tools that declare their parameters as typed
// structs instead of hand-written JSON Schema literals.
func ReflectSchema(name string, v any) json.RawMessage {
	reflectCacheMu.Lock()
	if cached, ok := reflectCache[name]; ok {
		reflectCacheMu.Unlock()
		return cached
	}
	reflectCacheMu.Unlock()

	reflector := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(v)
	raw, err := json.Marshal(schema)
	if err != nil {
		raw = json.RawMessage(`{"type":"object"}`)
	}

	reflectCacheMu.Lock()
	reflectCache[name] = raw
	reflectCacheMu.Unlock()
	return raw
}
