package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Tool parameter limits, carried over from the teacher's ToolRegistry to
// prevent resource exhaustion from a misbehaving provider response.
const (
	MaxToolNameLength  = 256
	MaxToolParamsSize  = 10 << 20 // 10MB
)

// Registry manages available tools with thread-safe registration, lookup,
// and category-scoped filtering.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// New creates an empty tool registry.
func New() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns every registered tool.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// ByCategory returns every registered tool in the given category, replacing
// the teacher's name-prefix routing (e.g. "mcp:*") with an explicit field
// comparison.
func (r *Registry) ByCategory(cat Category) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tool
	for _, t := range r.tools {
		if t.Category() == cat {
			out = append(out, t)
		}
	}
	return out
}

// Filter returns every registered tool for which allow returns true.
func (r *Registry) Filter(allow func(Tool) bool) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if allow(t) {
			out = append(out, t)
		}
	}
	return out
}

// Execute runs a tool by name with the given JSON parameters, validating
// name length and parameter size before lookup (§4.D invariant) and
// validating the arguments against the tool's schema before dispatch.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage) (*Result, error) {
	if len(name) > MaxToolNameLength {
		return &Result{Content: fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength), IsError: true}, nil
	}
	if len(params) > MaxToolParamsSize {
		return &Result{Content: fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize), IsError: true}, nil
	}

	tool, ok := r.Get(name)
	if !ok {
		return &Result{Content: "tool not found: " + name, IsError: true}, nil
	}

	if err := ValidateArgs(tool.Schema(), params); err != nil {
		return &Result{Content: fmt.Sprintf("invalid arguments for %s: %v", name, err), IsError: true}, nil
	}

	return tool.Execute(ctx, params)
}
