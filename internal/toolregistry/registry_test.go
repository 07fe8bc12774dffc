package toolregistry

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

type fakeTool struct {
	name     string
	category Category
	schema   json.RawMessage
	execute  func(ctx context.Context, params json.RawMessage) (*Result, error)
}

func (f *fakeTool) Name() string            { return f.name }
func (f *fakeTool) Description() string     { return "fake tool " + f.name }
func (f *fakeTool) Category() Category      { return f.category }
func (f *fakeTool) Schema() json.RawMessage { return f.schema }
func (f *fakeTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	return f.execute(ctx, params)
}

func echoTool(name string, cat Category) *fakeTool {
	return &fakeTool{
		name:     name,
		category: cat,
		schema:   json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
		execute: func(ctx context.Context, params json.RawMessage) (*Result, error) {
			return &Result{Content: string(params)}, nil
		},
	}
}

func TestRegisterGetUnregister(t *testing.T) {
	r := New()
	tool := echoTool("echo", CategoryExec)
	r.Register(tool)

	got, ok := r.Get("echo")
	if !ok || got.Name() != "echo" {
		t.Fatalf("expected to find registered tool")
	}

	r.Unregister("echo")
	if _, ok := r.Get("echo"); ok {
		t.Fatal("expected tool to be gone after unregister")
	}
}

func TestByCategory(t *testing.T) {
	r := New()
	r.Register(echoTool("read_file", CategoryFilesystem))
	r.Register(echoTool("write_file", CategoryFilesystem))
	r.Register(echoTool("exec", CategoryExec))

	fsTools := r.ByCategory(CategoryFilesystem)
	if len(fsTools) != 2 {
		t.Fatalf("expected 2 filesystem tools, got %d", len(fsTools))
	}
	execTools := r.ByCategory(CategoryExec)
	if len(execTools) != 1 {
		t.Fatalf("expected 1 exec tool, got %d", len(execTools))
	}
}

func TestExecuteRunsRegisteredTool(t *testing.T) {
	r := New()
	r.Register(echoTool("echo", CategoryExec))

	params, _ := json.Marshal(map[string]string{"text": "hi"})
	result, err := r.Execute(context.Background(), "echo", params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success: %s", result.Content)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := New()
	result, err := r.Execute(context.Background(), "nope", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content, "not found") {
		t.Fatalf("expected not-found error, got %+v", result)
	}
}

func TestExecuteRejectsOversizedName(t *testing.T) {
	r := New()
	longName := strings.Repeat("a", MaxToolNameLength+1)
	result, err := r.Execute(context.Background(), longName, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected oversized name to be rejected")
	}
}

func TestExecuteRejectsInvalidArguments(t *testing.T) {
	r := New()
	r.Register(echoTool("echo", CategoryExec))

	result, err := r.Execute(context.Background(), "echo", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content, "invalid arguments") {
		t.Fatalf("expected schema validation failure, got %+v", result)
	}
}

func TestFilterByPolicyDenyWinsOverAllow(t *testing.T) {
	tools := []Tool{
		echoTool("read_file", CategoryFilesystem),
		echoTool("exec", CategoryExec),
		echoTool("webfetch", CategoryNetwork),
	}
	policy := Policy{
		AllowCategories: []Category{CategoryFilesystem, CategoryExec},
		Deny:            []string{"exec"},
	}
	filtered := FilterByPolicy(policy, tools)
	if len(filtered) != 1 || filtered[0].Name() != "read_file" {
		t.Fatalf("expected only read_file to survive, got %+v", filtered)
	}
}

func TestFilterByPolicyNoRestrictionsAllowsAll(t *testing.T) {
	tools := []Tool{echoTool("a", CategoryExec), echoTool("b", CategoryNetwork)}
	filtered := FilterByPolicy(Policy{}, tools)
	if len(filtered) != 2 {
		t.Fatalf("expected all tools to pass through, got %d", len(filtered))
	}
}
