package files

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rexlunae/agentgw/internal/sandbox"
	"github.com/rexlunae/agentgw/internal/toolregistry"
)

// Config controls filesystem tool defaults and the sandbox policy each tool
// validates paths against.
type Config struct {
	Workspace     string
	MaxReadBytes  int
	ProtectedDirs []string
	DenyRead      []string
	DenyWrite     []string
	AllowPaths    []string
}

func newValidator(cfg Config) *sandbox.Validator {
	v, err := sandbox.New(sandbox.Policy{
		WorkspaceRoot: cfg.Workspace,
		ProtectedDirs: cfg.ProtectedDirs,
		DenyRead:      cfg.DenyRead,
		DenyWrite:     cfg.DenyWrite,
		AllowPaths:    cfg.AllowPaths,
	})
	if err != nil {
		// New only fails on paths filepath.Abs cannot resolve; in that
		// case the validator falls back to "." as the workspace root.
		v, _ = sandbox.New(sandbox.Policy{WorkspaceRoot: "."})
	}
	return v
}

// ReadTool implements a safe file reader.
type ReadTool struct {
	validator  *sandbox.Validator
	maxReadLen int
}

// NewReadTool creates a read tool scoped to the workspace.
func NewReadTool(cfg Config) *ReadTool {
	limit := cfg.MaxReadBytes
	if limit <= 0 {
		limit = 200000
	}
	return &ReadTool{
		validator:  newValidator(cfg),
		maxReadLen: limit,
	}
}

// Name returns the tool name.
func (t *ReadTool) Name() string {
	return "read"
}

// Description returns the tool description.
func (t *ReadTool) Description() string {
	return "Read a file from the workspace with optional offset and byte limit."
}

// Category classifies this tool for policy and routing decisions.
func (t *ReadTool) Category() toolregistry.Category {
	return toolregistry.CategoryFilesystem
}

// Schema returns the JSON schema for the tool parameters.
func (t *ReadTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file (relative to workspace).",
			},
			"offset": map[string]interface{}{
				"type":        "integer",
				"description": "Byte offset to start reading from (default: 0).",
				"minimum":     0,
			},
			"max_bytes": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum bytes to read (capped by tool default).",
				"minimum":     0,
			},
		},
		"required": []string{"path"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute reads a file with safety limits.
func (t *ReadTool) Execute(ctx context.Context, params json.RawMessage) (*toolregistry.Result, error) {
	var input struct {
		Path     string `json:"path"`
		Offset   int64  `json:"offset"`
		MaxBytes int    `json:"max_bytes"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return toolError("path is required"), nil
	}
	if input.Offset < 0 {
		return toolError("offset must be >= 0"), nil
	}

	resolved, err := t.validator.Validate(input.Path, sandbox.ModeRead)
	if err != nil {
		return toolError(err.Error()), nil
	}

	file, err := os.Open(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("open file: %v", err)), nil
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return toolError(fmt.Sprintf("stat file: %v", err)), nil
	}

	if input.Offset > 0 {
		if _, err := file.Seek(input.Offset, io.SeekStart); err != nil {
			return toolError(fmt.Sprintf("seek file: %v", err)), nil
		}
	}

	limit := t.maxReadLen
	if input.MaxBytes > 0 && input.MaxBytes < limit {
		limit = input.MaxBytes
	}

	remaining := int64(limit)
	if size := info.Size(); size > 0 {
		remaining = size - input.Offset
		if remaining < 0 {
			remaining = 0
		}
		if remaining > int64(limit) {
			remaining = int64(limit)
		}
	}

	buf, err := io.ReadAll(io.LimitReader(file, remaining))
	if err != nil {
		return toolError(fmt.Sprintf("read file: %v", err)), nil
	}

	truncated := false
	if info.Size() > 0 && input.Offset+int64(len(buf)) < info.Size() {
		truncated = true
	}

	result := map[string]interface{}{
		"path":      input.Path,
		"content":   string(buf),
		"offset":    input.Offset,
		"bytes":     len(buf),
		"truncated": truncated,
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}

	return &toolregistry.Result{Content: string(payload)}, nil
}

func toolError(message string) *toolregistry.Result {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &toolregistry.Result{Content: message, IsError: true}
	}
	return &toolregistry.Result{Content: string(payload), IsError: true}
}
