package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rexlunae/agentgw/internal/toolregistry"
)

// ExecTool runs shell commands. A command without a background flag yields
// to a background session after DefaultYieldDeadline rather than blocking
// the tool loop indefinitely (§4.C "Yield-to-background").
type ExecTool struct {
	name    string
	manager *Manager
}

// NewExecTool creates an exec tool with the given name.
func NewExecTool(name string, manager *Manager) *ExecTool {
	if strings.TrimSpace(name) == "" {
		name = "exec"
	}
	return &ExecTool{name: name, manager: manager}
}

func (t *ExecTool) Name() string { return t.name }

func (t *ExecTool) Category() toolregistry.Category { return toolregistry.CategoryExec }

func (t *ExecTool) Description() string {
	return "Run a shell command in the workspace. Long-running commands yield to a background session instead of blocking; pass background=true to start one directly."
}

func (t *ExecTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Shell command to execute.",
			},
			"cwd": map[string]interface{}{
				"type":        "string",
				"description": "Working directory (relative to workspace).",
			},
			"env": map[string]interface{}{
				"type":        "object",
				"description": "Environment overrides (string values).",
			},
			"input": map[string]interface{}{
				"type":        "string",
				"description": "Stdin content to pass to the command.",
			},
			"timeout_seconds": map[string]interface{}{
				"type":        "integer",
				"description": "Timeout in seconds (0 = no timeout).",
				"minimum":     0,
			},
			"background": map[string]interface{}{
				"type":        "boolean",
				"description": "Start directly as a background session and return its id.",
			},
		},
		"required": []string{"command"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *ExecTool) Execute(ctx context.Context, params json.RawMessage) (*toolregistry.Result, error) {
	if t.manager == nil {
		return toolError("exec manager unavailable"), nil
	}
	var input struct {
		Command        string            `json:"command"`
		Cwd            string            `json:"cwd"`
		Env            map[string]string `json:"env"`
		Input          string            `json:"input"`
		TimeoutSeconds int               `json:"timeout_seconds"`
		Background     bool              `json:"background"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	command := strings.TrimSpace(input.Command)
	if command == "" {
		return toolError("command is required"), nil
	}

	timeout := time.Duration(input.TimeoutSeconds) * time.Second

	if input.Background {
		sess, err := t.manager.SpawnBackground(ctx, command, input.Cwd, input.Env, timeout)
		if err != nil {
			return toolError(err.Error()), nil
		}
		if input.Input != "" {
			_ = t.manager.Write(sess.ID, []byte(input.Input))
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{
			"status":     "running",
			"process_id": sess.ID,
		}, "", "  ")
		return &toolregistry.Result{Content: string(payload)}, nil
	}

	if input.Input == "" {
		fg, handoff, err := t.manager.ExecuteYielding(ctx, command, input.Cwd, 0, timeout)
		if err != nil {
			return toolError(err.Error()), nil
		}
		if handoff != nil {
			payload, _ := json.MarshalIndent(map[string]interface{}{
				"status":     "running",
				"process_id": handoff.SessionID,
			}, "", "  ")
			return &toolregistry.Result{Content: string(payload)}, nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{
			"stdout":    fg.Stdout,
			"exit_code": fg.ExitCode,
			"status":    fg.Status,
		}, "", "  ")
		return &toolregistry.Result{Content: string(payload)}, nil
	}

	result, err := t.manager.RunCommand(ctx, command, input.Cwd, input.Env, input.Input, timeout)
	if err != nil {
		return toolError(err.Error()), nil
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &toolregistry.Result{Content: string(payload)}, nil
}

// ProcessTool inspects and manages background exec sessions.
type ProcessTool struct {
	manager *Manager
}

// NewProcessTool creates a process tool.
func NewProcessTool(manager *Manager) *ProcessTool {
	return &ProcessTool{manager: manager}
}

func (t *ProcessTool) Name() string { return "process" }

func (t *ProcessTool) Category() toolregistry.Category { return toolregistry.CategoryExec }

func (t *ProcessTool) Description() string {
	return "Manage background exec sessions (list, status, log, write, send_keys, kill, remove)."
}

func (t *ProcessTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"description": "Action: list, status, log, write, send_keys, kill, remove.",
			},
			"process_id": map[string]interface{}{
				"type":        "string",
				"description": "Process id for actions that target a process.",
			},
			"input": map[string]interface{}{
				"type":        "string",
				"description": "Input for the write action.",
			},
			"keys": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Named keys (Enter, Ctrl-C, Ctrl-D, Tab, Escape) or literal text for send_keys.",
			},
			"offset": map[string]interface{}{
				"type":        "integer",
				"description": "Line offset for the log action (0 = start, -1 = tail).",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum lines returned by the log action.",
			},
		},
		"required": []string{"action"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *ProcessTool) Execute(ctx context.Context, params json.RawMessage) (*toolregistry.Result, error) {
	_ = ctx
	if t.manager == nil {
		return toolError("process manager unavailable"), nil
	}
	var input struct {
		Action    string   `json:"action"`
		ProcessID string   `json:"process_id"`
		Input     string   `json:"input"`
		Keys      []string `json:"keys"`
		Offset    int      `json:"offset"`
		Limit     int      `json:"limit"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	action := strings.ToLower(strings.TrimSpace(input.Action))
	if action == "" {
		return toolError("action is required"), nil
	}

	if action == "list" {
		payload, _ := json.MarshalIndent(map[string]interface{}{"processes": t.manager.List()}, "", "  ")
		return &toolregistry.Result{Content: string(payload)}, nil
	}

	id := strings.TrimSpace(input.ProcessID)
	if id == "" {
		return toolError("process_id is required"), nil
	}

	switch action {
	case "status":
		_, status, err := t.manager.Poll(id)
		if err != nil {
			return toolError(err.Error()), nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{"status": status}, "", "  ")
		return &toolregistry.Result{Content: string(payload)}, nil
	case "log":
		output, err := t.manager.Log(id, input.Offset, input.Limit)
		if err != nil {
			return toolError(err.Error()), nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{"output": output}, "", "  ")
		return &toolregistry.Result{Content: string(payload)}, nil
	case "write":
		if input.Input == "" {
			return toolError("input is required"), nil
		}
		if err := t.manager.Write(id, []byte(input.Input)); err != nil {
			return toolError(fmt.Sprintf("write stdin: %v", err)), nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{"status": "written"}, "", "  ")
		return &toolregistry.Result{Content: string(payload)}, nil
	case "send_keys":
		if len(input.Keys) == 0 {
			return toolError("keys is required"), nil
		}
		if err := t.manager.SendKeys(id, input.Keys); err != nil {
			return toolError(fmt.Sprintf("send keys: %v", err)), nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{"status": "sent"}, "", "  ")
		return &toolregistry.Result{Content: string(payload)}, nil
	case "kill":
		if err := t.manager.Kill(id); err != nil {
			return toolError(fmt.Sprintf("kill process: %v", err)), nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{"status": "killed"}, "", "  ")
		return &toolregistry.Result{Content: string(payload)}, nil
	case "remove":
		if !t.manager.Remove(id) {
			return toolError("remove failed"), nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{"status": "removed"}, "", "  ")
		return &toolregistry.Result{Content: string(payload)}, nil
	}
	return toolError("unsupported action"), nil
}

func toolError(message string) *toolregistry.Result {
	payload, _ := json.Marshal(map[string]string{"error": message})
	return &toolregistry.Result{Content: string(payload), IsError: true}
}
