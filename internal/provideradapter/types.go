// Package provideradapter unifies LLM backend integrations (OpenAI, Anthropic,
// Google, Bedrock) behind a single streaming interface, so the loop engine
// never needs to know which dialect answered a request.
package provideradapter

import (
	"context"

	"github.com/rexlunae/agentgw/internal/toolregistry"
	"github.com/rexlunae/agentgw/pkg/models"
)

// LLMProvider is the interface every dialect adapter implements. It replaces
// the two near-identical copies the teacher carried in
// internal/agent/provider_types.go and internal/agent/runtime.go with one
// definition.
type LLMProvider interface {
	// Complete sends a prompt and returns a channel of streamed chunks.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider's identifier (e.g. "openai", "anthropic").
	Name() string

	// Models lists the models this provider exposes.
	Models() []Model

	// SupportsTools reports whether this provider can receive tool schemas.
	SupportsTools() bool
}

// CompletionRequest carries everything needed to ask a provider for a
// completion: history, system prompt, available tools, and generation knobs.
type CompletionRequest struct {
	Model                string                `json:"model"`
	System               string                `json:"system,omitempty"`
	Messages             []CompletionMessage   `json:"messages"`
	Tools                []toolregistry.Tool   `json:"-"`
	MaxTokens            int                   `json:"max_tokens,omitempty"`
	EnableThinking       bool                  `json:"enable_thinking,omitempty"`
	ThinkingBudgetTokens int                   `json:"thinking_budget_tokens,omitempty"`
}

// CompletionMessage is one turn of the conversation. Content carries either
// plain text or a mix of typed blocks (text, tool use, tool result, image) —
// see content.go — so dialect adapters stop sniffing strings for structure.
type CompletionMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// CompletionChunk is one piece of a streamed response.
type CompletionChunk struct {
	Text         string          `json:"text,omitempty"`
	ToolCall     *models.ToolCall `json:"tool_call,omitempty"`
	Done         bool            `json:"done,omitempty"`
	Error        error           `json:"-"`
	Thinking     string          `json:"thinking,omitempty"`
	ThinkingStart bool           `json:"thinking_start,omitempty"`
	ThinkingEnd  bool            `json:"thinking_end,omitempty"`
	InputTokens  int             `json:"input_tokens,omitempty"`
	OutputTokens int             `json:"output_tokens,omitempty"`
}

// Model describes one model a provider exposes.
type Model struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ContextSize    int    `json:"context_size"`
	SupportsVision bool   `json:"supports_vision"`
	SupportsTools  bool   `json:"supports_tools"`
}
