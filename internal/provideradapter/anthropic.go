package provideradapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/rexlunae/agentgw/internal/retryengine"
	"github.com/rexlunae/agentgw/internal/toolregistry"
	"github.com/rexlunae/agentgw/pkg/models"
)

// maxEmptyStreamEvents bounds consecutive content-free SSE events before the
// stream is treated as malformed and aborted.
const maxEmptyStreamEvents = 50

// AnthropicProvider implements LLMProvider for Anthropic's Messages API.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	policy       retryengine.Policy
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewAnthropicProvider builds a provider from config, applying a default
// model when none is given.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		policy:       retryengine.DefaultPolicy(),
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Models() []Model {
	return []Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000, SupportsVision: true, SupportsTools: true},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextSize: 200000, SupportsVision: true, SupportsTools: true},
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", ContextSize: 200000, SupportsVision: true, SupportsTools: true},
		{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku", ContextSize: 200000, SupportsVision: true, SupportsTools: true},
	}
}

func (p *AnthropicProvider) SupportsTools() bool { return true }

func (p *AnthropicProvider) model(req *CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

func (p *AnthropicProvider) maxTokens(req *CompletionRequest) int64 {
	if req.MaxTokens > 0 {
		return int64(req.MaxTokens)
	}
	return 4096
}

// Complete opens a Messages streaming request. Stream creation is retried
// under retryengine; once events start arriving they are forwarded as-is,
// since a partially-streamed response can't be safely replayed.
func (p *AnthropicProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	chunks := make(chan *CompletionChunk)
	model := p.model(req)

	go func() {
		defer close(chunks)

		result, err := retryengine.Run(
			ctx, p.policy, retryengine.MaxAttempts,
			func(ctx context.Context, attempt int) (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
				return p.createStream(ctx, req, model)
			},
			func(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], err error) retryengine.Decision {
				if err == nil {
					return retryengine.Decision{}
				}
				return retryengine.ClassifyError(err)
			},
			nil, nil,
		)
		if err != nil {
			chunks <- &CompletionChunk{Error: NewProviderError("anthropic", model, err)}
			return
		}

		p.processStream(result.Value, chunks, model)
	}()

	return chunks, nil
}

func (p *AnthropicProvider) createStream(ctx context.Context, req *CompletionRequest, model string) (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
	messages, err := convertAnthropicMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: p.maxTokens(req),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	if len(req.Tools) > 0 {
		tools, err := toolregistry.ToAnthropicTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("convert tools: %w", err)
		}
		params.Tools = tools
	}

	if req.EnableThinking {
		budget := int64(req.ThinkingBudgetTokens)
		if budget < 1024 {
			budget = 10000
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}

	return p.client.Messages.NewStreaming(ctx, params), nil
}

func (p *AnthropicProvider) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- *CompletionChunk, model string) {
	var currentToolCall *models.ToolCall
	var currentToolInput strings.Builder
	emptyEvents := 0
	inThinking := false
	var inputTokens, outputTokens int

	for stream.Next() {
		event := stream.Current()
		processed := false

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}
			processed = true

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			switch block.Type {
			case "thinking":
				inThinking = true
				chunks <- &CompletionChunk{ThinkingStart: true}
				processed = true
			case "tool_use":
				toolUse := block.AsToolUse()
				currentToolCall = &models.ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				currentToolInput.Reset()
				processed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					chunks <- &CompletionChunk{Text: delta.Text}
					processed = true
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					chunks <- &CompletionChunk{Thinking: delta.Thinking}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					currentToolInput.WriteString(delta.PartialJSON)
					processed = true
				}
			}

		case "content_block_stop":
			if inThinking {
				chunks <- &CompletionChunk{ThinkingEnd: true}
				inThinking = false
				processed = true
			} else if currentToolCall != nil {
				currentToolCall.Input = json.RawMessage(currentToolInput.String())
				chunks <- &CompletionChunk{ToolCall: currentToolCall}
				currentToolCall = nil
				processed = true
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
			processed = true

		case "message_stop":
			chunks <- &CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
			return

		case "error":
			chunks <- &CompletionChunk{Error: NewProviderError("anthropic", model, errors.New("stream error"))}
			return
		}

		if processed {
			emptyEvents = 0
		} else if emptyEvents++; emptyEvents >= maxEmptyStreamEvents {
			chunks <- &CompletionChunk{Error: NewProviderError("anthropic", model,
				fmt.Errorf("stream appears malformed: %d consecutive empty events", emptyEvents))}
			return
		}
	}

	if err := stream.Err(); err != nil {
		chunks <- &CompletionChunk{Error: NewProviderError("anthropic", model, err)}
	}
}

func convertAnthropicMessages(messages []CompletionMessage) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var blocks []anthropic.ContentBlockParamUnion
		if text := msg.Content.FlatText(); text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(text))
		}
		for _, tr := range msg.Content.ToolResults() {
			blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
		}
		for _, tc := range msg.Content.ToolCalls() {
			var input map[string]any
			if err := json.Unmarshal(tc.Input, &input); err != nil {
				return nil, fmt.Errorf("invalid tool call input: %w", err)
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}

		var message anthropic.MessageParam
		if msg.Role == "assistant" {
			message = anthropic.NewAssistantMessage(blocks...)
		} else {
			message = anthropic.NewUserMessage(blocks...)
		}
		result = append(result, message)
	}

	return result, nil
}
