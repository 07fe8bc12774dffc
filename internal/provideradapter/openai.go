package provideradapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rexlunae/agentgw/internal/retryengine"
	"github.com/rexlunae/agentgw/internal/toolregistry"
	"github.com/rexlunae/agentgw/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements LLMProvider for OpenAI's Chat Completions API.
type OpenAIProvider struct {
	client *openai.Client
	apiKey string
	policy retryengine.Policy
}

// NewOpenAIProvider creates an OpenAI provider. An empty apiKey produces a
// provider whose Complete always fails, so misconfiguration surfaces at call
// time rather than at startup.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	p := &OpenAIProvider{apiKey: apiKey, policy: retryengine.DefaultPolicy()}
	if apiKey != "" {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Models() []Model {
	return []Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000, SupportsVision: true, SupportsTools: true},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000, SupportsVision: true, SupportsTools: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextSize: 128000, SupportsVision: true, SupportsTools: true},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextSize: 16385, SupportsTools: true},
	}
}

func (p *OpenAIProvider) SupportsTools() bool { return true }

// Complete opens a streaming chat completion. Opening the stream is retried
// under retryengine's symmetric-jitter backoff; once a stream is open,
// mid-stream errors are surfaced as a final chunk rather than retried, since
// partially-delivered text can't be safely replayed.
func (p *OpenAIProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	if p.client == nil {
		return nil, NewProviderError("openai", req.Model, errors.New("openai API key not configured"))
	}

	messages, err := convertOpenAIMessages(req.Messages, req.System)
	if err != nil {
		return nil, fmt.Errorf("convert messages: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toolregistry.ToOpenAITools(req.Tools)
	}

	result, err := retryengine.Run(
		ctx, p.policy, retryengine.MaxAttempts,
		func(ctx context.Context, attempt int) (*openai.ChatCompletionStream, error) {
			return p.client.CreateChatCompletionStream(ctx, chatReq)
		},
		func(stream *openai.ChatCompletionStream, err error) retryengine.Decision {
			if err == nil {
				return retryengine.Decision{}
			}
			return retryengine.ClassifyError(err)
		},
		nil,
		nil,
	)
	if err != nil {
		return nil, NewProviderError("openai", req.Model, err)
	}

	chunks := make(chan *CompletionChunk)
	go p.processStream(result.Value, chunks)
	return chunks, nil
}

func (p *OpenAIProvider) processStream(stream *openai.ChatCompletionStream, chunks chan<- *CompletionChunk) {
	defer close(chunks)
	defer stream.Close()

	acc := newOpenAIChunkAccumulator()
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			for _, c := range acc.Flush() {
				chunks <- c
			}
			chunks <- &CompletionChunk{Done: true, InputTokens: acc.inputTokens, OutputTokens: acc.outputTokens}
			return
		}
		if err != nil {
			chunks <- &CompletionChunk{Error: NewProviderError("openai", "", err)}
			return
		}
		for _, c := range acc.Ingest(resp) {
			chunks <- c
		}
	}
}

// openAIChunkAccumulator reassembles an OpenAI-shaped chat-completion delta
// stream into CompletionChunks, tracking tool-call fragments across
// multiple deltas by their index until a name and complete argument string
// are available. Shared by OpenAIProvider (reading from the go-openai SDK's
// own stream) and BedrockProvider (reading raw OpenAI-shaped event-stream
// frames from an OpenAI-compatible Bedrock gateway).
type openAIChunkAccumulator struct {
	pending                  map[int]*openAIPendingCall
	order                    []int
	inputTokens, outputTokens int
}

type openAIPendingCall struct {
	id, name, args string
	emitted        bool
}

func newOpenAIChunkAccumulator() *openAIChunkAccumulator {
	return &openAIChunkAccumulator{pending: map[int]*openAIPendingCall{}}
}

// Ingest processes one decoded streaming response, returning any chunks it
// produces. Tool calls are emitted once, when the response's finish_reason
// marks them complete.
func (a *openAIChunkAccumulator) Ingest(resp openai.ChatCompletionStreamResponse) []*CompletionChunk {
	var out []*CompletionChunk

	if resp.Usage != nil {
		a.inputTokens = resp.Usage.PromptTokens
		a.outputTokens = resp.Usage.CompletionTokens
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	delta := choice.Delta

	if delta.Content != "" {
		out = append(out, &CompletionChunk{Text: delta.Content})
	}

	for _, tc := range delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		pc, ok := a.pending[idx]
		if !ok {
			pc = &openAIPendingCall{}
			a.pending[idx] = pc
			a.order = append(a.order, idx)
		}
		if tc.ID != "" {
			pc.id = tc.ID
		}
		if tc.Function.Name != "" {
			pc.name = tc.Function.Name
		}
		pc.args += tc.Function.Arguments
	}

	if choice.FinishReason == "tool_calls" {
		out = append(out, a.Flush()...)
	}

	return out
}

// Flush emits any tool calls accumulated so far that haven't been emitted
// yet, called both on an explicit tool_calls finish reason and on stream EOF.
func (a *openAIChunkAccumulator) Flush() []*CompletionChunk {
	var out []*CompletionChunk
	for _, idx := range a.order {
		pc := a.pending[idx]
		if pc == nil || pc.emitted || pc.name == "" {
			continue
		}
		pc.emitted = true
		out = append(out, &CompletionChunk{ToolCall: &models.ToolCall{
			ID:    pc.id,
			Name:  pc.name,
			Input: json.RawMessage(pc.args),
		}})
	}
	return out
}

func convertOpenAIMessages(msgs []CompletionMessage, system string) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, m := range msgs {
		switch m.Role {
		case "tool":
			for _, tr := range m.Content.ToolResults() {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
		case "assistant":
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content.FlatText()}
			for _, tc := range m.Content.ToolCalls() {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				})
			}
			out = append(out, msg)
		default:
			parts := openAIContentParts(m.Content)
			if len(parts) == 1 && parts[0].Type == openai.ChatMessagePartTypeText {
				out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: parts[0].Text})
				continue
			}
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts})
		}
	}
	return out, nil
}

func openAIContentParts(c Content) []openai.ChatMessagePart {
	parts := []openai.ChatMessagePart{}
	if c.Text != "" {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: c.Text})
	}
	for _, b := range c.Blocks {
		switch b.Kind {
		case BlockText:
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: b.Text})
		case BlockImage:
			if b.Attachment != nil {
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: b.Attachment.URL},
				})
			}
		}
	}
	if len(parts) == 0 {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: ""})
	}
	return parts
}
