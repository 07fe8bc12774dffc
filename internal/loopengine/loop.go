package loopengine

import (
	"context"
	"fmt"
	"time"

	"github.com/rexlunae/agentgw/internal/provideradapter"
	"github.com/rexlunae/agentgw/internal/toolregistry"
	"github.com/rexlunae/agentgw/pkg/models"
)

// Engine drives one provider through repeated tool-calling rounds.
type Engine struct {
	provider  provideradapter.LLMProvider
	tools     *toolregistry.Registry
	compactor *Compactor
	config    Config
}

// New builds an Engine. A nil tools registry is treated as empty.
func New(provider provideradapter.LLMProvider, tools *toolregistry.Registry, config Config) *Engine {
	if tools == nil {
		tools = toolregistry.New()
	}
	cfg := config.withDefaults()
	return &Engine{
		provider:  provider,
		tools:     tools,
		compactor: NewCompactor(provider, cfg),
		config:    cfg,
	}
}

// Run streams one turn to completion: repeated provider round trips with
// sequential tool dispatch between them, until the model stops calling
// tools, the round budget is exhausted, or an unrecoverable provider error
// occurs. The returned channel is closed when the run ends; the caller
// should drain it before inspecting any accompanying error.
func (e *Engine) Run(ctx context.Context, req Request) (<-chan *Chunk, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("loopengine: no provider configured")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("loopengine: request has no messages")
	}

	out := make(chan *Chunk, 16)

	go func() {
		defer close(out)

		messages := append([]provideradapter.CompletionMessage(nil), req.Messages...)
		var finalText string
		round := 0

		for {
			select {
			case <-ctx.Done():
				out <- &Chunk{Error: ctx.Err()}
				return
			default:
			}

			if round >= e.config.MaxToolRounds {
				out <- &Chunk{
					Text:            finalText,
					ExhaustedRounds: true,
					Done:            true,
					Note:            exhaustionNote(e.config.MaxToolRounds),
				}
				return
			}

			compacted, info, err := e.compactor.MaybeCompact(ctx, req.Model, messages)
			if err != nil {
				out <- &Chunk{Error: fmt.Errorf("compaction: %w", err)}
				return
			}
			if info != nil {
				messages = compacted
				out <- &Chunk{Compaction: info}
			}

			text, toolCalls, err := e.streamRound(ctx, req, messages, out)
			if err != nil {
				out <- &Chunk{Error: err}
				return
			}
			finalText = text

			if len(toolCalls) == 0 {
				out <- &Chunk{Text: "", Done: true}
				return
			}

			messages = append(messages, assistantMessage(text, toolCalls))

			results := e.executeToolsSequentially(ctx, toolCalls, out)
			messages = append(messages, toolResultMessage(results))

			round++
		}
	}()

	return out, nil
}

// streamRound issues one completion request and drains it, returning the
// accumulated text and any tool calls the model made.
func (e *Engine) streamRound(ctx context.Context, req Request, messages []provideradapter.CompletionMessage, out chan<- *Chunk) (string, []models.ToolCall, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = e.config.MaxTokens
	}

	completionReq := &provideradapter.CompletionRequest{
		Model:     req.Model,
		System:    req.System,
		Messages:  messages,
		Tools:     e.tools.List(),
		MaxTokens: maxTokens,
	}

	chunks, err := e.provider.Complete(ctx, completionReq)
	if err != nil {
		return "", nil, err
	}

	var text string
	var toolCalls []models.ToolCall
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", nil, chunk.Error
		}
		if chunk.Text != "" {
			text += chunk.Text
			out <- &Chunk{Text: chunk.Text}
		}
		if chunk.ToolCall != nil {
			toolCalls = append(toolCalls, *chunk.ToolCall)
		}
	}

	return text, toolCalls, nil
}

// executeToolsSequentially dispatches tool calls one at a time, in their
// declared order, since a later call may depend on an earlier one's
// side effects (§ ordering invariant).
func (e *Engine) executeToolsSequentially(ctx context.Context, calls []models.ToolCall, out chan<- *Chunk) []models.ToolResult {
	results := make([]models.ToolResult, len(calls))

	for i, tc := range calls {
		out <- &Chunk{ToolEvent: &models.ToolEvent{
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Stage:      models.ToolEventRequested,
			Input:      tc.Input,
		}}

		started := time.Now()
		out <- &Chunk{ToolEvent: &models.ToolEvent{
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Stage:      models.ToolEventStarted,
			StartedAt:  started,
		}}

		res, err := e.tools.Execute(ctx, tc.Name, tc.Input)
		finished := time.Now()

		if err != nil {
			results[i] = models.ToolResult{ToolCallID: tc.ID, Content: err.Error(), IsError: true}
			out <- &Chunk{ToolEvent: &models.ToolEvent{
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				Stage:      models.ToolEventFailed,
				Error:      err.Error(),
				StartedAt:  started,
				FinishedAt: finished,
			}}
			continue
		}

		results[i] = models.ToolResult{ToolCallID: tc.ID, Content: res.Content, IsError: res.IsError}
		stage := models.ToolEventSucceeded
		if res.IsError {
			stage = models.ToolEventFailed
		}
		ev := &models.ToolEvent{
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Stage:      stage,
			Output:     res.Content,
			StartedAt:  started,
			FinishedAt: finished,
		}
		if res.IsError {
			ev.Error = res.Content
		}
		out <- &Chunk{ToolEvent: ev}
	}

	return results
}

// assistantMessage builds the assistant turn to append to history: the
// round's accumulated text plus its tool calls as tool_use blocks.
func assistantMessage(text string, calls []models.ToolCall) provideradapter.CompletionMessage {
	content := provideradapter.Content{Text: text}
	for i := range calls {
		tc := calls[i]
		content.Blocks = append(content.Blocks, provideradapter.Block{
			Kind:     provideradapter.BlockToolUse,
			ToolCall: &tc,
		})
	}
	return provideradapter.CompletionMessage{Role: "assistant", Content: content}
}

// toolResultMessage builds the tool-result turn to append to history.
func toolResultMessage(results []models.ToolResult) provideradapter.CompletionMessage {
	var content provideradapter.Content
	for i := range results {
		r := results[i]
		content.Blocks = append(content.Blocks, provideradapter.Block{
			Kind:       provideradapter.BlockToolResult,
			ToolResult: &r,
		})
	}
	return provideradapter.CompletionMessage{Role: "tool", Content: content}
}
