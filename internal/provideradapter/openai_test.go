package provideradapter

import (
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func intPtr(i int) *int { return &i }

func TestOpenAIChunkAccumulatorTextDelta(t *testing.T) {
	acc := newOpenAIChunkAccumulator()
	out := acc.Ingest(openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{
			{Delta: openai.ChatCompletionStreamChoiceDelta{Content: "hello"}},
		},
	})
	if len(out) != 1 || out[0].Text != "hello" {
		t.Fatalf("expected single text chunk, got %+v", out)
	}
}

func TestOpenAIChunkAccumulatorAssemblesToolCallAcrossDeltas(t *testing.T) {
	acc := newOpenAIChunkAccumulator()

	acc.Ingest(openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{{
			Delta: openai.ChatCompletionStreamChoiceDelta{
				ToolCalls: []openai.ToolCall{{
					Index:    intPtr(0),
					ID:       "call_1",
					Function: openai.FunctionCall{Name: "search"},
				}},
			},
		}},
	})
	acc.Ingest(openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{{
			Delta: openai.ChatCompletionStreamChoiceDelta{
				ToolCalls: []openai.ToolCall{{
					Index:    intPtr(0),
					Function: openai.FunctionCall{Arguments: `{"query":"go"}`},
				}},
			},
		}},
	})

	out := acc.Ingest(openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{{FinishReason: "tool_calls"}},
	})

	if len(out) != 1 {
		t.Fatalf("expected one assembled tool call, got %d", len(out))
	}
	tc := out[0].ToolCall
	if tc.ID != "call_1" || tc.Name != "search" {
		t.Fatalf("unexpected tool call: %+v", tc)
	}
	var args map[string]string
	if err := json.Unmarshal(tc.Input, &args); err != nil {
		t.Fatalf("tool call input not valid JSON: %v", err)
	}
	if args["query"] != "go" {
		t.Fatalf("unexpected tool call args: %+v", args)
	}
}

func TestOpenAIChunkAccumulatorFlushIsIdempotent(t *testing.T) {
	acc := newOpenAIChunkAccumulator()
	acc.Ingest(openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{{
			Delta: openai.ChatCompletionStreamChoiceDelta{
				ToolCalls: []openai.ToolCall{{Index: intPtr(0), ID: "call_1", Function: openai.FunctionCall{Name: "x", Arguments: "{}"}}},
			},
			FinishReason: "tool_calls",
		}},
	})
	if out := acc.Flush(); len(out) != 0 {
		t.Fatalf("expected Flush after tool_calls finish to emit nothing new, got %+v", out)
	}
}

func TestOpenAIChunkAccumulatorTracksUsage(t *testing.T) {
	acc := newOpenAIChunkAccumulator()
	acc.Ingest(openai.ChatCompletionStreamResponse{
		Usage: &openai.Usage{PromptTokens: 10, CompletionTokens: 20},
	})
	if acc.inputTokens != 10 || acc.outputTokens != 20 {
		t.Fatalf("expected usage tracked, got input=%d output=%d", acc.inputTokens, acc.outputTokens)
	}
}
