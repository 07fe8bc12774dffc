package loopengine

import (
	"context"
	"fmt"

	"github.com/rexlunae/agentgw/internal/compaction"
	"github.com/rexlunae/agentgw/internal/provideradapter"
)

// CompactionInfo is surfaced to the transport layer as an info frame whenever
// a Run rebuilds history.
type CompactionInfo struct {
	DroppedMessages int
	KeptTokens      int
	Summary         string
}

// Compactor rebuilds an over-long message history into
// [system, synthetic summary, ...recent tail] once the history's estimated
// token count exceeds a threshold, summarizing the omitted middle with a
// dedicated, tool-free call to the same provider. Built on
// internal/compaction's token estimation, history pruning and summary
// formatting helpers.
type Compactor struct {
	provider provideradapter.LLMProvider
	config   Config
}

// NewCompactor builds a Compactor for the given provider and config.
func NewCompactor(provider provideradapter.LLMProvider, config Config) *Compactor {
	return &Compactor{provider: provider, config: config.withDefaults()}
}

// MaybeCompact checks the estimated size of all messages (a leading system
// message included) against the configured threshold, and rebuilds history
// if it is exceeded; the leading system message is always preserved. It returns the
// (possibly unchanged) message slice and nil info if no compaction ran.
func (c *Compactor) MaybeCompact(ctx context.Context, model string, messages []provideradapter.CompletionMessage) ([]provideradapter.CompletionMessage, *CompactionInfo, error) {
	if c.config.CompactionThresholdTokens <= 0 || len(messages) == 0 {
		return messages, nil, nil
	}

	compactMsgs := toCompactionMessages(messages)
	total := compaction.EstimateMessagesTokens(compactMsgs)
	if total <= c.config.CompactionThresholdTokens {
		return messages, nil, nil
	}

	// Never touch a leading system message; only the remainder is a
	// candidate for the recent-tail/summarized-middle split.
	head := 0
	if len(messages) > 0 && messages[0].Role == "system" {
		head = 1
	}
	body := messages[head:]
	bodyCompact := compactMsgs[head:]

	pruned := compaction.PruneHistoryForContextShare(bodyCompact, c.config.CompactionThresholdTokens, c.config.CompactionTargetRatio, compaction.DefaultParts)

	keptCount := len(pruned.Messages)
	droppedCount := len(body) - keptCount
	if droppedCount <= 0 {
		return messages, nil, nil
	}
	omitted := body[:droppedCount]
	tail := body[droppedCount:]

	summaryModel := c.config.SummaryModel
	if summaryModel == "" {
		summaryModel = model
	}

	summary, err := c.summarize(ctx, summaryModel, omitted)
	if err != nil {
		return nil, nil, fmt.Errorf("compaction summarize: %w", err)
	}

	rebuilt := make([]provideradapter.CompletionMessage, 0, head+1+len(tail))
	rebuilt = append(rebuilt, messages[:head]...)
	rebuilt = append(rebuilt, provideradapter.CompletionMessage{
		Role:    "assistant",
		Content: provideradapter.TextContent(summary),
	})
	rebuilt = append(rebuilt, tail...)

	return rebuilt, &CompactionInfo{
		DroppedMessages: droppedCount,
		KeptTokens:      pruned.KeptTokens,
		Summary:         summary,
	}, nil
}

// summarize runs a single, tool-free completion request asking the provider
// to summarize the omitted portion of history.
func (c *Compactor) summarize(ctx context.Context, model string, omitted []provideradapter.CompletionMessage) (string, error) {
	if len(omitted) == 0 {
		return compaction.DefaultSummaryFallback, nil
	}

	prompt := compaction.FormatMessagesForSummary(toCompactionMessages(omitted))
	req := &provideradapter.CompletionRequest{
		Model:  model,
		System: "Summarize the following conversation history concisely, preserving durable facts, decisions, and outstanding work. Do not call any tools.",
		Messages: []provideradapter.CompletionMessage{
			{Role: "user", Content: provideradapter.TextContent(prompt)},
		},
		MaxTokens: 1024,
	}

	chunks, err := c.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	var out string
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		out += chunk.Text
	}
	if out == "" {
		return compaction.DefaultSummaryFallback, nil
	}
	return out, nil
}

func toCompactionMessages(messages []provideradapter.CompletionMessage) []*compaction.Message {
	out := make([]*compaction.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, &compaction.Message{
			Role:    m.Role,
			Content: m.Content.FlatText(),
		})
	}
	return out
}
