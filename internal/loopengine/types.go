// Package loopengine drives the tool-calling round trip between a provider
// adapter and the tool registry: stream a completion, dispatch any tool
// calls in declared order, append both turns back into history in the
// dialect the provider expects, and repeat until the model stops calling
// tools or the round budget runs out.
package loopengine

import (
	"github.com/rexlunae/agentgw/internal/provideradapter"
	"github.com/rexlunae/agentgw/pkg/models"
)

// DefaultMaxToolRounds bounds how many provider round trips a single Run
// may make before it is forced to terminate.
const DefaultMaxToolRounds = 25

// DefaultMaxTokens is the default response budget passed to the provider
// when a Run does not override it.
const DefaultMaxTokens = 4096

// DefaultCompactionTargetRatio is the fraction of the context limit the
// retained tail is rebuilt down to once compaction triggers.
const DefaultCompactionTargetRatio = 0.4

// Config configures one Engine's round and compaction behavior.
type Config struct {
	// MaxToolRounds bounds the number of provider round trips per Run.
	MaxToolRounds int

	// MaxTokens is the response token budget sent with every completion
	// request, unless a call overrides it.
	MaxTokens int

	// CompactionThresholdTokens triggers a compaction pass once the
	// estimated history size exceeds it. Zero disables compaction.
	CompactionThresholdTokens int

	// CompactionTargetRatio is the fraction of CompactionThresholdTokens the
	// retained tail is rebuilt down to.
	CompactionTargetRatio float64

	// SummaryModel overrides the model used for the compaction summarization
	// pass. Empty reuses the Run's own model.
	SummaryModel string
}

func (c Config) withDefaults() Config {
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = DefaultMaxToolRounds
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.CompactionTargetRatio <= 0 {
		c.CompactionTargetRatio = DefaultCompactionTargetRatio
	}
	return c
}

// Chunk is one unit of streamed Run output. A text, tool-event or compaction
// chunk carries only that field; Done marks the final chunk, which after
// round exhaustion also carries ExhaustedRounds, Note and the last round's text.
type Chunk struct {
	Text            string
	ToolEvent       *models.ToolEvent
	Compaction      *CompactionInfo
	Done            bool
	ExhaustedRounds bool
	// Note carries a synthetic, system-visible annotation (e.g. the round
	// exhaustion notice) that the transport should record alongside the
	// turn but never feed back to the model as conversation history.
	Note string
	Error error
}

// Request describes one Run's input: message history with the new turn
// already appended, and the provider parameters to use for it.
type Request struct {
	Model     string
	System    string
	Messages  []provideradapter.CompletionMessage
	MaxTokens int
}

// Result is the terminal state of a Run: the accumulated final-response
// text and the updated message history (including every assistant/tool
// turn appended during the run), ready to persist.
type Result struct {
	Text            string
	Messages        []provideradapter.CompletionMessage
	Rounds          int
	ExhaustedRounds bool
}
