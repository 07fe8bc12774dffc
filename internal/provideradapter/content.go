package provideradapter

import "github.com/rexlunae/agentgw/pkg/models"

// BlockKind distinguishes the pieces that can appear inside a message's
// content. Every dialect adapter converts to and from this shape instead of
// sniffing a bare string for tool-call or attachment markers.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockImage      BlockKind = "image"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
)

// Block is one typed piece of message content.
type Block struct {
	Kind       BlockKind          `json:"kind"`
	Text       string             `json:"text,omitempty"`
	Attachment *models.Attachment `json:"attachment,omitempty"`
	ToolCall   *models.ToolCall   `json:"tool_call,omitempty"`
	ToolResult *models.ToolResult `json:"tool_result,omitempty"`
}

// Content is a message body: plain text, a list of typed blocks, or both.
// Most user and assistant turns are pure text; tool-bearing turns and
// vision turns populate Blocks instead.
type Content struct {
	Text   string  `json:"text,omitempty"`
	Blocks []Block `json:"blocks,omitempty"`
}

// TextContent builds a plain-text Content, the common case for user input
// and assistant replies with no tool calls or attachments.
func TextContent(text string) Content {
	return Content{Text: text}
}

// IsEmpty reports whether a message body carries no text and no blocks.
func (c Content) IsEmpty() bool {
	return c.Text == "" && len(c.Blocks) == 0
}

// ToolCalls extracts every tool_use block's ToolCall, in order.
func (c Content) ToolCalls() []models.ToolCall {
	var calls []models.ToolCall
	for _, b := range c.Blocks {
		if b.Kind == BlockToolUse && b.ToolCall != nil {
			calls = append(calls, *b.ToolCall)
		}
	}
	return calls
}

// ToolResults extracts every tool_result block's ToolResult, in order.
func (c Content) ToolResults() []models.ToolResult {
	var results []models.ToolResult
	for _, b := range c.Blocks {
		if b.Kind == BlockToolResult && b.ToolResult != nil {
			results = append(results, *b.ToolResult)
		}
	}
	return results
}

// Attachments extracts every image block's Attachment, in order.
func (c Content) Attachments() []models.Attachment {
	var atts []models.Attachment
	for _, b := range c.Blocks {
		if b.Kind == BlockImage && b.Attachment != nil {
			atts = append(atts, *b.Attachment)
		}
	}
	return atts
}

// FlatText concatenates Text with every text block, in document order. Used
// by dialects (or tools) that only care about the textual content.
func (c Content) FlatText() string {
	out := c.Text
	for _, b := range c.Blocks {
		if b.Kind == BlockText {
			out += b.Text
		}
	}
	return out
}
