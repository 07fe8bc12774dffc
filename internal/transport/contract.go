// Package transport adapts chat-facing frontends (websocket, messaging
// platforms, anything that can carry text back and forth) to the loop
// engine. Unlike internal/channels' push-based Adapter, every Messenger
// here is polled: the loop owns the cadence, and a frontend only has to
// answer "anything new?" and "send this."
package transport

import (
	"context"
	"time"
)

// Attachment is a reference to remote media carried alongside a message.
// Fetching and caching it is MediaIndex's job, not the Messenger's.
type Attachment struct {
	URL      string
	MimeType string
	Filename string
}

// InboundMessage is one message received from a Messenger, normalized
// across frontends.
type InboundMessage struct {
	ConversationKey string
	SenderID        string
	SenderName      string
	Text            string
	Attachments     []Attachment
	ReceivedAt      time.Time
}

// SendOptions carries everything needed to deliver a reply.
type SendOptions struct {
	ConversationKey string
	Text            string
	ReplyToID       string
}

// Messenger is the contract every transport frontend implements. It is
// deliberately poll-based rather than channel-based: ReceiveMessages must
// return promptly with whatever is currently available (possibly nothing)
// rather than blocking for the next message.
type Messenger interface {
	// Initialize establishes the connection or session needed to exchange
	// messages. Called once before the first ReceiveMessages.
	Initialize(ctx context.Context) error

	// ReceiveMessages returns any messages that have arrived since the last
	// call. It must not block waiting for new messages; an empty slice with
	// a nil error means "nothing new."
	ReceiveMessages(ctx context.Context) ([]InboundMessage, error)

	// SendMessageWithOptions delivers a reply and returns the frontend's
	// message ID for it, if one exists.
	SendMessageWithOptions(ctx context.Context, opts SendOptions) (string, error)

	// MessengerType identifies the frontend (e.g. "websocket", "slack").
	MessengerType() string
}
