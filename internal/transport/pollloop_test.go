package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rexlunae/agentgw/internal/loopengine"
	"github.com/rexlunae/agentgw/internal/provideradapter"
	"github.com/rexlunae/agentgw/internal/toolregistry"
)

// fakeMessenger hands back a fixed batch of messages once, then nothing,
// and records every outbound send.
type fakeMessenger struct {
	mu        sync.Mutex
	pending   []InboundMessage
	sent      []SendOptions
	initCalls int
}

func (m *fakeMessenger) MessengerType() string { return "fake" }

func (m *fakeMessenger) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initCalls++
	return nil
}

func (m *fakeMessenger) ReceiveMessages(ctx context.Context) ([]InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pending
	m.pending = nil
	return out, nil
}

func (m *fakeMessenger) SendMessageWithOptions(ctx context.Context, opts SendOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, opts)
	return "sent-1", nil
}

func (m *fakeMessenger) sentMessages() []SendOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendOptions, len(m.sent))
	copy(out, m.sent)
	return out
}

// fixedReplyProvider always answers with the same text, ignoring history.
type fixedReplyProvider struct{ text string }

func (p *fixedReplyProvider) Name() string                   { return "fixed" }
func (p *fixedReplyProvider) Models() []provideradapter.Model { return nil }
func (p *fixedReplyProvider) SupportsTools() bool             { return false }

func (p *fixedReplyProvider) Complete(ctx context.Context, req *provideradapter.CompletionRequest) (<-chan *provideradapter.CompletionChunk, error) {
	ch := make(chan *provideradapter.CompletionChunk, 2)
	go func() {
		defer close(ch)
		ch <- &provideradapter.CompletionChunk{Text: p.text}
		ch <- &provideradapter.CompletionChunk{Done: true}
	}()
	return ch, nil
}

func newTestEngine(replyText string) *loopengine.Engine {
	return loopengine.New(&fixedReplyProvider{text: replyText}, toolregistry.New(), loopengine.Config{})
}

func TestPollLoopSendsModelReply(t *testing.T) {
	messenger := &fakeMessenger{pending: []InboundMessage{
		{ConversationKey: "conv:1", Text: "hello"},
	}}
	loop := NewPollLoop(messenger, newTestEngine("hi there"), PollLoopConfig{
		PollInterval: 20 * time.Millisecond,
		SystemPrompt: "be nice",
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := loop.Run(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run: %v", err)
	}

	sent := messenger.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one reply sent, got %d", len(sent))
	}
	if sent[0].Text != "hi there" {
		t.Fatalf("expected reply text %q, got %q", "hi there", sent[0].Text)
	}
	if sent[0].ConversationKey != "conv:1" {
		t.Fatalf("expected reply routed to conv:1, got %q", sent[0].ConversationKey)
	}
}

func TestPollLoopSuppressesSilentReply(t *testing.T) {
	messenger := &fakeMessenger{pending: []InboundMessage{
		{ConversationKey: "conv:1", Text: "ping"},
	}}
	loop := NewPollLoop(messenger, newTestEngine("NO_REPLY"), PollLoopConfig{
		PollInterval: 20 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = loop.Run(ctx)

	if sent := messenger.sentMessages(); len(sent) != 0 {
		t.Fatalf("expected no reply sent for NO_REPLY, got %+v", sent)
	}
}

func TestPollLoopInitializesMessengerOnce(t *testing.T) {
	messenger := &fakeMessenger{}
	loop := NewPollLoop(messenger, newTestEngine("ok"), PollLoopConfig{
		PollInterval: 20 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = loop.Run(ctx)

	messenger.mu.Lock()
	defer messenger.mu.Unlock()
	if messenger.initCalls != 1 {
		t.Fatalf("expected Initialize called exactly once, got %d", messenger.initCalls)
	}
}
