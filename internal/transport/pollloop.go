package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rexlunae/agentgw/internal/loopengine"
	"github.com/rexlunae/agentgw/internal/provideradapter"
	"github.com/rexlunae/agentgw/internal/reply"
)

const defaultPollInterval = 2 * time.Second

// PollLoopConfig configures a PollLoop.
type PollLoopConfig struct {
	PollInterval time.Duration
	Model        string
	SystemPrompt string
}

func (c PollLoopConfig) withDefaults() PollLoopConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	return c
}

// PollLoop drives a Messenger: it polls for inbound messages, runs each
// through the loop engine under its conversation key's lock, and sends
// back whatever the model produced unless a reply token says otherwise.
type PollLoop struct {
	messenger Messenger
	store     *ConversationStore
	engine    *loopengine.Engine
	config    PollLoopConfig
	log       *slog.Logger
}

// NewPollLoop builds a PollLoop over messenger and engine.
func NewPollLoop(messenger Messenger, engine *loopengine.Engine, config PollLoopConfig, log *slog.Logger) *PollLoop {
	cfg := config.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &PollLoop{
		messenger: messenger,
		store:     NewConversationStore(cfg.SystemPrompt),
		engine:    engine,
		config:    cfg,
		log:       log,
	}
}

// Run initializes the messenger and polls until ctx is cancelled.
func (l *PollLoop) Run(ctx context.Context) error {
	if err := l.messenger.Initialize(ctx); err != nil {
		return fmt.Errorf("transport: initialize %s: %w", l.messenger.MessengerType(), err)
	}

	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			msgs, err := l.messenger.ReceiveMessages(ctx)
			if err != nil {
				l.log.Error("transport: receive failed", "messenger", l.messenger.MessengerType(), "error", err)
				continue
			}
			for _, msg := range msgs {
				l.handle(ctx, msg)
			}
		}
	}
}

// handle runs one inbound message through the loop engine and replies,
// serialized against other turns on the same conversation key.
func (l *PollLoop) handle(ctx context.Context, msg InboundMessage) {
	l.store.WithLock(msg.ConversationKey, func() {
		history := l.store.Append(msg.ConversationKey, provideradapter.CompletionMessage{
			Role:    "user",
			Content: provideradapter.TextContent(msg.Text),
		})

		chunks, err := l.engine.Run(ctx, loopengine.Request{
			Model:    l.config.Model,
			System:   l.config.SystemPrompt,
			Messages: history,
		})
		if err != nil {
			l.log.Error("transport: engine run failed", "conversation", msg.ConversationKey, "error", err)
			return
		}

		var text string
		for c := range chunks {
			if c.Error != nil {
				l.log.Error("transport: engine chunk error", "conversation", msg.ConversationKey, "error", c.Error)
				return
			}
			text += c.Text
			if c.Note != "" {
				l.log.Warn("transport: loop note", "conversation", msg.ConversationKey, "note", c.Note)
			}
		}

		l.store.Append(msg.ConversationKey, provideradapter.CompletionMessage{
			Role:    "assistant",
			Content: provideradapter.TextContent(text),
		})

		if reply.IsSilentReplyText(text) || reply.HasHeartbeatToken(text) {
			return
		}
		clean := reply.StripHeartbeatToken(reply.StripSilentToken(text))
		if clean == "" {
			return
		}

		if _, err := l.messenger.SendMessageWithOptions(ctx, SendOptions{
			ConversationKey: msg.ConversationKey,
			Text:            clean,
		}); err != nil {
			l.log.Error("transport: send failed", "conversation", msg.ConversationKey, "error", err)
		}
	})
}
