package transport

import (
	"sync"

	"github.com/rexlunae/agentgw/internal/provideradapter"
)

// MaxHistoryMessages bounds how many turns a conversation keeps in memory,
// not counting the leading system message at index 0.
const MaxHistoryMessages = 50

// keyMutex is one conversation's write lock. Grounded on
// internal/sessions' SessionLocker: a sync.Map of per-key mutexes rather
// than a single store-wide lock, so unrelated conversations never block
// each other.
type keyMutex struct {
	mu sync.Mutex
}

// ConversationStore holds bounded, in-memory message history per
// conversation key. It is deliberately lighter than internal/sessions'
// persistent Store: transport history only needs to survive the process,
// not a restart.
type ConversationStore struct {
	locks sync.Map // map[string]*keyMutex

	mu           sync.Mutex
	histories    map[string][]provideradapter.CompletionMessage
	systemPrompt string
}

// NewConversationStore creates an empty store. Every conversation's history
// is seeded with systemPrompt as its first message.
func NewConversationStore(systemPrompt string) *ConversationStore {
	return &ConversationStore{
		histories:    make(map[string][]provideradapter.CompletionMessage),
		systemPrompt: systemPrompt,
	}
}

// WithLock serializes concurrent turns on the same conversation key: a
// second inbound message for a key already being processed waits for the
// first turn to finish rather than racing it over shared history.
func (s *ConversationStore) WithLock(key string, fn func()) {
	m, _ := s.locks.LoadOrStore(key, &keyMutex{})
	lock := m.(*keyMutex)
	lock.mu.Lock()
	defer lock.mu.Unlock()
	fn()
}

// Append adds msg to key's history, trims it to MaxHistoryMessages, and
// returns a copy of the resulting history for use in a completion request.
func (s *ConversationStore) Append(key string, msg provideradapter.CompletionMessage) []provideradapter.CompletionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.histories[key]
	if len(hist) == 0 {
		hist = append(hist, provideradapter.CompletionMessage{
			Role:    "system",
			Content: provideradapter.TextContent(s.systemPrompt),
		})
	}
	hist = append(hist, msg)
	hist = trimHistory(hist)
	s.histories[key] = hist

	out := make([]provideradapter.CompletionMessage, len(hist))
	copy(out, hist)
	return out
}

// trimHistory drops the oldest non-system messages once history exceeds
// MaxHistoryMessages, always preserving index 0's system message.
func trimHistory(hist []provideradapter.CompletionMessage) []provideradapter.CompletionMessage {
	if len(hist) <= MaxHistoryMessages+1 {
		return hist
	}
	overflow := len(hist) - (MaxHistoryMessages + 1)
	trimmed := make([]provideradapter.CompletionMessage, 0, MaxHistoryMessages+1)
	trimmed = append(trimmed, hist[0])
	trimmed = append(trimmed, hist[1+overflow:]...)
	return trimmed
}
