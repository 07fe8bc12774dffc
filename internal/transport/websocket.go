package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// wsInbound is the wire shape for a message arriving over the websocket.
type wsInbound struct {
	ConversationKey string         `json:"conversation_key"`
	SenderID        string         `json:"sender_id"`
	SenderName      string         `json:"sender_name,omitempty"`
	Text            string         `json:"text"`
	Attachments     []wsAttachment `json:"attachments,omitempty"`
}

type wsAttachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// wsOutbound is the wire shape for a reply sent over the websocket.
type wsOutbound struct {
	ConversationKey string `json:"conversation_key"`
	Text            string `json:"text"`
	ReplyToID       string `json:"reply_to_id,omitempty"`
}

// WebSocketMessenger is a reference Messenger backed by a single
// long-lived websocket connection. It exercises the Messenger contract
// end to end without depending on any particular external chat SDK.
type WebSocketMessenger struct {
	url    string
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn

	inbox  chan InboundMessage
	nextID uint64
}

// NewWebSocketMessenger builds a Messenger that dials url on Initialize.
func NewWebSocketMessenger(url string) *WebSocketMessenger {
	return &WebSocketMessenger{
		url:    url,
		dialer: websocket.DefaultDialer,
		inbox:  make(chan InboundMessage, 256),
	}
}

func (m *WebSocketMessenger) MessengerType() string { return "websocket" }

// Initialize dials the websocket and starts the background read loop that
// feeds ReceiveMessages.
func (m *WebSocketMessenger) Initialize(ctx context.Context) error {
	conn, _, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("transport: websocket dial: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	go m.readLoop(conn)
	return nil
}

// readLoop drains incoming frames into inbox until the connection closes.
func (m *WebSocketMessenger) readLoop(conn *websocket.Conn) {
	for {
		var raw wsInbound
		if err := conn.ReadJSON(&raw); err != nil {
			return
		}

		atts := make([]Attachment, 0, len(raw.Attachments))
		for _, a := range raw.Attachments {
			atts = append(atts, Attachment{URL: a.URL, MimeType: a.MimeType, Filename: a.Filename})
		}

		m.inbox <- InboundMessage{
			ConversationKey: raw.ConversationKey,
			SenderID:        raw.SenderID,
			SenderName:      raw.SenderName,
			Text:            raw.Text,
			Attachments:     atts,
			ReceivedAt:      time.Now(),
		}
	}
}

// ReceiveMessages drains whatever has accumulated in inbox without
// blocking for more.
func (m *WebSocketMessenger) ReceiveMessages(ctx context.Context) ([]InboundMessage, error) {
	var out []InboundMessage
	for {
		select {
		case msg := <-m.inbox:
			out = append(out, msg)
		case <-ctx.Done():
			return out, ctx.Err()
		default:
			return out, nil
		}
	}
}

// SendMessageWithOptions writes a reply frame to the connection.
func (m *WebSocketMessenger) SendMessageWithOptions(ctx context.Context, opts SendOptions) (string, error) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return "", fmt.Errorf("transport: websocket not initialized")
	}

	id := fmt.Sprintf("ws-%d", atomic.AddUint64(&m.nextID, 1))
	out := wsOutbound{ConversationKey: opts.ConversationKey, Text: opts.Text, ReplyToID: opts.ReplyToID}

	m.mu.Lock()
	err := conn.WriteJSON(out)
	m.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("transport: websocket write: %w", err)
	}
	return id, nil
}
