package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/vision-helper/internal/conversation"
	"github.com/wolfman30/vision-helper/internal/locale"
	"github.com/wolfman30/vision-helper/pkg/logging"
)

// Chatter is the part of the assistant the live chat needs.
type Chatter interface {
	Chat(ctx context.Context, message string) (conversation.Reply, error)
	Conversation() conversation.Snapshot
}

// Handler manages live chat connections.
type Handler struct {
	chatter Chatter
	lang    locale.Language
	logger  *logging.Logger
}

type wsConn struct {
	conn *websocket.Conn
	// send serializes writes; golang.org/x/net/websocket frames must not
	// interleave.
	send sync.Mutex
}

// InboundMessage is what the reading client sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the reading client.
type OutboundMessage struct {
	Type      string              `json:"type"` // "session", "history", "typing", "message", "pong", "error"
	Text      string              `json:"text,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
	Reply     *conversation.Reply `json:"reply,omitempty"`
	Messages  []HistoryMessage    `json:"messages,omitempty"`
	Timestamp string              `json:"timestamp,omitempty"`
}

// HistoryMessage is a delivered turn replayed to a reconnecting client.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a live chat handler.
func NewHandler(chatter Chatter, lang locale.Language, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if lang == "" {
		lang = locale.Default
	}
	return &Handler{
		chatter: chatter,
		lang:    lang,
		logger:  logger.WithComponent("webchat"),
	}
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	wsc := &wsConn{conn: conn}
	h.send(wsc, OutboundMessage{Type: "session", SessionID: sessionID})
	if history := h.history(); len(history) > 0 {
		h.send(wsc, OutboundMessage{Type: "history", Messages: history})
	}

	h.logger.Info("connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("connection closed", "session_id", sessionID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			h.send(wsc, OutboundMessage{Type: "pong"})
		case "message":
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			h.processMessage(r.Context(), wsc, sessionID, msg.Text)
		}
	}
}

func (h *Handler) processMessage(ctx context.Context, wsc *wsConn, sessionID, text string) {
	h.send(wsc, OutboundMessage{Type: "typing"})

	reply, err := h.chatter.Chat(ctx, text)
	if err != nil {
		h.logger.Error("chat failed", "session_id", sessionID, "error", err)
		h.send(wsc, OutboundMessage{Type: "error", Text: conversation.UserMessage(err, h.lang)})
		return
	}
	h.send(wsc, OutboundMessage{
		Type:      "message",
		Text:      reply.Text,
		Reply:     &reply,
		Timestamp: reply.Timestamp.Format(time.RFC3339),
	})
}

func (h *Handler) send(wsc *wsConn, msg OutboundMessage) {
	wsc.send.Lock()
	defer wsc.send.Unlock()
	if err := websocket.JSON.Send(wsc.conn, msg); err != nil {
		h.logger.Debug("send failed", "type", msg.Type, "error", err)
	}
}

// history lists delivered turns; the held-back continuation is not replayed.
func (h *Handler) history() []HistoryMessage {
	turns := h.chatter.Conversation().Turns
	out := make([]HistoryMessage, 0, len(turns))
	for _, t := range turns {
		if t.Pending {
			continue
		}
		out = append(out, HistoryMessage{
			Role:      string(t.Role),
			Text:      t.Text,
			Timestamp: t.Timestamp.Format(time.RFC3339),
		})
	}
	return out
}

// HandleHistory returns the delivered chat history over plain HTTP.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": h.history()})
}
