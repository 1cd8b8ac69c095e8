package chatsession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ashureev/gemini-chat/internal/conversation"
	"github.com/ashureev/gemini-chat/internal/markdown"
	"github.com/ashureev/gemini-chat/internal/ui"
)

const (
	writeTimeout  = 5 * time.Second
	errSendFailed = "Could not reach the chat service."
)

// WebSocketHandler serves /ws/chat.
type WebSocketHandler struct {
	sender         conversation.Sender
	sm             *SessionManager
	renderer       markdown.Renderer
	allowedOrigins []string
	logger         *slog.Logger
}

// NewWebSocketHandler creates a handler whose sessions send through sender.
func NewWebSocketHandler(sender conversation.Sender, sm *SessionManager, renderer markdown.Renderer, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		sender:         sender,
		sm:             sm,
		renderer:       renderer,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// wsMessage is a client to server frame.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// session is one socket and its conversation.
type session struct {
	id       string
	conn     *websocket.Conn
	client   *conversation.Client
	renderer markdown.Renderer
	logger   *slog.Logger

	// exchangeCtx carries request values but is never cancelled, so a closed
	// tab does not abort an in-flight proxy call.
	exchangeCtx context.Context

	writeMu sync.Mutex
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	s := &session{
		id:          uuid.NewString(),
		conn:        ws,
		renderer:    h.renderer,
		exchangeCtx: context.WithoutCancel(r.Context()),
	}
	s.logger = h.logger.With("session_id", s.id)
	s.client = conversation.NewClient(h.sender,
		conversation.WithListener(s.onEvent),
		conversation.WithLogger(s.logger),
	)

	h.sm.Register(s.id, ws)
	defer h.sm.Unregister(s.id, ws)

	s.logger.Info("Chat session started", "ip", r.RemoteAddr)
	s.readLoop(r.Context())
	s.logger.Info("Chat session ended", "messages", len(s.client.Messages()))
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin)
	return false
}

func (s *session) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				s.logger.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				s.logger.Debug("WebSocket read error", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("Ignoring malformed frame", "error", err)
			continue
		}

		switch msg.Type {
		case "submit":
			go s.submit(msg.Content)
		case "retry":
			go s.retry()
		case "ping":
			s.write(map[string]interface{}{"type": "pong"})
		default:
			s.logger.Debug("Ignoring unknown frame", "type", msg.Type)
		}
	}
}

func (s *session) submit(text string) {
	_, err := s.client.Submit(s.exchangeCtx, text)
	s.reportError(err)
}

func (s *session) retry() {
	_, err := s.client.Retry(s.exchangeCtx)
	s.reportError(err)
}

func (s *session) reportError(err error) {
	var sendErr *conversation.SendError
	switch {
	case err == nil, errors.Is(err, conversation.ErrEmptyInput):
	case errors.Is(err, conversation.ErrBusy):
		s.write(map[string]interface{}{"type": "busy"})
	case errors.As(err, &sendErr):
		s.write(map[string]interface{}{"type": "error", "error": errSendFailed, "retryable": true})
	default:
		s.write(map[string]interface{}{"type": "error", "error": err.Error(), "retryable": false})
	}
}

func (s *session) onEvent(ev conversation.Event) {
	switch ev.Type {
	case conversation.EventPending:
		s.write(map[string]interface{}{"type": "pending", "pending": ev.Pending})
	case conversation.EventMessage:
		var buf bytes.Buffer
		if err := ui.MessageBubble(ev.Message, s.renderer).Render(context.Background(), &buf); err != nil {
			s.logger.Error("Failed to render message", "error", err, "message_id", ev.Message.ID)
			return
		}
		s.write(map[string]interface{}{
			"type":    "message",
			"id":      ev.Message.ID,
			"speaker": ev.Message.Speaker,
			"html":    buf.String(),
		})
	}
}

func (s *session) write(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode frame", "error", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		s.logger.Debug("WebSocket write error", "error", err)
	}
}
