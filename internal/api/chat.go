package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/gemini-chat/internal/completion"
	"github.com/ashureev/gemini-chat/internal/config"
	"github.com/ashureev/gemini-chat/internal/domain"
	"github.com/ashureev/gemini-chat/internal/store"
	"github.com/ashureev/gemini-chat/internal/tokens"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Client-facing error messages. Upstream details never leave the server.
const (
	errMessageRequired = "Message is required"
	errUpstream        = "Error fetching Gemini API"
	errBodyTooLarge    = "request body too large"
)

// defaultMaxRequestBodySize is used when no configuration is supplied (1MB).
const defaultMaxRequestBodySize = 1 << 20

const recordTimeout = 5 * time.Second

// ChatRequest is the Completion Proxy request body.
type ChatRequest struct {
	Message *string `json:"message"`
}

// ChatHandler is the Completion Proxy: one inbound request, one upstream call.
// It keeps no state between requests.
type ChatHandler struct {
	completer   completion.Completer
	recorder    store.ExchangeRecorder
	counter     *tokens.Counter
	maxBodySize int64
	logger      *slog.Logger
}

// ChatOption customizes a ChatHandler.
type ChatOption func(*ChatHandler)

// WithExchangeRecorder records metadata of every exchange.
func WithExchangeRecorder(rec store.ExchangeRecorder) ChatOption {
	return func(h *ChatHandler) { h.recorder = rec }
}

// WithTokenCounter counts transcript tokens for logs and the exchange log.
func WithTokenCounter(c *tokens.Counter) ChatOption {
	return func(h *ChatHandler) { h.counter = c }
}

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) ChatOption {
	return func(h *ChatHandler) { h.logger = l }
}

// NewChatHandler creates the proxy handler. cfg may be nil in tests.
func NewChatHandler(completer completion.Completer, cfg *config.Config, opts ...ChatOption) *ChatHandler {
	h := &ChatHandler{
		completer:   completer,
		maxBodySize: defaultMaxRequestBodySize,
		logger:      slog.Default(),
	}
	if cfg != nil && cfg.MaxRequestBodySize > 0 {
		h.maxBodySize = cfg.MaxRequestBodySize
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the proxy endpoint.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
}

// HandleChat handles POST /api/chat.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ex := &domain.Exchange{
		ID:         uuid.NewString(),
		RequestID:  chiMiddleware.GetReqID(r.Context()),
		ReceivedAt: started,
	}
	defer func() {
		ex.DurationMs = time.Since(started).Milliseconds()
		h.record(r.Context(), ex)
	}()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(w, ex, http.StatusRequestEntityTooLarge, errBodyTooLarge, "")
			return
		}
		h.logger.Debug("Invalid chat request body", "error", err, "request_id", ex.RequestID)
		h.fail(w, ex, http.StatusBadRequest, errMessageRequired, "")
		return
	}
	if req.Message == nil || *req.Message == "" {
		h.fail(w, ex, http.StatusBadRequest, errMessageRequired, "")
		return
	}

	transcript := *req.Message
	ex.MessageBytes = len(transcript)
	ex.MessageTokens = h.counter.Count(transcript)

	h.logger.Info("Chat request",
		"request_id", ex.RequestID,
		"message_length", ex.MessageBytes,
		"message_tokens", ex.MessageTokens,
	)

	reply, err := h.completer.Complete(r.Context(), transcript)
	if err != nil {
		kind := completion.Classify(err)
		h.logger.Error("Error fetching Gemini API",
			"error", err,
			"kind", kind,
			"request_id", ex.RequestID,
		)
		h.fail(w, ex, http.StatusInternalServerError, errUpstream, string(kind))
		return
	}

	ex.Status = http.StatusOK
	ex.Outcome = domain.OutcomeSuccess
	ex.ReplyBytes = len(reply)
	JSON(w, http.StatusOK, reply)
}

func (h *ChatHandler) fail(w http.ResponseWriter, ex *domain.Exchange, status int, message, kind string) {
	ex.Status = status
	ex.Outcome = domain.OutcomeError
	ex.ErrorKind = kind
	Error(w, status, message)
}

func (h *ChatHandler) record(ctx context.Context, ex *domain.Exchange) {
	if h.recorder == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := h.recorder.RecordExchange(recordCtx, ex); err != nil {
		h.logger.Warn("Failed to record exchange", "error", err, "exchange_id", ex.ID)
	}
}
