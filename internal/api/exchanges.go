package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/gemini-chat/internal/domain"
	"github.com/ashureev/gemini-chat/internal/store"
	"github.com/go-chi/chi/v5"
)

const defaultExchangeLimit = 50

// ExchangesHandler exposes the exchange log.
type ExchangesHandler struct {
	repo store.Repository
}

// NewExchangesHandler creates a handler backed by repo.
func NewExchangesHandler(repo store.Repository) *ExchangesHandler {
	return &ExchangesHandler{repo: repo}
}

// RegisterRoutes registers exchange log routes.
func (h *ExchangesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/exchanges", h.List)
}

// List handles GET /api/exchanges?limit=N.
func (h *ExchangesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultExchangeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	exchanges, err := h.repo.RecentExchanges(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list exchanges", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list exchanges")
		return
	}
	if exchanges == nil {
		exchanges = []*domain.Exchange{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"exchanges": exchanges,
		"count":     len(exchanges),
	})
}
