package api

import (
	"net/http"

	"github.com/ashureev/gemini-chat/internal/config"
	"github.com/go-chi/chi/v5"
)

// ConfigHandler reports the public server configuration. The API key and
// upstream URL are never exposed.
type ConfigHandler struct {
	model       string
	exchangeLog bool
	exactTokens func() bool
}

// NewConfigHandler creates a handler for cfg. exactTokens may be nil.
func NewConfigHandler(cfg *config.Config, exactTokens func() bool) *ConfigHandler {
	return &ConfigHandler{
		model:       cfg.Gemini.Model,
		exchangeLog: cfg.ExchangeLog.Enabled,
		exactTokens: exactTokens,
	}
}

// RegisterRoutes registers the config route.
func (h *ConfigHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/config", h.GetConfig)
}

// GetConfig handles GET /api/config.
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	exact := false
	if h.exactTokens != nil {
		exact = h.exactTokens()
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"model":                h.model,
		"exchange_log_enabled": h.exchangeLog,
		"exact_token_counts":   exact,
	})
}
