// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Defaults for the Gemini OpenAI-compatible endpoint.
const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultGeminiModel   = "gemini-1.5-flash"
	DefaultTokenEncoding = "cl100k_base"

	defaultMaxRequestBodySize = 1 << 20 // 1MB
)

// Config holds all server configuration.
type Config struct {
	Port               string
	Gemini             GeminiConfig
	ProxyURL           string   // Where web chat sessions send transcripts.
	AllowedOrigins     []string // CORS and WebSocket origin patterns.
	MaxRequestBodySize int64
	TokenEncoding      string
	LogLevel           slog.Level
	ExchangeLog        ExchangeLogConfig
}

// GeminiConfig describes the upstream model endpoint.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ExchangeLogConfig controls the sqlite exchange log.
type ExchangeLogConfig struct {
	Enabled bool
	DBPath  string
}

// ClientConfig holds configuration for the terminal chat client.
type ClientConfig struct {
	ProxyURL string
	LogFile  string // Empty discards logs; the TUI owns the terminal.
}

// Load reads server configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "8080")

	maxBody := int64(getEnvInt("MAX_REQUEST_BODY_BYTES", defaultMaxRequestBodySize))
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBodySize
	}

	cfg := &Config{
		Port: port,
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			BaseURL: strings.TrimRight(getEnv("GEMINI_BASE_URL", DefaultGeminiBaseURL), "/"),
			Model:   getEnv("GEMINI_MODEL", DefaultGeminiModel),
		},
		ProxyURL:           getEnv("CHAT_PROXY_URL", "http://127.0.0.1:"+port+"/api/chat"),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		MaxRequestBodySize: maxBody,
		TokenEncoding:      getEnv("TOKEN_ENCODING", DefaultTokenEncoding),
		LogLevel:           getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		ExchangeLog: ExchangeLogConfig{
			Enabled: getEnvBool("EXCHANGE_LOG_ENABLED", false),
			DBPath:  getEnv("EXCHANGE_LOG_DB_PATH", "./data/exchanges.db"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.Gemini.BaseURL == "" {
		return fmt.Errorf("GEMINI_BASE_URL cannot be empty")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	if c.ProxyURL == "" {
		return fmt.Errorf("CHAT_PROXY_URL cannot be empty")
	}
	if c.ExchangeLog.Enabled && c.ExchangeLog.DBPath == "" {
		return fmt.Errorf("EXCHANGE_LOG_DB_PATH cannot be empty when the exchange log is enabled")
	}
	return nil
}

// LoadClient reads terminal client configuration from environment variables.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		ProxyURL: getEnv("CHAT_PROXY_URL", "http://localhost:8080/api/chat"),
		LogFile:  getEnv("CHAT_LOG_FILE", ""),
	}
	if cfg.ProxyURL == "" {
		return nil, fmt.Errorf("invalid configuration: CHAT_PROXY_URL cannot be empty")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
