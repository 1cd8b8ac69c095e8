// Package completion calls the upstream chat-completion API.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/gemini-chat/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// ErrNoChoices is returned when the upstream response carries no candidates.
var ErrNoChoices = errors.New("upstream returned no choices")

// Completer turns an encoded transcript into a single model reply.
type Completer interface {
	Complete(ctx context.Context, transcript string) (string, error)
}

// Client issues chat completions against an OpenAI-compatible endpoint.
type Client struct {
	api    *openai.Client
	model  string
	system string
	logger *slog.Logger
}

// Ensure Client implements Completer.
var _ Completer = (*Client)(nil)

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	system     string
}

// WithHTTPClient overrides the HTTP client used for upstream calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithSystemPrompt replaces the fixed system instruction.
func WithSystemPrompt(prompt string) Option {
	return func(o *clientOptions) { o.system = prompt }
}

// NewClient creates an upstream client from the Gemini configuration.
func NewClient(cfg config.GeminiConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("completion: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("completion: model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := clientOptions{system: SystemPrompt}
	for _, opt := range opts {
		opt(&o)
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if o.httpClient != nil {
		apiCfg.HTTPClient = o.httpClient
	}

	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		model:  cfg.Model,
		system: o.system,
		logger: logger,
	}, nil
}

// Complete sends the system instruction and the transcript as one user turn
// and returns the first candidate's content. Exactly one upstream call is made.
func (c *Client) Complete(ctx context.Context, transcript string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.system},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	c.logger.Debug("Upstream completion received",
		"model", resp.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}
