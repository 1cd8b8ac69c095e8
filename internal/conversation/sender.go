package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxReplySize bounds how much of a proxy response is read.
const maxReplySize = 4 << 20

// StatusError is returned when the proxy answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string // the proxy's "error" field, if any
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("proxy returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("proxy returned status %d: %s", e.StatusCode, e.Message)
}

// HTTPSender posts transcripts to the Completion Proxy endpoint.
type HTTPSender struct {
	url    string
	client *http.Client
}

// Ensure HTTPSender implements Sender.
var _ Sender = (*HTTPSender)(nil)

// NewHTTPSender creates a sender for the proxy at url. A nil client uses
// http.DefaultClient.
func NewHTTPSender(url string, client *http.Client) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{url: url, client: client}
}

type chatRequest struct {
	Message string `json:"message"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Send posts {"message": transcript} and decodes the raw JSON string reply.
func (s *HTTPSender) Send(ctx context.Context, transcript string) (string, error) {
	body, err := json.Marshal(chatRequest{Message: transcript})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post chat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return "", &StatusError{StatusCode: resp.StatusCode, Message: eb.Error}
	}

	var reply string
	if err := json.Unmarshal(data, &reply); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	return reply, nil
}
