// Package domain contains core domain types for the chat server.
package domain

import (
	"time"
)

// Outcome is the terminal state of one proxied exchange.
type Outcome string

const (
	// OutcomeSuccess means the upstream reply was returned to the caller.
	OutcomeSuccess Outcome = "responded-success"
	// OutcomeError means the caller received an error response.
	OutcomeError Outcome = "responded-error"
)

// Exchange is the metadata of one Completion Proxy call. Transcript and reply
// content are never stored.
type Exchange struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"request_id,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
	DurationMs    int64     `json:"duration_ms"`
	Status        int       `json:"status"`
	Outcome       Outcome   `json:"outcome"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	MessageBytes  int       `json:"message_bytes"`
	MessageTokens int       `json:"message_tokens"`
	ReplyBytes    int       `json:"reply_bytes"`
}

// Succeeded returns true if the exchange ended with a reply.
func (e *Exchange) Succeeded() bool {
	return e.Outcome == OutcomeSuccess
}
