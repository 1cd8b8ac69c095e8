package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

var (
	// ErrEmptyInput is returned when the submitted text is blank. Nothing changes.
	ErrEmptyInput = errors.New("conversation: message is empty")
	// ErrBusy is returned while another submission is in flight. Nothing changes.
	ErrBusy = errors.New("conversation: a reply is still pending")
	// ErrNothingToRetry is returned by Retry when the last turn was answered.
	ErrNothingToRetry = errors.New("conversation: nothing to retry")
)

// SendError reports a failed proxy exchange. The user message stays in the
// transcript and no assistant message is appended; Retry re-sends it.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return "conversation: send failed: " + e.Err.Error()
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Sender delivers an encoded transcript to the Completion Proxy.
type Sender interface {
	Send(ctx context.Context, transcript string) (string, error)
}

// EventType identifies a change in client state.
type EventType string

const (
	EventMessage EventType = "message"
	EventPending EventType = "pending"
)

// Event is delivered to the listener after every state change.
type Event struct {
	Type    EventType
	Message Message // set for EventMessage
	Pending bool    // set for EventPending
}

// Client owns one conversation. It allows a single submission in flight:
// a second Submit while a reply is pending returns ErrBusy, so replies always
// follow the question they answer.
type Client struct {
	sender   Sender
	policy   HistoryPolicy
	listener func(Event)
	logger   *slog.Logger

	mu       sync.Mutex
	messages []Message
	pending  bool
}

// Option customizes a Client.
type Option func(*Client)

// WithHistoryPolicy replaces the WholeHistory policy.
func WithHistoryPolicy(p HistoryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithListener registers fn to receive state changes. fn is called without
// the client lock held, from the goroutine calling Submit or Retry.
func WithListener(fn func(Event)) Option {
	return func(c *Client) { c.listener = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a conversation that sends through sender.
func NewClient(sender Sender, opts ...Option) *Client {
	c := &Client{
		sender: sender,
		policy: WholeHistory{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit appends text as a user message, sends the transcript, and appends
// the reply. Blank text returns ErrEmptyInput; a pending reply returns
// ErrBusy; a failed exchange returns *SendError.
func (c *Client) Submit(ctx context.Context, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyInput
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return Message{}, ErrBusy
	}
	user := newMessage(SpeakerUser, text)
	c.messages = append(c.messages, user)
	c.pending = true
	transcript := EncodeTranscript(c.policy.Select(c.snapshotLocked()))
	c.mu.Unlock()

	c.emit(Event{Type: EventMessage, Message: user})
	c.emit(Event{Type: EventPending, Pending: true})

	return c.exchange(ctx, transcript)
}

// Retry re-sends the transcript when the last message is an unanswered user
// turn.
func (c *Client) Retry(ctx context.Context) (Message, error) {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return Message{}, ErrBusy
	}
	if n := len(c.messages); n == 0 || c.messages[n-1].Speaker != SpeakerUser {
		c.mu.Unlock()
		return Message{}, ErrNothingToRetry
	}
	c.pending = true
	transcript := EncodeTranscript(c.policy.Select(c.snapshotLocked()))
	c.mu.Unlock()

	c.emit(Event{Type: EventPending, Pending: true})

	return c.exchange(ctx, transcript)
}

func (c *Client) exchange(ctx context.Context, transcript string) (Message, error) {
	text, err := c.sender.Send(ctx, transcript)

	c.mu.Lock()
	c.pending = false
	var reply Message
	if err == nil {
		reply = newMessage(SpeakerAssistant, text)
		c.messages = append(c.messages, reply)
	}
	c.mu.Unlock()

	c.emit(Event{Type: EventPending, Pending: false})
	if err != nil {
		c.logger.Warn("Chat exchange failed", "error", err, "transcript_length", len(transcript))
		return Message{}, &SendError{Err: err}
	}

	c.emit(Event{Type: EventMessage, Message: reply})
	return reply, nil
}

// Messages returns a copy of the committed messages in conversation order.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// View returns the committed messages plus a pending assistant placeholder
// while a reply is in flight.
func (c *Client) View() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.snapshotLocked()
	if c.pending {
		out = append(out, Message{Speaker: SpeakerAssistant, Pending: true})
	}
	return out
}

// Pending reports whether a reply is in flight.
func (c *Client) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Transcript returns the encoding that the next exchange would send.
func (c *Client) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return EncodeTranscript(c.policy.Select(c.snapshotLocked()))
}

func (c *Client) snapshotLocked() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Client) emit(ev Event) {
	if c.listener != nil {
		c.listener(ev)
	}
}
