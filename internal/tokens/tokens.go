// Package tokens estimates prompt sizes for logging.
package tokens

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens with a tiktoken encoding. The encoding may have to be
// downloaded, so it loads in the background; until it is ready, and when it
// cannot be loaded, counts are rune-based estimates. Count never blocks.
type Counter struct {
	encoding string
	logger   *slog.Logger
	loadFn   func(encoding string) (*tiktoken.Tiktoken, error)

	once  sync.Once
	enc   atomic.Pointer[tiktoken.Tiktoken]
	ready chan struct{}
}

// NewCounter creates a counter for the named encoding (e.g. "cl100k_base").
func NewCounter(encoding string, logger *slog.Logger) *Counter {
	return newCounter(encoding, logger, tiktoken.GetEncoding)
}

func newCounter(encoding string, logger *slog.Logger, load func(string) (*tiktoken.Tiktoken, error)) *Counter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Counter{
		encoding: encoding,
		logger:   logger,
		loadFn:   load,
		ready:    make(chan struct{}),
	}
}

// Warm starts loading the encoding if it has not started yet.
func (c *Counter) Warm() {
	if c == nil {
		return
	}
	c.once.Do(func() { go c.load() })
}

// Ready is closed once loading has finished, successfully or not.
func (c *Counter) Ready() <-chan struct{} {
	c.Warm()
	return c.ready
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c == nil {
		return Estimate(text)
	}
	c.Warm()
	enc := c.enc.Load()
	if enc == nil {
		return Estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// Exact reports whether counts currently come from the tiktoken encoding.
func (c *Counter) Exact() bool {
	if c == nil {
		return false
	}
	c.Warm()
	return c.enc.Load() != nil
}

func (c *Counter) load() {
	defer close(c.ready)
	enc, err := c.loadFn(c.encoding)
	if err != nil {
		c.logger.Warn("Token encoding unavailable, using estimates", "encoding", c.encoding, "error", err)
		return
	}
	c.enc.Store(enc)
	c.logger.Debug("Token encoding loaded", "encoding", c.encoding)
}

// Estimate approximates a token count as one token per four runes.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
