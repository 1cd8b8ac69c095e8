package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ashureev/gemini-chat/internal/config"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(config.GeminiConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gemini-test",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c, &calls
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"gemini-test",`+
		`"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],`+
		`"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`, content)
}

func TestCompleteSendsSystemAndTranscript(t *testing.T) {
	var got capturedRequest
	var auth, path string
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode upstream request: %v", err)
		}
		writeCompletion(w, "hello")
	})

	reply, err := c.Complete(context.Background(), "question: hi\n\n")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("expected reply hello, got %q", reply)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", calls.Load())
	}
	if path != "/chat/completions" {
		t.Errorf("unexpected path %q", path)
	}
	if auth != "Bearer test-key" {
		t.Errorf("unexpected authorization header %q", auth)
	}
	if got.Model != "gemini-test" {
		t.Errorf("unexpected model %q", got.Model)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected two messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != SystemPrompt {
		t.Errorf("unexpected system message: %+v", got.Messages[0])
	}
	if got.Messages[1].Role != "user" || got.Messages[1].Content != "question: hi\n\n" {
		t.Errorf("unexpected user message: %+v", got.Messages[1])
	}
}

func TestCompleteNoChoices(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"cmpl-1","object":"chat.completion","choices":[]}`)
	})

	_, err := c.Complete(context.Background(), "question: hi\n\n")
	if !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
	if Classify(err) != KindMalformed {
		t.Fatalf("expected malformed kind, got %q", Classify(err))
	}
}

func TestCompleteUpstreamStatusClassified(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusUnauthorized, KindAuth},
		{http.StatusBadRequest, KindBadRequest},
		{http.StatusServiceUnavailable, KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"error"}}`)
			})

			_, err := c.Complete(context.Background(), "question: hi\n\n")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := Classify(err); got != tt.want {
				t.Fatalf("expected kind %q, got %q (err=%v)", tt.want, got, err)
			}
		})
	}
}

func TestCompleteMalformedBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `not json`)
	})

	_, err := c.Complete(context.Background(), "question: hi\n\n")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := Classify(err); got != KindMalformed {
		t.Fatalf("expected malformed kind, got %q (err=%v)", got, err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(config.GeminiConfig{Model: "m"}, nil); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) != KindNone {
		t.Error("expected no kind for nil error")
	}
	if Classify(context.DeadlineExceeded) != KindTimeout {
		t.Error("expected timeout kind for deadline exceeded")
	}
	if Classify(errors.New("boom")) != KindUnknown {
		t.Error("expected unknown kind for plain error")
	}
}
