package chatsession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/gemini-chat/internal/markdown"
)

// gatedSender blocks each Send until a reply is queued.
type gatedSender struct {
	mu          sync.Mutex
	replies     chan string
	err         error
	transcripts []string
}

func newGatedSender() *gatedSender {
	return &gatedSender{replies: make(chan string, 4)}
}

func (g *gatedSender) Send(ctx context.Context, transcript string) (string, error) {
	g.mu.Lock()
	g.transcripts = append(g.transcripts, transcript)
	err := g.err
	g.mu.Unlock()
	if err != nil {
		return "", err
	}
	select {
	case reply := <-g.replies:
		return reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gatedSender) sent() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.transcripts...)
}

type frame struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Speaker   string `json:"speaker"`
	HTML      string `json:"html"`
	Pending   bool   `json:"pending"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, sender *gatedSender, origins []string) (*httptest.Server, *SessionManager) {
	t.Helper()
	sm := NewSessionManager()
	h := NewWebSocketHandler(sender, sm, markdown.NewHTML(), origins, quietLogger())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, sm
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func next(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read: %v", err)
	}
	return f
}

func TestSubmitDeliversEventsInOrder(t *testing.T) {
	sender := newGatedSender()
	sender.replies <- "**hello**"
	srv, _ := startServer(t, sender, []string{"*"})
	conn := dial(t, srv)

	send(t, conn, map[string]string{"type": "submit", "content": "hi"})

	user := next(t, conn)
	if user.Type != "message" || user.Speaker != "user" || !strings.Contains(user.HTML, "hi") {
		t.Fatalf("expected user message first, got %+v", user)
	}
	if f := next(t, conn); f.Type != "pending" || !f.Pending {
		t.Fatalf("expected pending=true, got %+v", f)
	}
	if f := next(t, conn); f.Type != "pending" || f.Pending {
		t.Fatalf("expected pending=false, got %+v", f)
	}
	reply := next(t, conn)
	if reply.Type != "message" || reply.Speaker != "assistant" {
		t.Fatalf("expected assistant message, got %+v", reply)
	}
	if !strings.Contains(reply.HTML, "<strong>hello</strong>") {
		t.Fatalf("expected rendered markdown, got %q", reply.HTML)
	}
	if reply.ID == "" || reply.ID == user.ID {
		t.Fatalf("expected distinct message IDs, got %q and %q", user.ID, reply.ID)
	}

	if got := sender.sent()[0]; got != "question: hi\n\n" {
		t.Fatalf("unexpected transcript %q", got)
	}
}

func TestSecondSubmitWhilePendingIsBusy(t *testing.T) {
	sender := newGatedSender()
	srv, _ := startServer(t, sender, []string{"*"})
	conn := dial(t, srv)

	send(t, conn, map[string]string{"type": "submit", "content": "first"})
	next(t, conn) // user message
	if f := next(t, conn); f.Type != "pending" || !f.Pending {
		t.Fatalf("expected pending=true, got %+v", f)
	}

	send(t, conn, map[string]string{"type": "submit", "content": "second"})
	if f := next(t, conn); f.Type != "busy" {
		t.Fatalf("expected busy, got %+v", f)
	}

	sender.replies <- "answer"
	next(t, conn) // pending=false
	if f := next(t, conn); f.Speaker != "assistant" || !strings.Contains(f.HTML, "answer") {
		t.Fatalf("expected answer to first question, got %+v", f)
	}
}

func TestSendFailureIsRetryable(t *testing.T) {
	sender := newGatedSender()
	sender.err = errors.New("connection refused")
	srv, _ := startServer(t, sender, []string{"*"})
	conn := dial(t, srv)

	send(t, conn, map[string]string{"type": "submit", "content": "hi"})
	next(t, conn) // user message
	next(t, conn) // pending=true
	next(t, conn) // pending=false
	f := next(t, conn)
	if f.Type != "error" || !f.Retryable {
		t.Fatalf("expected retryable error, got %+v", f)
	}
	if strings.Contains(f.Error, "refused") {
		t.Fatalf("transport detail leaked: %q", f.Error)
	}

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()
	sender.replies <- "recovered"

	send(t, conn, map[string]string{"type": "retry"})
	next(t, conn) // pending=true
	next(t, conn) // pending=false
	if f := next(t, conn); f.Speaker != "assistant" || !strings.Contains(f.HTML, "recovered") {
		t.Fatalf("expected reply after retry, got %+v", f)
	}
	if sent := sender.sent(); len(sent) != 2 || sent[0] != sent[1] {
		t.Fatalf("expected retry to resend the same transcript, got %q", sent)
	}
}

func TestPingPong(t *testing.T) {
	srv, _ := startServer(t, newGatedSender(), []string{"*"})
	conn := dial(t, srv)

	send(t, conn, map[string]string{"type": "ping"})
	if f := next(t, conn); f.Type != "pong" {
		t.Fatalf("expected pong, got %+v", f)
	}
}

func TestOriginRejected(t *testing.T) {
	srv, _ := startServer(t, newGatedSender(), []string{"http://allowed.example"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.example"}},
	})
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}
}

func TestSessionManagerTracksAndClosesSessions(t *testing.T) {
	srv, sm := startServer(t, newGatedSender(), []string{"*"})
	conn := dial(t, srv)

	deadline := time.Now().Add(5 * time.Second)
	for sm.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected one registered session, got %d", sm.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}

	readErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _, err := conn.Read(ctx)
		readErr <- err
	}()

	sm.CloseAll()
	if sm.Count() != 0 {
		t.Fatalf("expected no sessions after CloseAll, got %d", sm.Count())
	}
	if err := <-readErr; websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Fatalf("expected going-away close, got %v", err)
	}
}

func TestSessionManagerIgnoresStaleUnregister(t *testing.T) {
	sm := NewSessionManager()
	if sm.GetActive("missing") != nil {
		t.Fatal("expected nil for unknown session")
	}
	sm.Unregister("missing", nil)
	if sm.Count() != 0 {
		t.Fatalf("expected empty manager, got %d", sm.Count())
	}
}
