package ui

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/gemini-chat/internal/conversation"
	"github.com/ashureev/gemini-chat/internal/markdown"
)

func TestIndexLinksAssets(t *testing.T) {
	var buf bytes.Buffer
	if err := Index().Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`/static/app.js`, `/static/style.css`, `id="messages"`, `id="send"`, `Thinking...`} {
		if !strings.Contains(out, want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestMessageBubbleEscapes(t *testing.T) {
	m := conversation.Message{ID: `x"y`, Speaker: conversation.SpeakerAssistant, Text: "**hi** <b>raw</b>"}

	var buf bytes.Buffer
	if err := MessageBubble(m, markdown.NewHTML()).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `message--assistant`) {
		t.Errorf("missing speaker class: %s", out)
	}
	if !strings.Contains(out, `data-id="x&#34;y"`) {
		t.Errorf("id not escaped: %s", out)
	}
	if !strings.Contains(out, "<strong>hi</strong>") {
		t.Errorf("bold not rendered: %s", out)
	}
	if strings.Contains(out, "<b>raw</b>") {
		t.Errorf("raw HTML passed through: %s", out)
	}
}

func TestHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler(Index()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
}
