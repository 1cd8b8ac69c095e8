// Package ui holds the server-rendered HTML components of the web chat.
package ui

import (
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/ashureev/gemini-chat/internal/conversation"
	"github.com/ashureev/gemini-chat/internal/markdown"
)

const pageTitle = "OpenAI Gemini Demo"

// Index is the chat page shell. Messages arrive over the chat WebSocket.
func Index() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>`+templ.EscapeString(pageTitle)+`</title>
<link rel="stylesheet" href="/static/style.css">
</head>
<body>
<main class="card">
<header>
<h1>`+templ.EscapeString(pageTitle)+`</h1>
<p class="subtitle">A simple chat interface powered by Gemini models accessible via the OpenAI libraries. Read more about it in the <a href="https://ai.google.dev/gemini-api/docs/openai" target="_blank" rel="noopener noreferrer">Gemini docs</a>.</p>
</header>
<section id="messages" class="messages" aria-live="polite"></section>
<div id="thinking" class="message message--assistant" hidden><div class="message__body"><p>Thinking...</p></div></div>
<div id="status" class="status" hidden><span id="status-text"></span> <button id="retry" type="button" hidden>Retry</button></div>
<form id="composer" class="composer" autocomplete="off">
<input id="input" type="text" placeholder="Type your message..." aria-label="Message">
<button id="send" type="submit">Send<span class="sr-only"> message</span></button>
</form>
</main>
<script src="/static/app.js"></script>
</body>
</html>
`)
		return err
	})
}

// MessageBubble renders one committed message. The body goes through r,
// which is responsible for escaping.
func MessageBubble(m conversation.Message, r markdown.Renderer) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="message message--`+templ.EscapeString(string(m.Speaker))+
			`" data-id="`+templ.EscapeString(m.ID)+`"><div class="message__body">`+
			r.Render(m.Text)+`</div></div>`)
		return err
	})
}

// Render writes component as an HTML response.
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// Handler serves component on every request.
func Handler(component templ.Component) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := Render(w, r, component); err != nil {
			http.Error(w, "failed to render page", http.StatusInternalServerError)
		}
	}
}
