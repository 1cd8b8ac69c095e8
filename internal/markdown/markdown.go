// Package markdown renders chat text for display.
//
// Only a small Markdown subset is recognized: bold, italic, inline code,
// lists and fenced or indented code blocks. Anything else (headings, links, images, block
// quotes, raw HTML) is kept as escaped literal text.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Renderer turns message text into safe display output.
type Renderer interface {
	Render(text string) string
}

// HTML renders the constrained subset to HTML. Raw HTML in the source is
// always escaped.
type HTML struct {
	md goldmark.Markdown
}

// Ensure HTML implements Renderer.
var _ Renderer = (*HTML)(nil)

// NewHTML creates an HTML renderer.
func NewHTML() *HTML {
	p := parser.NewParser(
		parser.WithBlockParsers(
			util.Prioritized(parser.NewListParser(), 300),
			util.Prioritized(parser.NewListItemParser(), 400),
			util.Prioritized(parser.NewCodeBlockParser(), 600),
			util.Prioritized(parser.NewFencedCodeBlockParser(), 700),
			util.Prioritized(parser.NewParagraphParser(), 1000),
		),
		parser.WithInlineParsers(
			util.Prioritized(parser.NewCodeSpanParser(), 100),
			util.Prioritized(parser.NewEmphasisParser(), 500),
		),
	)

	return &HTML{
		md: goldmark.New(
			goldmark.WithParser(p),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// Render converts text to HTML. It never fails: a renderer error or panic
// degrades to the escaped literal text in a paragraph.
func (h *HTML) Render(text string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("markdown render panicked, using literal text", "panic", fmt.Sprint(r))
			out = literal(text)
		}
	}()

	var buf bytes.Buffer
	if err := h.md.Convert([]byte(text), &buf); err != nil {
		slog.Warn("markdown render failed, using literal text", "error", err)
		return literal(text)
	}
	return buf.String()
}

func literal(text string) string {
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
	return "<p>" + escaped + "</p>\n"
}
