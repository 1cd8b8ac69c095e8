package markdown

import (
	"regexp"
	"strings"
)

var (
	// CSI sequences (colors, cursor movement) and OSC sequences (titles, links).
	csiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	oscPattern = regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)
)

// Terminal renders text for a terminal by stripping escape sequences and
// control characters. Markdown markers are left as typed.
type Terminal struct{}

// Ensure Terminal implements Renderer.
var _ Renderer = Terminal{}

// Render returns text without ANSI/OSC sequences or control characters other
// than newline and tab. Carriage returns are normalized away.
func (Terminal) Render(text string) string {
	text = oscPattern.ReplaceAllString(text, "")
	text = csiPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		case r >= 0x80 && r < 0xa0:
			return -1
		default:
			return r
		}
	}, text)
}
