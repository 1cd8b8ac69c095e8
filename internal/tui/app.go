// Package tui is the terminal front end of the chat client.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ashureev/gemini-chat/internal/conversation"
	"github.com/ashureev/gemini-chat/internal/markdown"
)

const (
	msgBusy       = "Wait for the current reply before sending another message."
	msgSendFailed = "Could not reach the chat service. Press ctrl+r to retry."
)

// changedMsg wakes the program after the conversation changed.
type changedMsg struct{}

// doneMsg is delivered when a Submit or Retry returns.
type doneMsg struct {
	err  error
	text string // submitted input, empty for a retry
}

// Model is the bubbletea model for the terminal chat.
type Model struct {
	client   *conversation.Client
	changes  chan struct{}
	renderer markdown.Renderer
	input    textinput.Model

	width    int
	height   int
	offset   int // lines scrolled up from the bottom
	status   string
	isError  bool
	canRetry bool
	quitting bool
}

// NewModel creates the chat program model sending through sender.
func NewModel(sender conversation.Sender, opts ...conversation.Option) Model {
	changes := make(chan struct{}, 1)
	notify := func(conversation.Event) {
		select {
		case changes <- struct{}{}:
		default:
		}
	}

	ti := textinput.New()
	ti.Placeholder = "Type your message..."
	ti.CharLimit = 4000
	ti.Focus()

	return Model{
		client:   conversation.NewClient(sender, append(opts, conversation.WithListener(notify))...),
		changes:  changes,
		renderer: markdown.Terminal{},
		input:    ti,
		width:    80,
		height:   24,
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

// Init starts the cursor blink and waits for conversation changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(m.changes))
}

// Update handles keys, window resizes and exchange results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-4)
		return m, nil

	case changedMsg:
		return m, waitForChange(m.changes)

	case doneMsg:
		m = m.applyResult(msg)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			text := m.input.Value()
			if strings.TrimSpace(text) == "" {
				return m, nil
			}
			if m.client.Pending() {
				m.status, m.isError = msgBusy, false
				return m, nil
			}
			m.input.Reset()
			m.status, m.canRetry = "", false
			m.offset = 0
			return m, m.submit(text)

		case "ctrl+r":
			if !m.canRetry {
				return m, nil
			}
			m.status, m.canRetry = "", false
			return m, m.retry()

		case "pgup":
			m.offset += m.transcriptRows() / 2
			return m, nil

		case "pgdown":
			m.offset = max(0, m.offset-m.transcriptRows()/2)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(text string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		_, err := client.Submit(context.Background(), text)
		return doneMsg{err: err, text: text}
	}
}

func (m Model) retry() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		_, err := client.Retry(context.Background())
		return doneMsg{err: err}
	}
}

func (m Model) applyResult(msg doneMsg) Model {
	err := msg.err
	var sendErr *conversation.SendError
	switch {
	case err == nil, errors.Is(err, conversation.ErrEmptyInput):
	case errors.Is(err, conversation.ErrBusy):
		// The rejected text was cleared on enter; hand it back unless the user typed more.
		if m.input.Value() == "" {
			m.input.SetValue(msg.text)
		}
		m.status, m.isError = msgBusy, false
	case errors.As(err, &sendErr):
		m.status, m.isError, m.canRetry = msgSendFailed, true, true
	default:
		m.status, m.isError = err.Error(), true
	}
	return m
}

// Messages returns the committed conversation.
func (m Model) Messages() []conversation.Message {
	return m.client.Messages()
}

// View renders the transcript, status line and input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("OpenAI Gemini Demo"))
	b.WriteString(dimStyle.Render("  Gemini models via the OpenAI-compatible API"))
	b.WriteString("\n\n")

	lines := m.transcriptLines()
	rows := m.transcriptRows()
	end := len(lines) - min(m.offset, max(0, len(lines)-rows))
	start := max(0, end-rows)
	for _, line := range lines[start:end] {
		b.WriteString(line + "\n")
	}
	for i := end - start; i < rows; i++ {
		b.WriteString("\n")
	}

	switch {
	case m.status == "":
		b.WriteString("\n")
	case m.isError:
		b.WriteString(errorStyle.Render(m.status) + "\n")
	default:
		b.WriteString(noticeStyle.Render(m.status) + "\n")
	}

	b.WriteString(m.input.View() + "\n")
	b.WriteString(helpStyle.Render("  Enter: send  ctrl+r: retry  PgUp/PgDn: scroll  Esc: quit"))
	return b.String()
}

// transcriptRows is the height left for messages after the chrome.
func (m Model) transcriptRows() int {
	return max(3, m.height-6)
}

func (m Model) transcriptLines() []string {
	wrap := lipgloss.NewStyle().Width(max(20, m.width-2)).PaddingLeft(2)

	var lines []string
	for _, msg := range m.client.View() {
		if msg.Pending {
			lines = append(lines, assistantRoleStyle.Render("Gemini"), thinkingStyle.Render("  Thinking..."), "")
			continue
		}
		role := userRoleStyle.Render("You")
		if msg.Speaker == conversation.SpeakerAssistant {
			role = assistantRoleStyle.Render("Gemini")
		}
		lines = append(lines, role)
		lines = append(lines, strings.Split(wrap.Render(m.renderer.Render(msg.Text)), "\n")...)
		lines = append(lines, "")
	}
	return lines
}
