// Terminal chat client for the Gemini chat demo server.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/ashureev/gemini-chat/internal/config"
	"github.com/ashureev/gemini-chat/internal/conversation"
	"github.com/ashureev/gemini-chat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open log file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		logger = slog.New(slog.NewJSONHandler(f, nil))
	}
	slog.SetDefault(logger)

	m := tui.NewModel(
		conversation.NewHTTPSender(cfg.ProxyURL, nil),
		conversation.WithLogger(logger),
	)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
