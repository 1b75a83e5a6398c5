package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/loveletter/internal/tui"
)

// ClientCmd connects to a server as an interactive player
type ClientCmd struct {
	Server string `default:"ws://localhost:8080/ws" help:"WebSocket server URL"`
	Name   string `arg:"" help:"Your display name"`
	Debug  bool   `help:"Log debug output to loveletter-client.log"`
}

func (c *ClientCmd) Run() error {
	// The TUI owns the terminal, so logs go to a file or nowhere.
	logger := log.New(os.Stderr)
	logger.SetLevel(log.FatalLevel)
	if c.Debug {
		f, err := os.OpenFile("loveletter-client.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer func() { _ = f.Close() }()
		logger = log.New(f)
		logger.SetLevel(log.DebugLevel)
	}

	model := tui.NewModel(logger, c.Server, c.Name)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run client: %w", err)
	}
	return nil
}
