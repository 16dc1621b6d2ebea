package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/tui"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"tui"},
	Short:   "Launch the live dashboard",
	RunE:    runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	// Log lines would tear the alt screen.
	_ = os.MkdirAll(config.DataDir(), 0o750)
	logPath := filepath.Join(config.DataDir(), "watch.log")
	//nolint:gosec // log path is under the user's data dir
	if f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600); err == nil {
		rt.log.SetOutput(f)
		defer func() { _ = f.Close() }()
	} else {
		rt.log.SetOutput(io.Discard)
	}

	theme.SetActive(rt.cfg.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes
	// Without this, lipgloss may default to Ascii profile (no colors)
	lipgloss.SetColorProfile(termenv.TrueColor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if feed := rt.startFeed(); feed != nil {
		go func() { _ = feed.Run(ctx) }()
	}

	app := tui.NewApp(tui.Options{
		Deps:     rt.deps(),
		Currency: rt.cfg.General.Currency,
	})
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
