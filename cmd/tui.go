package cmd

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/poller"
	"github.com/theirongolddev/fintrack/internal/tui"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive TUI dashboard",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// logToFile sends logs to a file when none is configured; stderr would draw
// over the dashboard.
func logToFile(cfg *config.Config) {
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(config.CacheDir(), "fintrack-tui.log")
	}
}

func runTUI(_ *cobra.Command, _ []string) error {
	rt, err := newRuntime(logToFile)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	theme.SetActive(cfg.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes
	// Without this, lipgloss may default to Ascii profile (no colors)
	lipgloss.SetColorProfile(termenv.TrueColor)

	category, ok := model.ParseCategory(cfg.General.DefaultCategory)
	if !ok {
		category = model.CategoryAll
	}

	app := tui.NewApp(tui.Options{
		Session: rt.session,
		Auth:    rt.auth,
		Records: rt.records,
		Poll: poller.Config{
			Interval:     cfg.PollInterval(),
			RefreshEvery: cfg.RefreshMin(),
			Logger:       rt.log,
		},
		Currency: cfg.General.Currency,
		Category: category,
		Timeout:  cfg.Timeout(),
		Logger:   rt.log,
		SaveTheme: func(name string) error {
			// Only the file, without env overrides, is written back.
			onDisk, err := config.LoadFile(config.ConfigPath())
			if err != nil {
				return err
			}
			onDisk.Appearance.Theme = name
			return config.Save(onDisk)
		},
	})
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
