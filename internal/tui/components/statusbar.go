package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/fintrack/internal/tui/theme"
)

// StatusInfo is what the bottom bar reports.
type StatusInfo struct {
	User       string
	DataAge    string
	Refreshing bool
	Message    string
	IsError    bool
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, info StatusInfo) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	msgColor := t.Accent
	if info.IsError {
		msgColor = t.Orange
	}
	msgStyle := lipgloss.NewStyle().Foreground(msgColor).Background(t.Surface)

	left := style.Render(" [?]help  [r]efresh  [q]uit")
	if info.Message != "" {
		left += style.Render("  ") + msgStyle.Render(info.Message)
	}

	var right []string
	if info.Refreshing {
		right = append(right, "refreshing...")
	} else if info.DataAge != "" {
		right = append(right, "updated "+info.DataAge)
	}
	if info.User != "" {
		right = append(right, info.User)
	}
	rightStr := style.Render(strings.Join(right, " · ") + " ")

	// Pad middle
	padding := width - lipgloss.Width(left) - lipgloss.Width(rightStr)
	if padding < 0 {
		padding = 0
	}

	return left + style.Render(strings.Repeat(" ", padding)) + rightStr
}
