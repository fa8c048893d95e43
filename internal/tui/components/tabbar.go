package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/fintrack/internal/tui/theme"
)

// Tab represents a single tab in the tab bar.
type Tab struct {
	Name   string
	Key    rune
	KeyPos int // position of the shortcut letter in the name (-1 if not in name)
}

// Tabs defines all available tabs, in display order.
var Tabs = []Tab{
	{Name: "Home", Key: 'h', KeyPos: 0},
	{Name: "Transactions", Key: 't', KeyPos: 0},
	{Name: "Statistics", Key: 's', KeyPos: 0},
	{Name: "Add", Key: 'a', KeyPos: 0},
	{Name: "Profile", Key: 'p', KeyPos: 0},
}

// TabVisualWidth returns the rendered width of one tab label.
// Inactive tabs show their shortcut in brackets, which adds two columns.
func TabVisualWidth(tab Tab, active bool) int {
	w := lipgloss.Width(tab.Name) + 2 // horizontal padding
	if !active {
		w += 2
		if tab.KeyPos < 0 {
			w++
		}
	}
	return w
}

// RenderTabBar renders the tab bar with the given active index.
func RenderTabBar(activeIdx int, width int) string {
	t := theme.Active

	activeStyle := lipgloss.NewStyle().
		Foreground(t.AccentBright).
		Background(t.SurfaceHover).
		Bold(true).
		Padding(0, 1)

	inactiveStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	keyStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface).
		Bold(true)

	dimKeyStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Background(t.Surface)

	padStyle := lipgloss.NewStyle().Background(t.Surface)

	parts := make([]string, 0, len(Tabs))
	for i, tab := range Tabs {
		if i == activeIdx {
			parts = append(parts, activeStyle.Render(tab.Name))
			continue
		}

		var b strings.Builder
		b.WriteString(padStyle.Render(" "))
		if tab.KeyPos >= 0 && tab.KeyPos < len(tab.Name) {
			b.WriteString(inactiveStyle.Render(tab.Name[:tab.KeyPos]))
			b.WriteString(dimKeyStyle.Render("["))
			b.WriteString(keyStyle.Render(string(tab.Name[tab.KeyPos])))
			b.WriteString(dimKeyStyle.Render("]"))
			b.WriteString(inactiveStyle.Render(tab.Name[tab.KeyPos+1:]))
		} else {
			b.WriteString(inactiveStyle.Render(tab.Name))
			b.WriteString(dimKeyStyle.Render("["))
			b.WriteString(keyStyle.Render(string(tab.Key)))
			b.WriteString(dimKeyStyle.Render("]"))
		}
		b.WriteString(padStyle.Render(" "))
		parts = append(parts, b.String())
	}

	row := strings.Join(parts, padStyle.Render(" "))
	return lipgloss.NewStyle().Background(t.Surface).Width(width).Render(row)
}

// TabIdxByKey returns the tab index for a given key press, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}
