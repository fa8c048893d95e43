package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/fintrack/internal/tui/theme"
)

// Bar is one row of a BarChart.
type Bar struct {
	Label string
	Value float64
	Text  string // formatted value shown after the bar
	Color lipgloss.Color
}

// Sparkline renders a unicode sparkline from values.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	peak := values[0]
	for _, v := range values[1:] {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		peak = 1
	}

	style := lipgloss.NewStyle().Foreground(color).Background(t.Surface)

	var buf strings.Builder
	buf.Grow(len(values) * 3)
	for _, v := range values {
		idx := int(v / peak * float64(len(blocks)-1))
		if idx >= len(blocks) {
			idx = len(blocks) - 1
		}
		if idx < 0 {
			idx = 0
		}
		buf.WriteRune(blocks[idx])
	}

	return style.Render(buf.String())
}

// BarChart renders one horizontal bar per entry, scaled to the largest value,
// followed by an axis with a rounded maximum. Zero values keep their row.
func BarChart(bars []Bar, width int) string {
	if len(bars) == 0 {
		return ""
	}
	t := theme.Active

	labelW, textW := 0, 0
	maxVal := 0.0
	for _, b := range bars {
		labelW = max(labelW, lipgloss.Width(b.Label))
		textW = max(textW, lipgloss.Width(b.Text))
		maxVal = math.Max(maxVal, b.Value)
	}
	ceiling := niceCeiling(maxVal)

	barW := width - labelW - textW - 3
	if barW < 5 {
		barW = 5
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	textStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	axisStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	space := lipgloss.NewStyle().Background(t.Surface)

	var b strings.Builder
	for _, bar := range bars {
		n := 0
		if bar.Value > 0 {
			n = int(math.Round(bar.Value / ceiling * float64(barW)))
			if n == 0 {
				n = 1
			}
		}
		color := bar.Color
		if color == "" {
			color = t.Accent
		}
		barStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface)

		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", labelW, bar.Label)))
		b.WriteString(axisStyle.Render(" │"))
		b.WriteString(barStyle.Render(strings.Repeat("█", n)))
		b.WriteString(space.Render(strings.Repeat(" ", barW-n+1)))
		b.WriteString(textStyle.Render(fmt.Sprintf("%*s", textW, bar.Text)))
		b.WriteString("\n")
	}

	// Axis: 0 at the left edge, the ceiling at the right.
	top := compactNumber(ceiling)
	b.WriteString(space.Render(strings.Repeat(" ", labelW+1)))
	b.WriteString(axisStyle.Render("└" + strings.Repeat("─", barW)))
	b.WriteString("\n")
	gap := barW - lipgloss.Width(top)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(space.Render(strings.Repeat(" ", labelW+1)))
	b.WriteString(axisStyle.Render("0" + strings.Repeat(" ", gap) + top))

	return b.String()
}

// niceCeiling rounds v up to 1, 2 or 5 times a power of ten.
func niceCeiling(v float64) float64 {
	if v <= 0 {
		return 1
	}
	exp := math.Floor(math.Log10(v))
	base := math.Pow(10, exp)
	for _, m := range []float64{1, 2, 5, 10} {
		if v <= m*base {
			return m * base
		}
	}
	return 10 * base
}

func compactNumber(v float64) string {
	switch {
	case v >= 1e9:
		return trimZero(fmt.Sprintf("%.1f", v/1e9)) + "B"
	case v >= 1e6:
		return trimZero(fmt.Sprintf("%.1f", v/1e6)) + "M"
	case v >= 1e3:
		return trimZero(fmt.Sprintf("%.1f", v/1e3)) + "k"
	case v >= 1:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}
