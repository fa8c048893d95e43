package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
)

// statsState holds the Statistics period and category filter.
type statsState struct {
	monthOnly bool
	catIdx    int // index into model.FilterCategories()
}

func (s *statsState) handleKey(key string) {
	n := len(model.FilterCategories())
	switch key {
	case "m":
		s.monthOnly = !s.monthOnly
	case "c":
		s.catIdx = (s.catIdx + 1) % n
	case "C":
		s.catIdx = (s.catIdx - 1 + n) % n
	}
}

func (s statsState) category() model.Category {
	return model.FilterCategories()[s.catIdx]
}

func (a App) renderStatisticsTab(cw int) string {
	t := theme.Active
	cur := a.opts.Currency

	expenses := a.snap.Expenses
	period := "All time"
	if a.stats.monthOnly {
		expenses = pipeline.FilterByMonth(expenses, a.home.year, a.home.month)
		period = cli.FormatMonth(a.home.year, a.home.month)
	}

	var b strings.Builder
	periodStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Background).Bold(true)
	hintStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Background)
	b.WriteString(periodStyle.Render(" " + period))
	b.WriteString(hintStyle.Render("  m month / all time · c C category"))
	b.WriteString("\n")

	cat := a.stats.category()
	total := pipeline.Total(pipeline.FilterByCategory(expenses, cat))
	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Background)
	catStyle := lipgloss.NewStyle().Foreground(t.Category(cat)).Background(t.Background).Bold(true)
	totalStyle := lipgloss.NewStyle().Foreground(t.Expense()).Background(t.Background).Bold(true)
	b.WriteString(labelStyle.Render(" Total expenses ") + catStyle.Render(string(cat)) +
		labelStyle.Render("  ") + totalStyle.Render(cli.FormatMoney(total, cur)))
	b.WriteString("\n")

	var left, right int
	if a.isCompactLayout() {
		left, right = cw, cw
	} else {
		w := components.LayoutRow(cw, 2)
		left, right = w[0], w[1]
	}

	shares := components.ContentCard("Share of spending", a.renderShares(expenses, left), left)
	bars := components.ContentCard("Spending by category", a.renderCategoryBars(expenses, right), right)
	if a.isCompactLayout() {
		b.WriteString(shares + "\n" + bars)
	} else {
		b.WriteString(components.CardRow([]string{shares, bars}))
	}
	b.WriteString("\n")

	if !a.stats.monthOnly {
		b.WriteString(components.ContentCard("Monthly trend", a.renderTrends(cw), cw))
		b.WriteString("\n")
	}

	if n := pipeline.CountInvalid(expenses); n > 0 {
		warn := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Background)
		b.WriteString(warn.Render(fmt.Sprintf(" %d expenses had unreadable amounts and count as 0", n)))
	}
	return b.String()
}

// renderShares draws the pie dataset: only categories with spending.
func (a App) renderShares(expenses []model.FinancialRecord, outer int) string {
	t := theme.Active
	pie := pipeline.PieDataset(expenses)
	if len(pie) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Render("No spending in this period.")
	}

	pcts := pipeline.Shares(pie)
	const labelW = 10
	amountW := 0
	amounts := make([]string, len(pie))
	for i, cs := range pie {
		amounts[i] = cli.FormatMoney(cs.Total, a.opts.Currency)
		amountW = max(amountW, lipgloss.Width(amounts[i]))
	}
	barW := components.CardInnerWidth(outer) - labelW - amountW - 10
	if barW < 5 {
		barW = 5
	}

	lines := make([]string, len(pie))
	for i, cs := range pie {
		lines[i] = components.ShareBar(string(cs.Category), pcts[i], amounts[i], t.Category(cs.Category), labelW, barW)
	}
	return strings.Join(lines, "\n")
}

// renderCategoryBars draws the bar dataset: every category, zeros kept.
func (a App) renderCategoryBars(expenses []model.FinancialRecord, outer int) string {
	t := theme.Active
	dataset := pipeline.BarDataset(expenses)
	bars := make([]components.Bar, len(dataset))
	for i, cs := range dataset {
		bars[i] = components.Bar{
			Label: string(cs.Category),
			Value: cs.Total.InexactFloat64(),
			Text:  cli.FormatMoney(cs.Total, a.opts.Currency),
			Color: t.Category(cs.Category),
		}
	}
	return components.BarChart(bars, components.CardInnerWidth(outer))
}

func (a App) renderTrends(cw int) string {
	t := theme.Active
	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	line := func(label string, records []model.FinancialRecord, color lipgloss.Color) string {
		months := pipeline.AggregateMonths(records)
		if len(months) == 0 {
			return labelStyle.Render(fmt.Sprintf("%-9s", label)) + dimStyle.Render("no data")
		}
		maxPoints := components.CardInnerWidth(cw) - 40
		if maxPoints > 0 && len(months) > maxPoints {
			months = months[len(months)-maxPoints:]
		}
		values := make([]float64, len(months))
		for i, m := range months {
			values[i] = m.Total.InexactFloat64()
		}
		first, last := months[0], months[len(months)-1]
		return labelStyle.Render(fmt.Sprintf("%-9s", label)) +
			components.Sparkline(values, color) +
			dimStyle.Render(fmt.Sprintf("  %s to %s  latest %s", first.Label(), last.Label(),
				cli.FormatMoney(last.Total, a.opts.Currency)))
	}

	return line("Expenses", a.snap.Expenses, t.Expense()) + "\n" +
		line("Incomes", a.snap.Incomes, t.Income()) + "\n" +
		dimStyle.Render("Updated "+a.snap.FetchedAt.Format(time.Kitchen))
}
