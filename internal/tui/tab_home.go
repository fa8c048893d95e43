package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
)

const recentOnHome = 5

// homeState is the month shown on the Home tab.
type homeState struct {
	year  int
	month time.Month
}

func (h *homeState) handleKey(key string) {
	switch key {
	case "[":
		h.shift(-1)
	case "]":
		h.shift(1)
	}
}

func (h *homeState) shift(n int) {
	d := time.Date(h.year, h.month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	h.year, h.month = d.Year(), d.Month()
}

func (a App) renderHomeTab(cw int) string {
	t := theme.Active
	cur := a.opts.Currency

	expenses := pipeline.FilterByMonth(a.snap.Expenses, a.home.year, a.home.month)
	incomes := pipeline.FilterByMonth(a.snap.Incomes, a.home.year, a.home.month)
	sum := pipeline.Summarize(expenses, incomes)

	var b strings.Builder

	monthStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Background).Bold(true)
	hintStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Background)
	b.WriteString(monthStyle.Render(" " + cli.FormatMonth(a.home.year, a.home.month)))
	b.WriteString(hintStyle.Render("  [ ] change month"))
	b.WriteString("\n")

	// Month totals
	b.WriteString(components.MetricCardRow([]components.Metric{
		{
			Label: "Income",
			Value: cli.FormatMoney(sum.TotalIncome, cur),
			Delta: fmt.Sprintf("%d records", sum.IncomeCount),
			Color: t.Income(),
		},
		{
			Label: "Expenses",
			Value: cli.FormatMoney(sum.TotalExpense, cur),
			Delta: a.expenseDelta(sum.TotalExpense),
			Color: t.Expense(),
		},
		{
			Label: "Balance",
			Value: cli.FormatMoney(sum.Balance, cur),
			Delta: a.balanceDelta(),
			Color: t.Money(sum.Balance.IsNegative()),
		},
	}, cw))
	b.WriteString("\n")

	// Category grid, all eight categories including empty ones.
	bar := pipeline.BuildChartDataset(expenses, model.Categories(), pipeline.ChartBar)
	half := (len(bar) + 1) / 2
	for _, row := range [][]model.CategorySum{bar[:half], bar[half:]} {
		cards := make([]components.Metric, 0, len(row))
		for _, cs := range row {
			color := t.Category(cs.Category)
			if cs.Total.IsZero() {
				color = t.TextDim
			}
			cards = append(cards, components.Metric{
				Label: string(cs.Category),
				Value: cli.FormatMoney(cs.Total, cur),
				Color: color,
			})
		}
		b.WriteString(components.MetricCardRow(cards, cw))
		b.WriteString("\n")
	}

	b.WriteString(components.ContentCard("Recent expenses", a.recentExpenses(cw), cw))
	return b.String()
}

// expenseDelta compares the month's spending with the month before.
func (a App) expenseDelta(total decimal.Decimal) string {
	prev := a.home
	prev.shift(-1)
	before := pipeline.Total(pipeline.FilterByMonth(a.snap.Expenses, prev.year, prev.month))
	return cli.FormatDelta(total.Sub(before), a.opts.Currency) + " vs " + prev.month.String()[:3]
}

// balanceDelta compares the month against the all-time balance.
func (a App) balanceDelta() string {
	all := a.snap.Summary()
	return "all time " + cli.FormatMoney(all.Balance, a.opts.Currency)
}

func (a App) recentExpenses(cw int) string {
	t := theme.Active
	recent := pipeline.SortByDate(a.snap.Expenses)
	if len(recent) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Render("No expenses yet. Press a to add one.")
	}
	if len(recent) > recentOnHome {
		recent = recent[:recentOnHome]
	}

	inner := components.CardInnerWidth(cw)
	nameW := inner - 12 - 12 - 14 - 3
	if nameW < 8 {
		nameW = 8
	}

	dateStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	nameStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	space := lipgloss.NewStyle().Background(t.Surface)

	lines := make([]string, 0, len(recent))
	for _, r := range recent {
		catStyle := lipgloss.NewStyle().Foreground(t.Category(r.Category)).Background(t.Surface)
		amtStyle := lipgloss.NewStyle().Foreground(t.Expense()).Background(t.Surface)
		if !r.Amount.Valid {
			amtStyle = amtStyle.Foreground(t.Orange)
		}
		lines = append(lines,
			dateStyle.Render(fmt.Sprintf("%-12s", cli.FormatDate(r)))+
				space.Render(" ")+
				nameStyle.Render(fmt.Sprintf("%-*s", nameW, truncStr(r.Name, nameW)))+
				space.Render(" ")+
				catStyle.Render(fmt.Sprintf("%-12s", r.Category))+
				space.Render(" ")+
				amtStyle.Render(fmt.Sprintf("%14s", cli.FormatAmount(r.Amount, a.opts.Currency))))
	}
	return strings.Join(lines, "\n")
}
