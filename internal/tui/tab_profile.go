package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/session"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
)

func (a App) handleProfileKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "L":
		name := a.sess.Current().DisplayName()
		a.logout()
		return a, tea.Batch(a.setFlash("Logged out "+name, false), a.auth.form.Init())

	case "T":
		next := theme.Next(theme.Active)
		theme.Active = next
		a.spinner.Style = lipgloss.NewStyle().Foreground(next.Accent).Background(next.Surface)
		if a.opts.SaveTheme == nil {
			return a, a.setFlash("Theme: "+next.Name, false)
		}
		if err := a.opts.SaveTheme(next.Name); err != nil {
			a.log.Warnw("saving theme", "theme", next.Name, "error", err)
			return a, a.setFlash("Theme applied but not saved: "+err.Error(), true)
		}
		return a, a.setFlash("Theme saved: "+next.Name, false)
	}
	return a, nil
}

func (a App) renderProfileTab(cw int) string {
	t := theme.Active
	w := min(cw, 90)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	accentStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	row := func(label, value string) string {
		return labelStyle.Render(fmt.Sprintf("%-14s", label)) + valueStyle.Render(value)
	}

	s := a.sess.Current()
	var account []string
	if s.User != nil {
		u := s.User
		account = append(account,
			accentStyle.Render(s.DisplayName()),
			"",
			row("Email", u.Email),
			labelStyle.Render(fmt.Sprintf("%-14s", "Balance"))+
				lipgloss.NewStyle().Foreground(t.Money(u.Balance.IsNegative())).Background(t.Surface).
					Render(cli.FormatMoney(u.Balance, a.opts.Currency)),
		)
		if exp, ok := session.TokenExpiry(u.Token); ok {
			left := "expired"
			if d := time.Until(exp); d > 0 {
				left = "in " + d.Round(time.Minute).String()
			}
			account = append(account, row("Token expires", exp.Local().Format("2006-01-02 15:04")+" ("+left+")"))
		}
	}

	interval := a.opts.Poll.Interval
	lastUpdate := "never"
	if !a.snap.FetchedAt.IsZero() {
		lastUpdate = cli.FormatAgo(a.snap.FetchedAt)
	}
	if a.run != nil {
		interval = a.run.poller.Interval()
	}
	sum := a.snap.Summary()

	data := []string{
		row("Expenses", fmt.Sprintf("%d", sum.ExpenseCount)),
		row("Incomes", fmt.Sprintf("%d", sum.IncomeCount)),
		row("Poll every", interval.String()),
		row("Last update", lastUpdate),
		row("Theme", t.Name),
	}
	if sum.Invalid > 0 {
		data = append(data, row("Unreadable", fmt.Sprintf("%d amounts counted as 0", sum.Invalid)))
	}

	keys := dimStyle.Render("T next theme · L log out · r refresh now")

	var b strings.Builder
	b.WriteString(components.ContentCard("Account", strings.Join(account, "\n"), w))
	b.WriteString("\n")
	b.WriteString(components.ContentCard("Data", strings.Join(data, "\n")+"\n\n"+keys, w))
	return b.String()
}
