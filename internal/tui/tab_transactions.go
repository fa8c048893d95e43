package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
)

// txState is the Transactions tab: a filtered, scrollable record list.
type txState struct {
	catIdx     int // index into model.FilterCategories()
	showIncome bool
	cursor     int
	offset     int

	searching bool
	search    textinput.Model
	query     string
}

func newTxState(cat model.Category) txState {
	ti := textinput.New()
	ti.Placeholder = "name contains..."
	ti.CharLimit = 64
	ti.Width = 32

	s := txState{search: ti}
	for i, c := range model.FilterCategories() {
		if c == cat {
			s.catIdx = i
		}
	}
	return s
}

func (s txState) category() model.Category {
	return model.FilterCategories()[s.catIdx]
}

// moveCursor moves the selection by delta, clamped to n rows.
func (s *txState) moveCursor(delta, n int) {
	if n == 0 {
		s.cursor, s.offset = 0, 0
		return
	}
	s.cursor += delta
	if s.cursor < 0 {
		s.cursor = 0
	}
	if s.cursor >= n {
		s.cursor = n - 1
	}
}

// scrollTo keeps the cursor inside a window of visible rows.
func (s *txState) scrollTo(visible int) {
	if visible <= 0 {
		return
	}
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+visible {
		s.offset = s.cursor - visible + 1
	}
}

// txRecords applies the active filter and search, newest first. The
// category filter only applies to expenses.
func (a App) txRecords() []model.FinancialRecord {
	records := a.snap.Expenses
	if a.tx.showIncome {
		records = a.snap.Incomes
	} else {
		records = pipeline.FilterByCategory(records, a.tx.category())
	}
	records = pipeline.FilterByName(records, a.tx.query)
	return pipeline.SortByDate(records)
}

func (a App) handleTxKey(key string) (tea.Model, tea.Cmd) {
	n := len(model.FilterCategories())
	switch key {
	case "f":
		a.tx.catIdx = (a.tx.catIdx + 1) % n
		a.tx.cursor, a.tx.offset = 0, 0
	case "F":
		a.tx.catIdx = (a.tx.catIdx - 1 + n) % n
		a.tx.cursor, a.tx.offset = 0, 0
	case "i":
		a.tx.showIncome = !a.tx.showIncome
		a.tx.cursor, a.tx.offset = 0, 0
	case "j", "down":
		a.tx.moveCursor(1, len(a.txRecords()))
	case "k", "up":
		a.tx.moveCursor(-1, len(a.txRecords()))
	case "g":
		a.tx.cursor, a.tx.offset = 0, 0
	case "G":
		a.tx.moveCursor(len(a.txRecords()), len(a.txRecords()))
	case "/":
		a.tx.searching = true
		a.tx.search.SetValue(a.tx.query)
		a.tx.search.Focus()
		return a, a.tx.search.Cursor.BlinkCmd()
	case "esc":
		a.tx.query = ""
		a.tx.cursor, a.tx.offset = 0, 0
	}
	return a, nil
}

func (a App) updateTxSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			a.tx.query = strings.TrimSpace(a.tx.search.Value())
			a.tx.searching = false
			a.tx.search.Blur()
			a.tx.cursor, a.tx.offset = 0, 0
			return a, nil
		case "esc":
			a.tx.searching = false
			a.tx.search.Blur()
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.tx.search, cmd = a.tx.search.Update(msg)
	return a, cmd
}

func (a App) renderTransactionsTab(cw, h int) string {
	t := theme.Active
	cur := a.opts.Currency
	records := a.txRecords()

	kind := "Expenses"
	filter := string(a.tx.category())
	if a.tx.showIncome {
		kind, filter = "Incomes", "All"
	}

	// Header: filter, search and the filtered total.
	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Background)
	valueStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Background).Bold(true)
	totalStyle := lipgloss.NewStyle().Foreground(t.Money(!a.tx.showIncome)).Background(t.Background).Bold(true)

	header := labelStyle.Render(" "+kind+"  category ") + valueStyle.Render(filter)
	switch {
	case a.tx.searching:
		header += labelStyle.Render("  search ") + a.tx.search.View()
	case a.tx.query != "":
		header += labelStyle.Render("  search ") + valueStyle.Render(a.tx.query)
	}
	header += labelStyle.Render(fmt.Sprintf("  %d records  total ", len(records))) +
		totalStyle.Render(cli.FormatMoney(pipeline.Total(records), cur))

	// Card chrome: border (2), title (1), column header (1), header line (1).
	visible := h - 5
	if visible < 1 {
		visible = 1
	}
	a.tx.moveCursor(0, len(records))
	a.tx.scrollTo(visible)

	inner := components.CardInnerWidth(cw)
	const dateW, catW, amtW = 12, 12, 14
	nameW := inner - dateW - catW - amtW - 3
	if nameW < 8 {
		nameW = 8
	}

	headStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	var body strings.Builder
	body.WriteString(headStyle.Render(fmt.Sprintf("%-*s %-*s %-*s %*s",
		dateW, "Date", nameW, "Name", catW, "Category", amtW, "Amount")))

	if len(records) == 0 {
		body.WriteString("\n")
		body.WriteString(headStyle.Render("Nothing matches this filter."))
	}

	end := min(a.tx.offset+visible, len(records))
	for i := a.tx.offset; i < end; i++ {
		r := records[i]
		bg := t.Surface
		if i == a.tx.cursor {
			bg = t.SurfaceHover
		}
		base := lipgloss.NewStyle().Background(bg)
		amtColor := t.Money(!a.tx.showIncome)
		if !r.Amount.Valid {
			amtColor = t.Orange
		}
		cat := string(r.Category)
		if cat == "" {
			cat = "-"
		}

		body.WriteString("\n")
		body.WriteString(base.Foreground(t.TextMuted).Render(fmt.Sprintf("%-*s", dateW, cli.FormatDate(r))))
		body.WriteString(base.Render(" "))
		body.WriteString(base.Foreground(t.TextPrimary).Render(fmt.Sprintf("%-*s", nameW, truncStr(r.Name, nameW))))
		body.WriteString(base.Render(" "))
		body.WriteString(base.Foreground(t.Category(r.Category)).Render(fmt.Sprintf("%-*s", catW, cat)))
		body.WriteString(base.Render(" "))
		body.WriteString(base.Foreground(amtColor).Render(fmt.Sprintf("%*s", amtW, cli.FormatAmount(r.Amount, cur))))
	}

	title := ""
	if len(records) > visible {
		title = fmt.Sprintf("%d-%d of %d", a.tx.offset+1, end, len(records))
	}
	return header + "\n" + components.ContentCard(title, body.String(), cw)
}
