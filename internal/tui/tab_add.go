package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/fintrack/internal/api"
	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
	"github.com/theirongolddev/fintrack/internal/validate"
)

// addValues backs the add form; see authValues for why it is a pointer.
type addValues struct {
	kind     string
	name     string
	amount   string
	category string
	date     string
}

type addState struct {
	form *huh.Form
	vals *addValues
	busy bool
}

type addDoneMsg struct {
	rec  model.FinancialRecord
	sent model.NewRecord
	err  error
}

func newAddState() addState {
	return newAddStateWith(&addValues{kind: model.KindExpense.String()})
}

func newAddStateWith(v *addValues) addState {
	return addState{form: newAddForm(v), vals: v}
}

func newAddForm(v *addValues) *huh.Form {
	cats := make([]huh.Option[string], 0, len(model.Categories()))
	for _, c := range model.Categories() {
		cats = append(cats, huh.NewOption(string(c), string(c)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Record").
				Options(
					huh.NewOption("Expense", model.KindExpense.String()),
					huh.NewOption("Income", model.KindIncome.String()),
				).
				Value(&v.kind),
			huh.NewInput().
				Title("Name").
				Value(&v.name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("please fill out all fields")
					}
					return nil
				}),
			huh.NewInput().
				Title("Amount").
				Placeholder("0.00").
				Value(&v.amount).
				Validate(func(s string) error {
					_, err := validate.Amount(s)
					return err
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Category").
				Options(cats...).
				Value(&v.category),
		).WithHideFunc(func() bool { return v.kind != model.KindExpense.String() }),
		huh.NewGroup(
			huh.NewInput().
				Title("Date").
				Placeholder("YYYY-MM-DD (blank for today)").
				Value(&v.date),
		),
	).WithShowHelp(true)
}

func (v addValues) input() validate.RecordInput {
	kind := model.KindExpense
	if v.kind == model.KindIncome.String() {
		kind = model.KindIncome
	}
	in := validate.RecordInput{Kind: kind, Name: v.name, Amount: v.amount, Date: v.date}
	if kind == model.KindExpense {
		in.Category = v.category
	}
	return in
}

func (a App) updateAddForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.add.busy {
		return a, nil
	}

	form, cmd := a.add.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.add.form = f
	}

	switch a.add.form.State {
	case huh.StateCompleted:
		rec, err := validate.Record(a.add.vals.input(), time.Now())
		if err != nil {
			// Keep what was typed so the user only fixes the bad field.
			kept := *a.add.vals
			a.add = newAddStateWith(&kept)
			a.resizeForms()
			return a, tea.Batch(a.setFlash(err.Error(), true), a.add.form.Init())
		}
		a.add.busy = true
		return a, a.addCmd(rec)
	case huh.StateAborted:
		a.add = newAddState()
		a.resizeForms()
		a.activeTab = tabHome
		return a, nil
	}
	return a, cmd
}

func (a App) addCmd(rec model.NewRecord) tea.Cmd {
	records, timeout := a.opts.Records, a.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		created, err := records.Add(ctx, rec)
		return addDoneMsg{rec: created, sent: rec, err: err}
	}
}

// pollNowCmd refetches after a write. The snapshot reaches the model through
// the poller subscription.
func (a App) pollNowCmd() tea.Cmd {
	if a.run == nil {
		return nil
	}
	p, timeout := a.run.poller, a.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		p.Now(ctx)
		return nil
	}
}

func (a App) handleAddDone(msg addDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if api.IsAuth(msg.err) {
			return a, a.expire(msg.err)
		}
		kept := *a.add.vals
		a.add = newAddStateWith(&kept)
		a.resizeForms()
		return a, tea.Batch(a.setFlash(api.UserMessage(msg.err), true), a.add.form.Init())
	}

	name := msg.rec.Name
	if name == "" {
		name = msg.sent.Name
	}
	text := "Added " + msg.sent.Kind.String() + " " + name + ": " + cli.FormatMoney(msg.sent.Amount, a.opts.Currency)

	a.add = newAddState()
	a.resizeForms()
	return a, tea.Batch(a.setFlash(text, false), a.add.form.Init(), a.pollNowCmd())
}

func (a App) renderAddTab(cw int) string {
	t := theme.Active
	w := min(cw, 80)

	var body string
	if a.add.busy {
		body = a.spinner.View() + lipgloss.NewStyle().Foreground(t.TextMuted).Render(" Saving...")
	} else {
		body = a.add.form.View()
	}

	hint := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Background).
		Render(" enter next field · esc back to Home")
	return components.ContentCard("New record", body, w) + "\n" + hint
}
