package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/validate"
)

var (
	flagCategory  string
	flagMonth     string
	flagLimit     int
	flagRecName   string
	flagRecAmount string
	flagRecDate   string
)

var expensesCmd = &cobra.Command{
	Use:   "expenses",
	Short: "List expenses, newest first",
	RunE:  func(_ *cobra.Command, _ []string) error { return runList(model.KindExpense) },
}

var incomesCmd = &cobra.Command{
	Use:   "incomes",
	Short: "List incomes, newest first",
	RunE:  func(_ *cobra.Command, _ []string) error { return runList(model.KindIncome) },
}

var addExpenseCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a new expense",
	RunE:  func(cmd *cobra.Command, _ []string) error { return runAdd(cmd, model.KindExpense) },
}

var addIncomeCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a new income",
	RunE:  func(cmd *cobra.Command, _ []string) error { return runAdd(cmd, model.KindIncome) },
}

func init() {
	expensesCmd.Flags().StringVarP(&flagCategory, "category", "c", "", "Filter to category (All, Food, Fuel, ...)")
	for _, c := range []*cobra.Command{expensesCmd, incomesCmd} {
		c.Flags().StringVar(&flagMonth, "month", "", "Filter to month (YYYY-MM)")
		c.Flags().IntVarP(&flagLimit, "limit", "l", 20, "Number of records to show")
	}

	for _, c := range []*cobra.Command{addExpenseCmd, addIncomeCmd} {
		c.Flags().StringVar(&flagRecName, "name", "", "What the money was for")
		c.Flags().StringVar(&flagRecAmount, "amount", "", "Amount, e.g. 120.50")
		c.Flags().StringVar(&flagRecDate, "date", "", "Date (YYYY-MM-DD, default today)")
	}
	addExpenseCmd.Flags().StringVarP(&flagCategory, "category", "c", "", "Expense category")

	expensesCmd.AddCommand(addExpenseCmd)
	incomesCmd.AddCommand(addIncomeCmd)
	rootCmd.AddCommand(expensesCmd, incomesCmd)
}

func runList(kind model.RecordKind) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	snap, err := rt.fetch()
	if err != nil {
		return err
	}

	records := snap.Incomes
	if kind == model.KindExpense {
		records = snap.Expenses
	}

	cat := model.CategoryAll
	if kind == model.KindExpense && flagCategory != "" {
		c, ok := model.ParseCategory(flagCategory)
		if !ok {
			return fmt.Errorf("unknown category %q", flagCategory)
		}
		cat = c
	}
	records = pipeline.FilterByCategory(records, cat)

	if flagMonth != "" {
		m, err := time.Parse("2006-01", flagMonth)
		if err != nil {
			return fmt.Errorf("--month must be YYYY-MM, got %q", flagMonth)
		}
		records = pipeline.FilterByMonth(records, m.Year(), m.Month())
	}

	if len(records) == 0 {
		fmt.Printf("\n  No %ss found.\n", kind)
		return nil
	}

	records = pipeline.SortByDate(records)
	total := pipeline.Total(records)
	shown := records
	if flagLimit > 0 && len(shown) > flagLimit {
		shown = shown[:flagLimit]
	}

	currency := rt.cfg.General.Currency
	title := fmt.Sprintf("%sS  %s (showing %d of %d)", strings.ToUpper(kind.String()), cat, len(shown), len(records))

	fmt.Println()
	fmt.Println(cli.RenderTitle(title))
	fmt.Println()

	headers := []string{"Date", "Name", "Amount"}
	if kind == model.KindExpense {
		headers = []string{"Date", "Name", "Category", "Amount"}
	}

	rows := make([][]string, 0, len(shown)+2)
	for _, r := range shown {
		row := []string{cli.FormatDate(r), truncate(r.Name, 24)}
		if kind == model.KindExpense {
			row = append(row, string(r.Category))
		}
		rows = append(rows, append(row, cli.FormatAmount(r.Amount, currency)))
	}
	rows = append(rows, []string{"---"})
	totalRow := []string{"Total", ""}
	if kind == model.KindExpense {
		totalRow = append(totalRow, "")
	}
	rows = append(rows, append(totalRow, cli.FormatMoney(total, currency)))

	fmt.Print(cli.RenderTable(cli.Table{Headers: headers, Rows: rows}))

	if n := pipeline.CountInvalid(records); n > 0 {
		fmt.Fprintf(os.Stderr, "\n  %d records had unreadable amounts and count as 0\n", n)
	}
	return nil
}

func runAdd(cmd *cobra.Command, kind model.RecordKind) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.requireLogin(); err != nil {
		return err
	}

	in := validate.RecordInput{
		Kind:     kind,
		Name:     flagRecName,
		Amount:   flagRecAmount,
		Category: flagCategory,
		Date:     flagRecDate,
	}
	if in.Name == "" || in.Amount == "" || (kind == model.KindExpense && in.Category == "") {
		if err := recordForm(&in).Run(); err != nil {
			return err
		}
	}

	rec, err := validate.Record(in, time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, rt.cfg.Timeout())
	defer cancel()

	created, err := rt.records.Add(ctx, rec)
	if err != nil {
		return rt.apiError(err)
	}

	fmt.Println()
	fmt.Printf("  Added %s %q: %s\n", kind, created.Name, cli.FormatMoney(rec.Amount, rt.cfg.General.Currency))
	if rec.Category != "" {
		fmt.Printf("  Category: %s\n", rec.Category)
	}
	fmt.Println()
	return nil
}

// recordForm prompts for whatever the flags left out.
func recordForm(in *validate.RecordInput) *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Name").
			Value(&in.Name).
			Validate(required("name")),
		huh.NewInput().
			Title("Amount").
			Value(&in.Amount).
			Validate(func(s string) error {
				_, err := validate.Amount(s)
				return err
			}),
	}

	if in.Kind == model.KindExpense {
		opts := make([]huh.Option[string], 0, len(model.Categories()))
		for _, c := range model.Categories() {
			opts = append(opts, huh.NewOption(string(c), string(c)))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Category").
			Options(opts...).
			Value(&in.Category))
	}

	fields = append(fields, huh.NewInput().
		Title("Date").
		Placeholder("YYYY-MM-DD (blank for today)").
		Value(&in.Date).
		Validate(func(s string) error {
			_, err := validate.Date(s, time.Now())
			return err
		}))

	return huh.NewForm(huh.NewGroup(fields...))
}

func required(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
