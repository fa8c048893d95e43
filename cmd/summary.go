package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/pipeline"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Income, expenses, balance and per-category totals",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(_ *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if !rt.session.Current().IsAuthenticated {
		fmt.Println("\n  Not logged in.")
		fmt.Println("  Run `fintrack login` (or `fintrack register` to create an account).")
		return nil
	}

	snap, err := rt.fetch()
	if err != nil {
		return err
	}

	sum := snap.Summary()
	currency := rt.cfg.General.Currency

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("FINANCES  %s", rt.session.Current().DisplayName())))
	fmt.Println()

	rows := [][]string{
		{"Income", cli.FormatMoney(sum.TotalIncome, currency)},
		{"Expenses", cli.FormatMoney(sum.TotalExpense, currency)},
		{"Balance", cli.RenderMoney(cli.FormatMoney(sum.Balance, currency), sum.Balance.IsNegative())},
		{"---"},
		{"Incomes recorded", cli.FormatNumber(int64(sum.IncomeCount))},
		{"Expenses recorded", cli.FormatNumber(int64(sum.ExpenseCount))},
		{"---"},
	}
	for _, cs := range pipeline.BarDataset(snap.Expenses) {
		rows = append(rows, []string{string(cs.Category), cli.FormatMoney(cs.Total, currency)})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}))

	if sum.Invalid > 0 {
		fmt.Fprintf(os.Stderr, "\n  %d records had unreadable amounts and count as 0\n", sum.Invalid)
	}
	return nil
}
