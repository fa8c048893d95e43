package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
)

var flagStatsCategory string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Expense statistics by category and month",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVarP(&flagStatsCategory, "category", "c", "All", "Category to total (All for every category)")
	statsCmd.Flags().StringVar(&flagMonth, "month", "", "Restrict to month (YYYY-MM)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, _ []string) error {
	cat, ok := model.ParseCategory(flagStatsCategory)
	if !ok {
		return fmt.Errorf("unknown category %q", flagStatsCategory)
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	snap, err := rt.fetch()
	if err != nil {
		return err
	}

	expenses := snap.Expenses
	period := "All time"
	if flagMonth != "" {
		m, err := time.Parse("2006-01", flagMonth)
		if err != nil {
			return fmt.Errorf("--month must be YYYY-MM, got %q", flagMonth)
		}
		expenses = pipeline.FilterByMonth(expenses, m.Year(), m.Month())
		period = cli.FormatMonth(m.Year(), m.Month())
	}

	currency := rt.cfg.General.Currency

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("STATISTICS  %s", period)))
	fmt.Println()

	filtered := pipeline.FilterByCategory(expenses, cat)
	fmt.Printf("  Total spent (%s): %s\n", cat, cli.FormatMoney(pipeline.Total(filtered), currency))
	fmt.Println()

	if len(expenses) == 0 {
		fmt.Println("  No expenses in this period.")
		return nil
	}

	// Pie: categories with spending, as shares.
	pie := pipeline.PieDataset(expenses)
	if len(pie) > 0 {
		shares := pipeline.Shares(pie)
		rows := make([][]string, 0, len(pie))
		for i, cs := range pie {
			rows = append(rows, []string{
				string(cs.Category),
				cli.FormatMoney(cs.Total, currency),
				cli.FormatShare(shares[i]),
			})
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Share of spending",
			Headers: []string{"Category", "Total", "Share"},
			Rows:    rows,
		}))
		fmt.Println()
	}

	// Bar: every category, zeros included.
	bar := pipeline.BarDataset(expenses)
	var maxVal float64
	for _, cs := range bar {
		if v := cs.Total.InexactFloat64(); v > maxVal {
			maxVal = v
		}
	}
	fmt.Println("  Spending by category")
	fmt.Println()
	for _, cs := range bar {
		fmt.Println(cli.RenderHorizontalBar(
			string(cs.Category), 10,
			cs.Total.InexactFloat64(), maxVal, 30,
			cli.FormatMoney(cs.Total, currency),
			cli.CategoryColor(cs.Category),
		))
	}

	if flagMonth == "" {
		months := pipeline.AggregateMonths(filtered)
		if len(months) > 1 {
			values := make([]float64, len(months))
			for i, m := range months {
				values[i] = m.Total.InexactFloat64()
			}
			first, last := months[0], months[len(months)-1]
			fmt.Println()
			fmt.Printf("  Monthly trend  %s  (%s to %s)\n",
				cli.RenderSparkline(values),
				first.Label(), last.Label())
		}
	}

	if n := pipeline.CountInvalid(expenses); n > 0 {
		fmt.Println()
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%d expenses had unreadable amounts and count as 0", n)))
	}
	return nil
}
