// Package pipeline aggregates fetched financial records into sums and chart data.
// Every function here is pure: same records in, same result out.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/model"
)

// ChartKind selects how BuildChartDataset treats empty categories.
type ChartKind int

const (
	// ChartPie drops categories whose total is zero or negative, since a
	// slice of size zero cannot be drawn.
	ChartPie ChartKind = iota
	// ChartBar keeps every category so the axis is stable across filters.
	ChartBar
)

// SumByCategory returns the exact sum of amounts of records tagged with category.
// Records with an unparseable amount count as zero.
func SumByCategory(records []model.FinancialRecord, category model.Category) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		if r.Category == category {
			sum = sum.Add(r.Amount.Decimal())
		}
	}
	return sum
}

// Total returns the sum of all amounts.
func Total(records []model.FinancialRecord) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(r.Amount.Decimal())
	}
	return sum
}

// CountInvalid reports how many records had their amount coerced to zero.
func CountInvalid(records []model.FinancialRecord) int {
	n := 0
	for _, r := range records {
		if !r.Amount.Valid {
			n++
		}
	}
	return n
}

// BuildChartDataset computes one entry per category, in the order given.
func BuildChartDataset(records []model.FinancialRecord, categories []model.Category, kind ChartKind) []model.CategorySum {
	dataset := make([]model.CategorySum, 0, len(categories))
	for _, c := range categories {
		total := SumByCategory(records, c)
		if kind == ChartPie && !total.IsPositive() {
			continue
		}
		dataset = append(dataset, model.CategorySum{Category: c, Total: total})
	}
	return dataset
}

// PieDataset is BuildChartDataset over all categories for a pie chart.
func PieDataset(records []model.FinancialRecord) []model.CategorySum {
	return BuildChartDataset(records, model.Categories(), ChartPie)
}

// BarDataset is BuildChartDataset over all categories for a bar chart.
func BarDataset(records []model.FinancialRecord) []model.CategorySum {
	return BuildChartDataset(records, model.Categories(), ChartBar)
}

// Shares returns each entry's percentage of the dataset total.
// All shares are zero when the total is not positive.
func Shares(dataset []model.CategorySum) []float64 {
	total := decimal.Zero
	for _, cs := range dataset {
		total = total.Add(cs.Total)
	}

	shares := make([]float64, len(dataset))
	if !total.IsPositive() {
		return shares
	}
	hundred := decimal.NewFromInt(100)
	for i, cs := range dataset {
		shares[i] = cs.Total.Mul(hundred).Div(total).InexactFloat64()
	}
	return shares
}

// Summarize computes dashboard totals from both collections.
func Summarize(expenses, incomes []model.FinancialRecord) model.Summary {
	s := model.Summary{
		TotalExpense: Total(expenses),
		TotalIncome:  Total(incomes),
		ExpenseCount: len(expenses),
		IncomeCount:  len(incomes),
		Invalid:      CountInvalid(expenses) + CountInvalid(incomes),
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	return s
}

// AggregateMonths groups records by calendar month, oldest first.
// Records with an unparseable date are skipped.
func AggregateMonths(records []model.FinancialRecord) []model.MonthSum {
	type key struct {
		year  int
		month time.Month
	}
	monthMap := make(map[key]*model.MonthSum)

	for _, r := range records {
		t, ok := r.Time()
		if !ok {
			continue
		}
		k := key{t.Year(), t.Month()}
		ms, ok := monthMap[k]
		if !ok {
			ms = &model.MonthSum{Year: k.year, Month: k.month, Total: decimal.Zero}
			monthMap[k] = ms
		}
		ms.Total = ms.Total.Add(r.Amount.Decimal())
		ms.Count++
	}

	months := make([]model.MonthSum, 0, len(monthMap))
	for _, ms := range monthMap {
		months = append(months, *ms)
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i].Year != months[j].Year {
			return months[i].Year < months[j].Year
		}
		return months[i].Month < months[j].Month
	})
	return months
}

// FilterByCategory returns records tagged with category. All matches everything.
func FilterByCategory(records []model.FinancialRecord, category model.Category) []model.FinancialRecord {
	return filter(records, func(r model.FinancialRecord) bool {
		return category == model.CategoryAll || category == "" || r.Category == category
	})
}

// FilterByMonth returns records dated within the given month.
func FilterByMonth(records []model.FinancialRecord, year int, month time.Month) []model.FinancialRecord {
	return filter(records, func(r model.FinancialRecord) bool {
		t, ok := r.Time()
		return ok && t.Year() == year && t.Month() == month
	})
}

// FilterByName returns records whose name contains the substring.
func FilterByName(records []model.FinancialRecord, name string) []model.FinancialRecord {
	if name == "" {
		return records
	}
	return filter(records, func(r model.FinancialRecord) bool {
		return containsIgnoreCase(r.Name, name)
	})
}

// SortByDate returns a copy sorted newest first. Undated records sink to the end.
func SortByDate(records []model.FinancialRecord) []model.FinancialRecord {
	sorted := make([]model.FinancialRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, okI := sorted[i].Time()
		tj, okJ := sorted[j].Time()
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})
	return sorted
}

func filter(records []model.FinancialRecord, keep func(model.FinancialRecord) bool) []model.FinancialRecord {
	result := make([]model.FinancialRecord, 0, len(records))
	for _, r := range records {
		if keep(r) {
			result = append(result, r)
		}
	}
	return result
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
