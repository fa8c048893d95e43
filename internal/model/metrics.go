package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategorySum is one category's total, derived on every render.
type CategorySum struct {
	Category Category
	Total    decimal.Decimal
}

// MonthSum holds the total of records dated within one calendar month.
type MonthSum struct {
	Year  int
	Month time.Month
	Total decimal.Decimal
	Count int
}

// Label formats the month as "Jan 2025".
func (m MonthSum) Label() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("Jan 2006")
}

// Summary holds the dashboard totals across both collections.
type Summary struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal

	IncomeCount  int
	ExpenseCount int

	// Invalid counts records whose amount could not be parsed and was
	// counted as zero.
	Invalid int
}
