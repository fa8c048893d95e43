// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/model"
)

// FormatMoney formats an amount with two decimals, thousands separators and
// an optional currency prefix. e.g., 1234.5 -> "Ksh 1,234.50"
func FormatMoney(d decimal.Decimal, currency string) string {
	s := FormatDecimal(d)
	if currency == "" {
		return s
	}
	if strings.HasPrefix(s, "-") {
		return "-" + currency + " " + s[1:]
	}
	return currency + " " + s
}

// FormatDecimal rounds to two places and adds comma separators.
func FormatDecimal(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, frac, _ := strings.Cut(fixed, ".")
	whole, _ := decimal.NewFromString(intPart)
	out := humanize.BigComma(whole.BigInt()) + "." + frac
	if neg && out != "0.00" {
		return "-" + out
	}
	return out
}

// FormatAmount formats a fetched amount, marking values that failed to parse.
func FormatAmount(a model.Amount, currency string) string {
	if !a.Valid {
		return "n/a"
	}
	return FormatMoney(a.Value, currency)
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	return humanize.Comma(n)
}

// FormatShare formats a 0-100 share as a percentage string.
func FormatShare(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

// FormatDelta formats a money delta with an explicit sign.
func FormatDelta(delta decimal.Decimal, currency string) string {
	if delta.IsNegative() {
		return FormatMoney(delta, currency)
	}
	return "+" + FormatMoney(delta, currency)
}

// FormatDate renders a record date as "02 Jan 2006", or the raw text when
// it cannot be parsed.
func FormatDate(r model.FinancialRecord) string {
	t, ok := r.Time()
	if !ok {
		if r.Date == "" {
			return "-"
		}
		return r.Date
	}
	return t.Format("02 Jan 2006")
}

// FormatAgo renders a timestamp relative to now, e.g. "5 seconds ago".
func FormatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// FormatMonth renders a month label, e.g. "March 2025".
func FormatMonth(year int, month time.Month) string {
	return fmt.Sprintf("%s %d", month, year)
}
