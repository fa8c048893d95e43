package cli

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/model"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in       string
		currency string
		want     string
	}{
		{"0", "", "0.00"},
		{"150", "Ksh", "Ksh 150.00"},
		{"1234.5", "Ksh", "Ksh 1,234.50"},
		{"1234567.891", "", "1,234,567.89"},
		{"-42.1", "Ksh", "-Ksh 42.10"},
		{"-0.001", "", "0.00"},
		{"12345678901234567890.5", "", "12,345,678,901,234,567,890.50"},
		{"-98765432109876543210", "Ksh", "-Ksh 98,765,432,109,876,543,210.00"},
	}
	for _, tt := range tests {
		got := FormatMoney(decimal.RequireFromString(tt.in), tt.currency)
		if got != tt.want {
			t.Errorf("FormatMoney(%s, %q) = %q, want %q", tt.in, tt.currency, got, tt.want)
		}
	}
}

func TestFormatAmountInvalid(t *testing.T) {
	if got := FormatAmount(model.Amount{Raw: "abc"}, "Ksh"); got != "n/a" {
		t.Errorf("FormatAmount(invalid) = %q, want n/a", got)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{-1234567, "-1,234,567"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDelta(t *testing.T) {
	if got := FormatDelta(decimal.NewFromInt(5), ""); got != "+5.00" {
		t.Errorf("FormatDelta(5) = %q", got)
	}
	if got := FormatDelta(decimal.NewFromInt(-5), ""); got != "-5.00" {
		t.Errorf("FormatDelta(-5) = %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	r := model.FinancialRecord{Date: "2025-03-01T12:00:00.000Z"}
	if got := FormatDate(r); got != "01 Mar 2025" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := FormatDate(model.FinancialRecord{Date: "yesterday"}); got != "yesterday" {
		t.Errorf("FormatDate(raw) = %q", got)
	}
}

func TestFormatAgo(t *testing.T) {
	if got := FormatAgo(time.Time{}); got != "never" {
		t.Errorf("FormatAgo(zero) = %q", got)
	}
}
