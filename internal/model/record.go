package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category tags an expense. Incomes carry no category.
type Category string

// Expense categories, in display order.
const (
	CategoryRecurring Category = "Recurring"
	CategoryGroceries Category = "Groceries"
	CategoryFood      Category = "Food"
	CategoryFuel      Category = "Fuel"
	CategoryTravel    Category = "Travel"
	CategoryShopping  Category = "Shopping"
	CategoryBanking   Category = "Banking"
	CategoryOthers    Category = "Others"

	// CategoryAll is a filter value only; records never carry it.
	CategoryAll Category = "All"
)

// Categories returns the eight record categories in display order.
func Categories() []Category {
	return []Category{
		CategoryRecurring,
		CategoryGroceries,
		CategoryFood,
		CategoryFuel,
		CategoryTravel,
		CategoryShopping,
		CategoryBanking,
		CategoryOthers,
	}
}

// FilterCategories returns All followed by the record categories.
func FilterCategories() []Category {
	return append([]Category{CategoryAll}, Categories()...)
}

// Valid reports whether c is one of the eight record categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches s case-insensitively against the record categories
// and the All filter.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range FilterCategories() {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Amount is a money value decoded leniently from the API.
// The remote side sends numbers or numeric strings; anything else decodes
// with Valid=false and a zero value, keeping the raw text for diagnostics.
type Amount struct {
	Value decimal.Decimal
	Valid bool
	Raw   string
}

// NewAmount wraps a known-good decimal.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Value: d, Valid: true}
}

// AmountOf is a convenience for literals and tests.
func AmountOf(s string) Amount {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{Raw: s}
	}
	return NewAmount(d)
}

// Decimal returns the value, treating invalid amounts as zero.
func (a Amount) Decimal() decimal.Decimal {
	if !a.Valid {
		return decimal.Zero
	}
	return a.Value
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount{Raw: string(data)}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	// Number first, then numeric string
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err == nil {
		if d, err := decimal.NewFromString(n.String()); err == nil {
			a.Value, a.Valid = d, true
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		a.Raw = s
		if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
			a.Value, a.Valid = d, true
		}
	}
	return nil
}

// MarshalJSON emits the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal().String()), nil
}

// FinancialRecord is one income or expense entry as returned by the API.
type FinancialRecord struct {
	ID       string   `json:"_id,omitempty"`
	Name     string   `json:"name"`
	Amount   Amount   `json:"amount"`
	Date     string   `json:"date"`
	Category Category `json:"category,omitempty"`
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time parses Date using the formats the API is known to emit.
func (r FinancialRecord) Time() (time.Time, bool) {
	s := strings.TrimSpace(r.Date)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RecordKind distinguishes the two record collections.
type RecordKind int

const (
	KindExpense RecordKind = iota
	KindIncome
)

func (k RecordKind) String() string {
	if k == KindIncome {
		return "income"
	}
	return "expense"
}

// NewRecord is a validated record ready to be posted.
type NewRecord struct {
	Kind     RecordKind
	Name     string
	Amount   decimal.Decimal
	Category Category
	Date     time.Time
}
