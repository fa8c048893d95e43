// Package validate checks user input before anything is sent to the API.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/model"
)

// MinPasswordLen is the shortest password the API accepts.
const MinPasswordLen = 6

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// Error reports a single invalid field. It is produced locally and never
// involves a network request.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func fieldErr(field, msg string) error {
	return &Error{Field: field, Message: msg}
}

// Email checks the address looks like user@host.tld.
func Email(s string) error {
	if strings.TrimSpace(s) == "" {
		return fieldErr("email", "email is required")
	}
	if !emailPattern.MatchString(s) {
		return fieldErr("email", "please enter a valid email address")
	}
	return nil
}

// Password enforces the minimum length.
func Password(s string) error {
	if len(s) < MinPasswordLen {
		return fieldErr("password", fmt.Sprintf("password must be at least %d characters long", MinPasswordLen))
	}
	return nil
}

// Credentials validates a login attempt.
func Credentials(c model.Credentials) error {
	if err := Email(c.Email); err != nil {
		return err
	}
	return Password(c.Password)
}

// Registration validates a sign-up attempt.
func Registration(r model.Registration) error {
	if strings.TrimSpace(r.Name) == "" {
		return fieldErr("name", "name is required")
	}
	if err := Email(r.Email); err != nil {
		return err
	}
	if err := Password(r.Password); err != nil {
		return err
	}
	if r.Password != r.ConfirmPassword {
		return fieldErr("confirm_password", "passwords do not match")
	}
	return nil
}

// Amount parses a positive money amount. Both "12.34" and "12,34" are accepted.
func Amount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fieldErr("amount", "amount is required")
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fieldErr("amount", fmt.Sprintf("%q is not a number", s))
	}
	if !d.IsPositive() {
		return decimal.Zero, fieldErr("amount", "amount must be greater than zero")
	}
	return d, nil
}

// Date parses a YYYY-MM-DD date. Empty input means today.
func Date(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fieldErr("date", "date must be YYYY-MM-DD")
	}
	return t, nil
}

// RecordInput is raw form input for a new expense or income.
type RecordInput struct {
	Kind     model.RecordKind
	Name     string
	Amount   string
	Category string
	Date     string
}

// Record validates form input and converts it to a postable record.
// Expenses need every field; incomes carry no category.
func Record(in RecordInput, now time.Time) (model.NewRecord, error) {
	var out model.NewRecord
	out.Kind = in.Kind

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return out, fieldErr("name", "please fill out all fields")
	}
	out.Name = name

	amount, err := Amount(in.Amount)
	if err != nil {
		return out, err
	}
	out.Amount = amount

	if in.Kind == model.KindExpense {
		c, ok := model.ParseCategory(in.Category)
		if !ok || !c.Valid() {
			if strings.TrimSpace(in.Category) == "" {
				return out, fieldErr("category", "please fill out all fields")
			}
			return out, fieldErr("category", fmt.Sprintf("unknown category %q", in.Category))
		}
		out.Category = c
	}

	date, err := Date(in.Date, now)
	if err != nil {
		return out, err
	}
	out.Date = date
	return out, nil
}
