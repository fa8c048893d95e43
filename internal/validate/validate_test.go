package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/theirongolddev/fintrack/internal/model"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"jane@example.com", true},
		{"a@b.co", true},
		{"", false},
		{"jane", false},
		{"jane@example", false},
		{"@.", false},
	}
	for _, tt := range tests {
		err := Email(tt.in)
		if (err == nil) != tt.want {
			t.Errorf("Email(%q) err = %v, want ok=%v", tt.in, err, tt.want)
		}
	}
}

func TestRegistration(t *testing.T) {
	base := model.Registration{Name: "Jane", Email: "jane@example.com", Password: "secret1", ConfirmPassword: "secret1"}
	if err := Registration(base); err != nil {
		t.Fatalf("valid registration rejected: %v", err)
	}

	tests := []struct {
		name  string
		mut   func(*model.Registration)
		field string
	}{
		{"no name", func(r *model.Registration) { r.Name = " " }, "name"},
		{"bad email", func(r *model.Registration) { r.Email = "jane" }, "email"},
		{"short password", func(r *model.Registration) { r.Password, r.ConfirmPassword = "abc", "abc" }, "password"},
		{"mismatch", func(r *model.Registration) { r.ConfirmPassword = "other12" }, "confirm_password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mut(&r)
			var verr *Error
			if err := Registration(r); !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("Registration err = %v, want field %q", err, tt.field)
			}
		})
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"12.34", "12.34", false},
		{"12,5", "12.50", false},
		{" 100 ", "100.00", false},
		{"", "", true},
		{"abc", "", true},
		{"0", "", true},
		{"-3", "", true},
	}
	for _, tt := range tests {
		got, err := Amount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Amount(%q) = %s, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got.StringFixed(2) != tt.want {
			t.Errorf("Amount(%q) = %s, %v; want %s", tt.in, got.StringFixed(2), err, tt.want)
		}
	}
}

func TestRecord(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	got, err := Record(RecordInput{Kind: model.KindExpense, Name: "Lunch", Amount: "250", Category: "food"}, now)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got.Category != model.CategoryFood {
		t.Errorf("Category = %s, want Food", got.Category)
	}
	if want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC); !got.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", got.Date, want)
	}

	if _, err := Record(RecordInput{Kind: model.KindExpense, Name: "Lunch", Amount: "250"}, now); err == nil {
		t.Error("expense without category accepted")
	}
	if _, err := Record(RecordInput{Kind: model.KindExpense, Name: "Lunch", Amount: "250", Category: "All"}, now); err == nil {
		t.Error("expense tagged All accepted")
	}
	if _, err := Record(RecordInput{Kind: model.KindIncome, Name: "Salary", Amount: "1000", Date: "2025-02-28"}, now); err != nil {
		t.Errorf("income rejected: %v", err)
	}
	if _, err := Record(RecordInput{Kind: model.KindIncome, Name: "Salary", Amount: "1000", Date: "28/02/2025"}, now); err == nil {
		t.Error("malformed date accepted")
	}
}
