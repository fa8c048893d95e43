package model

import (
	"encoding/json"
	"testing"
)

func TestAmountUnmarshal(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      string
	}{
		{"integer", `100`, true, "100.00"},
		{"float", `12.5`, true, "12.50"},
		{"numeric string", `"45.10"`, true, "45.10"},
		{"padded string", `" 7 "`, true, "7.00"},
		{"garbage string", `"abc"`, false, "0.00"},
		{"null", `null`, false, "0.00"},
		{"object", `{"v":1}`, false, "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			if err := json.Unmarshal([]byte(tt.input), &a); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if a.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", a.Valid, tt.wantValid)
			}
			if got := a.Decimal().StringFixed(2); got != tt.want {
				t.Errorf("Decimal = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFinancialRecordDecode(t *testing.T) {
	raw := `[{"_id":"x1","name":"Lunch","amount":"250","date":"2025-03-01T12:00:00.000Z","category":"Food"},
	         {"name":"Salary","amount":1000,"date":"2025-03-01"}]`

	var records []FinancialRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}
	if records[0].Category != CategoryFood || records[0].Amount.Decimal().IntPart() != 250 {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[1].Category != "" {
		t.Errorf("income category = %q, want empty", records[1].Category)
	}
	if _, ok := records[0].Time(); !ok {
		t.Error("records[0].Time() failed to parse")
	}
}

func TestParseCategory(t *testing.T) {
	if c, ok := ParseCategory("groceries"); !ok || c != CategoryGroceries {
		t.Errorf("ParseCategory(groceries) = %q, %v", c, ok)
	}
	if c, ok := ParseCategory("ALL"); !ok || c != CategoryAll {
		t.Errorf("ParseCategory(ALL) = %q, %v", c, ok)
	}
	if _, ok := ParseCategory("rent"); ok {
		t.Error("ParseCategory(rent) should fail")
	}
	if CategoryAll.Valid() {
		t.Error("All must not be a record category")
	}
}
