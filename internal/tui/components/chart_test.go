package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestNiceCeiling(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 1},
		{0.3, 0.5},
		{7, 10},
		{150, 200},
		{2000, 2000},
		{4100, 5000},
	}
	for _, tt := range tests {
		if got := niceCeiling(tt.in); got != tt.want {
			t.Errorf("niceCeiling(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCompactNumber(t *testing.T) {
	tests := map[float64]string{
		0.5:     "0.50",
		20:      "20",
		1000:    "1k",
		1500:    "1.5k",
		2000000: "2M",
	}
	for in, want := range tests {
		if got := compactNumber(in); got != want {
			t.Errorf("compactNumber(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestBarChartKeepsZeroRows(t *testing.T) {
	chart := BarChart([]Bar{
		{Label: "Food", Value: 150, Text: "150.00"},
		{Label: "Fuel", Value: 20, Text: "20.00"},
		{Label: "Travel", Value: 0, Text: "0.00"},
	}, 60)

	lines := strings.Split(chart, "\n")
	if len(lines) != 5 { // three bars plus two axis lines
		t.Fatalf("chart has %d lines, want 5:\n%s", len(lines), chart)
	}
	if !strings.Contains(lines[2], "Travel") || strings.Contains(lines[2], "█") {
		t.Errorf("zero row rendered wrong: %q", lines[2])
	}
	if strings.Count(lines[0], "█") <= strings.Count(lines[1], "█") {
		t.Error("larger value did not get the longer bar")
	}
	if !strings.Contains(lines[4], "200") {
		t.Errorf("axis %q should end at the rounded maximum 200", lines[4])
	}
	for i, l := range lines[:3] {
		if lipgloss.Width(l) != lipgloss.Width(lines[0]) {
			t.Errorf("bar row %d width %d differs from row 0", i, lipgloss.Width(l))
		}
	}
}
