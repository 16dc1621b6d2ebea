package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/model"
)

func TestBudgetBarStates(t *testing.T) {
	tests := []struct {
		name string
		p    model.Progress
		want string
	}{
		{"half", model.Progress{Ratio: 0.5}, "50%"},
		{"no target", model.Progress{NoTarget: true}, "no target"},
		{"overspent", model.Progress{Ratio: 1, Overspent: true}, "over"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BudgetBar("Groceries", tt.p, 12, 20)
			if !strings.Contains(got, tt.want) {
				t.Errorf("BudgetBar(%+v) = %q, want it to contain %q", tt.p, got, tt.want)
			}
			if !strings.Contains(got, "Groceries") {
				t.Errorf("BudgetBar lost its label: %q", got)
			}
		})
	}
}

func TestColorForProgressOverspentIsRed(t *testing.T) {
	if got := ColorForProgress(model.Progress{Ratio: 0.1, Overspent: true}); got == ColorForProgress(model.Progress{Ratio: 0.1}) {
		t.Errorf("overspent color = %v, same as a low fill", got)
	}
}

func TestFormatDaysLeft(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		end  time.Time
		want string
	}{
		{time.Time{}, ""},
		{time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC), "ended"},
		{time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), "last day"},
		{time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), "1 day left"},
		{time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), "21 days left"},
	}
	for _, tt := range tests {
		if got := FormatDaysLeft(tt.end, now); got != tt.want {
			t.Errorf("FormatDaysLeft(%v) = %q, want %q", tt.end, got, tt.want)
		}
	}
}

func TestCategoryChartRowsAndWidth(t *testing.T) {
	rows := []ChartRow{
		{Label: "Food", Amount: decimal.NewFromInt(30), Fill: "#ff0000", Value: "$30.00"},
		{Label: "Rent", Amount: decimal.NewFromInt(70), Fill: model.NoColor, Value: "$70.00"},
	}
	out := CategoryChart(rows, 60)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("CategoryChart rendered %d lines, want 2", len(lines))
	}
	for i, line := range lines {
		if w := lipgloss.Width(line); w > 60 {
			t.Errorf("line %d width = %d, want <= 60", i, w)
		}
	}
	if !strings.Contains(lines[1], "70%") {
		t.Errorf("Rent line = %q, want share 70%%", lines[1])
	}
	if CategoryChart(nil, 60) != "" {
		t.Error("CategoryChart(nil) should be empty")
	}
}

func TestBarLength(t *testing.T) {
	peak := decimal.NewFromInt(100)
	tests := []struct {
		amount int64
		want   int
	}{
		{100, 40},
		{50, 20},
		{1, 1}, // rounds up to a visible cell
		{0, 0},
	}
	for _, tt := range tests {
		if got := barLength(decimal.NewFromInt(tt.amount), peak, 40); got != tt.want {
			t.Errorf("barLength(%d) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestTabIdxByKey(t *testing.T) {
	if got := TabIdxByKey('b'); got != 1 {
		t.Errorf("TabIdxByKey('b') = %d, want 1", got)
	}
	if got := TabIdxByKey('z'); got != -1 {
		t.Errorf("TabIdxByKey('z') = %d, want -1", got)
	}
}
