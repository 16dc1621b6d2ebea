package components

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// ChartRow is one labelled bar of a CategoryChart.
type ChartRow struct {
	Label  string
	Amount decimal.Decimal
	Fill   model.Color
	Value  string // preformatted amount
}

// CategoryChart renders horizontal bars scaled to the largest amount, each
// in its category fill, followed by the value and share of the total.
func CategoryChart(rows []ChartRow, width int) string {
	if len(rows) == 0 {
		return ""
	}
	t := theme.Active

	labelW := 0
	valueW := 0
	peak := decimal.Zero
	total := decimal.Zero
	for _, r := range rows {
		labelW = max(labelW, lipgloss.Width(r.Label))
		valueW = max(valueW, lipgloss.Width(r.Value))
		if r.Amount.GreaterThan(peak) {
			peak = r.Amount
		}
		total = total.Add(r.Amount)
	}
	labelW = min(labelW, 20)

	const shareW = 5
	barW := width - labelW - valueW - shareW - 4
	if barW < 4 {
		barW = 4
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	space := lipgloss.NewStyle().Background(t.Surface)

	lines := make([]string, 0, len(rows))
	for i, r := range rows {
		n := barLength(r.Amount, peak, barW)
		barStyle := lipgloss.NewStyle().Foreground(theme.Fill(r.Fill, i)).Background(t.Surface)

		share := "   -"
		if total.IsPositive() {
			share = fmt.Sprintf("%3.0f%%", r.Amount.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64())
		}

		lines = append(lines,
			labelStyle.Render(fmt.Sprintf("%-*s", labelW, truncate(r.Label, labelW)))+
				space.Render(" ")+
				barStyle.Render(strings.Repeat("█", n))+
				space.Render(strings.Repeat(" ", barW-n+1))+
				valueStyle.Render(fmt.Sprintf("%*s", valueW, r.Value))+
				space.Render(" ")+
				dimStyle.Render(share))
	}
	return strings.Join(lines, "\n")
}

// barLength scales amount against peak. Any positive amount gets at least one cell.
func barLength(amount, peak decimal.Decimal, width int) int {
	if !peak.IsPositive() || !amount.IsPositive() {
		return 0
	}
	n := int(amount.Div(peak).Mul(decimal.NewFromInt(int64(width))).IntPart())
	if n < 1 {
		n = 1
	}
	if n > width {
		n = width
	}
	return n
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
