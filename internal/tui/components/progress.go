package components

import (
	"fmt"
	"time"

	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// ColorForProgress returns green/yellow/orange/red as a budget fills up.
// Overspent budgets are always red.
func ColorForProgress(p model.Progress) lipgloss.Color {
	t := theme.Active
	switch {
	case p.Overspent || p.Ratio >= 0.9:
		return t.Red
	case p.Ratio >= 0.7:
		return t.Orange
	case p.Ratio >= 0.5:
		return t.Yellow
	default:
		return t.Green
	}
}

// BudgetBar renders a labelled budget progress bar. Budgets without a
// target show an empty bar and "no target" instead of a percentage.
func BudgetBar(label string, p model.Progress, labelW, barWidth int) string {
	t := theme.Active

	ratio := p.Ratio
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	fill := ColorForProgress(p)
	bar := progress.New(
		progress.WithSolidFill(string(fill)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(fill).Background(t.Surface).Bold(true)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	pctStr := fmt.Sprintf("%3.0f%%", ratio*100)
	switch {
	case p.NoTarget:
		pctStr = "no target"
		pctStyle = lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	case p.Overspent:
		pctStr = "over"
	}

	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, truncate(label, labelW))) +
		spaceStyle.Render(" ") +
		bar.ViewAs(ratio) +
		spaceStyle.Render(" ") +
		pctStyle.Render(pctStr)
}

// FormatDaysLeft describes how long a budget period still runs.
func FormatDaysLeft(end, now time.Time) string {
	if end.IsZero() {
		return ""
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, end.Location())
	ey, em, ed := end.Date()
	last := time.Date(ey, em, ed, 0, 0, 0, 0, end.Location())

	days := int(last.Sub(today).Hours() / 24)
	switch {
	case days < 0:
		return "ended"
	case days == 0:
		return "last day"
	case days == 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", days)
	}
}
