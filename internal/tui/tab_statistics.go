package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/snapshot"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
	"github.com/theirongolddev/fintrack/internal/viewmodel"

	"github.com/charmbracelet/lipgloss"
)

func renderStatisticsTab(st viewmodel.StatisticsState, cats viewmodel.CategoriesState, currency, spin string, cw int) string {
	t := theme.Active

	if st.Status == snapshot.Loading {
		return renderNotice(spin+" Loading expenses for "+st.Range.String(), false, cw)
	}
	if st.Status == snapshot.Failed && len(st.Chart) == 0 {
		return renderNotice("Could not load expenses: "+errText(st.Err), true, cw)
	}

	largest := "-"
	if len(st.Chart) > 0 {
		top := st.Chart[0]
		for _, c := range st.Chart[1:] {
			if c.Amount.GreaterThan(top.Amount) {
				top = c
			}
		}
		largest = top.Category
	}

	var b strings.Builder
	b.WriteString(components.MetricCardRow([]components.Metric{
		{Label: "Spent", Value: cli.FormatAmount(st.Total, currency), Delta: st.Range.String()},
		{Label: "Categories", Value: fmt.Sprintf("%d", len(st.Chart))},
		{Label: "Largest", Value: largest},
	}, cw))
	b.WriteString("\n")

	var body string
	if len(st.Chart) == 0 {
		body = lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).
			Render("No expenses in this week.")
	} else {
		body = components.CategoryChart(chartRows(st.Chart, cats, currency), components.CardInnerWidth(cw))
	}
	b.WriteString(components.ContentCard("Expenses by category", body, cw))

	var notes []string
	if st.Err != nil {
		notes = append(notes, "showing last good data: "+errText(st.Err))
	}
	if st.ColorsErr != nil {
		notes = append(notes, "category colors unavailable: "+errText(st.ColorsErr))
	}
	if n := len(st.Rejected); n > 0 {
		notes = append(notes, fmt.Sprintf("%d document(s) skipped as malformed", n))
	}
	if len(notes) > 0 {
		warn := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Background)
		for _, n := range notes {
			b.WriteString("\n")
			b.WriteString(warn.Render(" ! " + n))
		}
	}
	return b.String()
}

// chartRows labels each bar with its category icon when one is known.
func chartRows(chart []model.CategoryTotal, cats viewmodel.CategoriesState, currency string) []components.ChartRow {
	rows := make([]components.ChartRow, 0, len(chart))
	for _, c := range chart {
		label := c.Category
		if icon := cats.Icon(model.ExpenditureCategories, c.Category); icon != "" {
			label = icon + " " + label
		}
		rows = append(rows, components.ChartRow{
			Label:  label,
			Amount: c.Amount,
			Fill:   c.Fill,
			Value:  cli.FormatAmount(c.Amount, currency),
		})
	}
	return rows
}

func renderNotice(msg string, isErr bool, cw int) string {
	t := theme.Active
	style := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	if isErr {
		style = lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Bold(true)
	}
	return components.ContentCard("", style.Render(msg), cw)
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
