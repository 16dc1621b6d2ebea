package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/snapshot"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
	"github.com/theirongolddev/fintrack/internal/viewmodel"

	"github.com/charmbracelet/lipgloss"
)

func renderBudgetsTab(st viewmodel.BudgetsState, currency string, now time.Time, cw int) string {
	t := theme.Active

	switch {
	case st.Status == snapshot.Loading:
		return renderNotice("Loading budgets...", false, cw)
	case st.Status == snapshot.Failed && len(st.Budgets) == 0:
		return renderNotice("Could not load budgets: "+errText(st.Err), true, cw)
	case len(st.Budgets) == 0:
		return renderNotice("No budgets yet.", false, cw)
	}

	inner := components.CardInnerWidth(cw)
	labelW := 0
	for _, bp := range st.Budgets {
		labelW = max(labelW, lipgloss.Width(bp.Entry.Title))
	}
	labelW = min(labelW, 24)
	barW := inner - labelW - 12
	if barW < 10 {
		barW = 10
	}

	detail := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	for i, bp := range st.Budgets {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(components.BudgetBar(bp.Entry.Title, bp.Progress, labelW, barW))
		b.WriteString("\n")

		parts := []string{
			fmt.Sprintf("%s of %s",
				cli.FormatAmount(bp.Entry.CurrAmount, currency),
				cli.FormatAmount(bp.Entry.Amount, currency)),
		}
		if left := components.FormatDaysLeft(bp.Entry.EndDate, now); left != "" {
			parts = append(parts, left)
		}
		if len(bp.Entry.Categories) > 0 {
			parts = append(parts, strings.Join(bp.Entry.Categories, ", "))
		}
		b.WriteString(detail.Render(strings.Repeat(" ", labelW+1) + strings.Join(parts, " · ")))
	}

	out := components.ContentCard("Budgets", b.String(), cw)
	if st.Err != nil {
		out += "\n" + lipgloss.NewStyle().Foreground(t.Orange).Background(t.Background).
			Render(" ! showing last good data: "+st.Err.Error())
	}
	return out
}
