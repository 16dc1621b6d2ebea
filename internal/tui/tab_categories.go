package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/snapshot"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
	"github.com/theirongolddev/fintrack/internal/viewmodel"

	"github.com/charmbracelet/lipgloss"
)

func renderCategoriesTab(st viewmodel.CategoriesState, cw int) string {
	switch {
	case st.Status == snapshot.Loading:
		return renderNotice("Loading categories...", false, cw)
	case st.Status == snapshot.Failed && len(st.Expenditure)+len(st.Income) == 0:
		return renderNotice("Could not load categories: "+errText(st.Err), true, cw)
	}

	widths := components.LayoutRow(cw, 2)
	out := components.CardRow([]string{
		components.ContentCard(fmt.Sprintf("Expenditure (%d)", len(st.Expenditure)),
			categoryList(st.Expenditure, components.CardInnerWidth(widths[0])), widths[0]),
		components.ContentCard(fmt.Sprintf("Income (%d)", len(st.Income)),
			categoryList(st.Income, components.CardInnerWidth(widths[1])), widths[1]),
	})

	hint := lipgloss.NewStyle().Foreground(theme.Active.TextDim).Background(theme.Active.Background)
	return out + "\n" + hint.Render(" press a to add a category")
}

func categoryList(cats []model.Category, width int) string {
	t := theme.Active
	text := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	if len(cats) == 0 {
		return dim.Render("none")
	}

	lines := make([]string, 0, len(cats))
	for i, c := range cats {
		swatch := lipgloss.NewStyle().Foreground(theme.Fill(c.Color, i)).Background(t.Surface).Render("●")
		icon := c.Icon
		if icon == "" {
			icon = "·"
		}
		title := truncStr(c.Title, width-lipgloss.Width(icon)-4)
		lines = append(lines, swatch+dim.Render(" ")+dim.Render(icon)+dim.Render(" ")+text.Render(title))
	}
	return strings.Join(lines, "\n")
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
