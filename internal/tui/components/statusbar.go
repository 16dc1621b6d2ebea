package components

import (
	"strings"

	"github.com/theirongolddev/fintrack/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// StatusInfo is what the bottom bar reports on the right-hand side.
type StatusInfo struct {
	Range   string // date range of the statistics view
	Updated string // age of the newest data
	Notice  string // one-shot message, e.g. a saved category
	Failed  bool   // Notice describes an error
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, info StatusInfo) string {
	t := theme.Active

	base := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	accent := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)
	noticeStyle := lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface)
	if info.Failed {
		noticeStyle = lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Bold(true)
	}

	left := base.Render(" [?]help  [q]uit  [ ] week  [a]dd category")
	if info.Notice != "" {
		left += base.Render("  ") + noticeStyle.Render(info.Notice)
	}

	var right []string
	if info.Range != "" {
		right = append(right, accent.Render(info.Range))
	}
	if info.Updated != "" {
		right = append(right, base.Render("updated "+info.Updated))
	}
	rightStr := strings.Join(right, base.Render(" │ ")) + base.Render(" ")

	padding := width - lipgloss.Width(left) - lipgloss.Width(rightStr)
	if padding < 0 {
		padding = 0
	}

	return left + base.Render(strings.Repeat(" ", padding)) + rightStr
}
