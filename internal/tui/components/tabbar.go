package components

import (
	"strings"

	"github.com/theirongolddev/fintrack/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Tab represents a single tab in the tab bar.
type Tab struct {
	Name   string
	Key    rune
	KeyPos int // position of the shortcut letter in the name (-1 if not in name)
}

// Tabs defines all available tabs.
var Tabs = []Tab{
	{Name: "Statistics", Key: 's', KeyPos: 0},
	{Name: "Budgets", Key: 'b', KeyPos: 0},
	{Name: "Categories", Key: 'c', KeyPos: 0},
}

func tabStyles() (active, inactive, key, dimKey lipgloss.Style) {
	t := theme.Active
	active = lipgloss.NewStyle().
		Foreground(t.AccentBright).
		Background(t.SurfaceHover).
		Bold(true).
		Padding(0, 1)
	inactive = lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)
	key = lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface).
		Bold(true)
	dimKey = lipgloss.NewStyle().
		Foreground(t.TextDim).
		Background(t.Surface)
	return active, inactive, key, dimKey
}

func renderTab(tab Tab, active bool) string {
	activeStyle, inactiveStyle, keyStyle, _ := tabStyles()
	if active {
		return activeStyle.Render(tab.Name)
	}

	pad := inactiveStyle.Render(" ")
	if tab.KeyPos < 0 || tab.KeyPos >= len(tab.Name) {
		return pad + inactiveStyle.Render(tab.Name) + keyStyle.Render("["+string(tab.Key)+"]") + pad
	}
	before := tab.Name[:tab.KeyPos]
	key := string(tab.Name[tab.KeyPos])
	after := tab.Name[tab.KeyPos+1:]
	return pad + inactiveStyle.Render(before) + keyStyle.Render(key) + inactiveStyle.Render(after) + pad
}

// TabVisualWidth is the rendered width of a tab, used for mouse hit tests.
func TabVisualWidth(tab Tab, active bool) int {
	return lipgloss.Width(renderTab(tab, active))
}

// RenderTabBar renders the tab bar with the given active index, padded to width.
func RenderTabBar(activeIdx int, width int) string {
	t := theme.Active
	_, _, _, sepStyle := tabStyles()

	parts := make([]string, 0, len(Tabs))
	for i, tab := range Tabs {
		parts = append(parts, renderTab(tab, i == activeIdx))
	}
	row := strings.Join(parts, sepStyle.Render("│"))

	return lipgloss.NewStyle().Background(t.Surface).Width(width).Render(row)
}

// TabIdxByKey returns the tab index for a given key press, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}
