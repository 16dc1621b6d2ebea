// Package tui provides the interactive Bubble Tea dashboard for fintrack.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/snapshot"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
	"github.com/theirongolddev/fintrack/internal/viewmodel"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// viewUpdatedMsg signals that at least one view published a new state.
type viewUpdatedMsg struct{}

// categoryAddedMsg reports the outcome of the add-category form.
type categoryAddedMsg struct {
	Title string
	Err   error
}

type tickMsg struct{}

// Options configures the dashboard.
type Options struct {
	Deps     viewmodel.Deps
	Currency string
	// Now overrides the clock used to pick the current week.
	Now func() time.Time
}

// live holds the views and their loop. It is shared by every copy of App,
// since Bubble Tea passes the model by value.
type live struct {
	deps    viewmodel.Deps
	cancel  context.CancelFunc
	loop    *snapshot.Loop
	updates chan struct{}

	stats   *viewmodel.Statistics
	budgets *viewmodel.Budgets
	cats    *viewmodel.Categories
}

// App is the root Bubble Tea model.
type App struct {
	live     *live
	currency string
	now      func() time.Time

	// Latest view states
	stats   viewmodel.StatisticsState
	budgets viewmodel.BudgetsState
	cats    viewmodel.CategoriesState

	// UI state
	width      int
	height     int
	activeTab  int
	showHelp   bool
	weekOffset int
	spinner    spinner.Model

	// Add-category form
	form     *huh.Form
	formVals *categoryValues

	notice    string
	noticeErr bool
}

const (
	minTerminalWidth = 60
	maxContentWidth  = 140
	minContentHeight = 5
)

// NewApp opens the statistics, budgets and categories views on one loop.
// Call Close once the program exits.
func NewApp(opts Options) App {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Currency == "" {
		opts.Currency = "$"
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &live{
		deps:    opts.Deps,
		cancel:  cancel,
		loop:    snapshot.NewLoop(16),
		updates: make(chan struct{}, 1),
	}
	go func() { _ = l.loop.Run(ctx) }()
	l.deps.Subscription.Loop = l.loop

	rng := pipeline.WeekRange(opts.Now())
	l.stats = viewmodel.NewStatistics(l.deps, rng, func(viewmodel.StatisticsState) { l.signal() })
	l.budgets = viewmodel.NewBudgets(l.deps, func(viewmodel.BudgetsState) { l.signal() })
	l.cats = viewmodel.NewCategories(l.deps, func(viewmodel.CategoriesState) { l.signal() })

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	return App{
		live:     l,
		currency: opts.Currency,
		now:      opts.Now,
		stats:    l.stats.Latest(),
		budgets:  l.budgets.Latest(),
		cats:     l.cats.Latest(),
		spinner:  sp,
	}
}

// signal wakes the UI without blocking the loop. Bursts coalesce into one
// refresh that reads the newest state of every view.
func (l *live) signal() {
	select {
	case l.updates <- struct{}{}:
	default:
	}
}

// setRange replaces the statistics view with one over rng.
func (l *live) setRange(rng pipeline.DateRange) {
	l.stats.Close()
	l.stats = viewmodel.NewStatistics(l.deps, rng, func(viewmodel.StatisticsState) { l.signal() })
}

// Close stops every view and the loop they share.
func (a App) Close() {
	l := a.live
	l.stats.Close()
	l.budgets.Close()
	l.cats.Close()
	l.loop.Close()
	l.cancel()
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, waitForUpdate(a.live.updates), tickCmd())
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.form != nil {
			a.form = a.form.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case viewUpdatedMsg:
		a.refresh()
		return a, waitForUpdate(a.live.updates)

	case categoryAddedMsg:
		if msg.Err != nil {
			a.notice = "could not add category: " + msg.Err.Error()
			a.noticeErr = true
		} else {
			a.notice = fmt.Sprintf("added %q", msg.Title)
			a.noticeErr = false
		}
		return a, nil

	case spinner.TickMsg:
		if a.stats.Status == snapshot.Loading {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case tickMsg:
		// Keeps the "updated" age current.
		return a, tickCmd()

	case tea.MouseMsg:
		if a.form != nil || a.showHelp {
			return a, nil
		}
		if msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
			}
		}
		return a, nil

	case tea.KeyMsg:
		key := msg.String()

		if key == "ctrl+c" {
			return a, tea.Quit
		}

		if a.form != nil {
			return a.updateForm(msg)
		}

		if key == "?" {
			a.showHelp = !a.showHelp
			return a, nil
		}
		if a.showHelp {
			a.showHelp = false
			return a, nil
		}

		switch key {
		case "q":
			return a, tea.Quit
		case "[":
			return a.shiftWeek(-1)
		case "]":
			return a.shiftWeek(1)
		case "t":
			return a.shiftWeek(-a.weekOffset)
		case "a":
			return a.openForm()
		case "left", "shift+tab":
			a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		case "right", "tab":
			a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		default:
			if len(msg.Runes) == 1 {
				if idx := components.TabIdxByKey(msg.Runes[0]); idx >= 0 {
					a.activeTab = idx
				}
			}
		}
		return a, nil
	}

	if a.form != nil {
		return a.updateForm(msg)
	}
	return a, nil
}

// refresh copies the newest state of every view.
func (a *App) refresh() {
	a.stats = a.live.stats.Latest()
	a.budgets = a.live.budgets.Latest()
	a.cats = a.live.cats.Latest()
}

// shiftWeek moves the statistics range by delta weeks and reopens the view.
func (a App) shiftWeek(delta int) (tea.Model, tea.Cmd) {
	if delta == 0 {
		return a, nil
	}
	a.weekOffset += delta
	a.live.setRange(weekFor(a.now(), a.weekOffset))
	a.stats = a.live.stats.Latest()
	a.activeTab = 0
	return a, a.spinner.Tick
}

// weekFor returns the ISO week offset weeks away from the week containing now.
func weekFor(now time.Time, offset int) pipeline.DateRange {
	return pipeline.WeekRange(now.AddDate(0, 0, 7*offset))
}

func (a App) contentWidth() int {
	cw := a.width
	if cw > maxContentWidth {
		cw = maxContentWidth
	}
	return cw
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if a.form != nil {
		return a.viewForm()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  fintrack needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)
	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")

	bindings := []struct{ key, desc string }{
		{"s b c", "Jump to tab"},
		{"← →", "Previous / Next tab"},
		{"[ ]", "Previous / Next week"},
		{"t", "Back to this week"},
		{"a", "Add a category"},
		{"?", "Toggle help"},
		{"q", "Quit"},
	}
	for _, bind := range bindings {
		fmt.Fprintf(&b, "  %s  %s\n",
			keyStyle.Render(fmt.Sprintf("%-8s", bind.key)),
			descStyle.Render(bind.desc))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()

	header := components.RenderTabBar(a.activeTab, w)
	statusBar := components.RenderStatusBar(w, components.StatusInfo{
		Range:   a.stats.Range.String(),
		Updated: a.updatedAge(),
		Notice:  a.notice,
		Failed:  a.noticeErr,
	})

	contentH := a.height - lipgloss.Height(header) - lipgloss.Height(statusBar)
	if contentH < minContentHeight {
		contentH = minContentHeight
	}

	var content string
	switch a.activeTab {
	case 0:
		content = renderStatisticsTab(a.stats, a.cats, a.currency, a.spinner.View(), cw)
	case 1:
		content = renderBudgetsTab(a.budgets, a.currency, a.now(), cw)
	case 2:
		content = renderCategoriesTab(a.cats, cw)
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, a.height, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// updatedAge is the age of the newest state across views.
func (a App) updatedAge() string {
	newest := a.stats.UpdatedAt
	for _, ts := range []time.Time{a.budgets.UpdatedAt, a.cats.UpdatedAt} {
		if ts.After(newest) {
			newest = ts
		}
	}
	if newest.IsZero() {
		return ""
	}
	d := a.now().Sub(newest)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

// ─── Commands ───────────────────────────────────────────────────

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// waitForUpdate blocks until a view publishes, then asks Update to refresh.
func waitForUpdate(sub chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-sub
		return viewUpdatedMsg{}
	}
}

// ─── Helpers ────────────────────────────────────────────────────

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")

	var result strings.Builder
	for i, line := range lines {
		result.WriteString(lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg)))
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// ─── Mouse Support ──────────────────────────────────────────────

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes are derived from the same width rules used by RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW

		// Separator is one column between tabs.
		if i < len(components.Tabs)-1 {
			pos++
		}
	}
	return -1
}
