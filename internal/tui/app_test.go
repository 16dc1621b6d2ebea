package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/snapshot"
	"github.com/theirongolddev/fintrack/internal/viewmodel"
)

var fixedNow = time.Date(2024, 5, 8, 12, 0, 0, 0, time.Local) // a Wednesday

func newTestApp(t *testing.T) (App, *docstore.Store) {
	t.Helper()
	store, err := docstore.Open(filepath.Join(t.TempDir(), "fintrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hub := snapshot.NewHub()
	store.OnChange(func(collection, _ string) { hub.Notify(collection) })

	app := NewApp(Options{
		Deps: viewmodel.Deps{
			Store:        store,
			Collections:  config.DefaultConfig().Collections,
			Subscription: snapshot.Options{Interval: time.Hour, Hub: hub},
		},
		Now: func() time.Time { return fixedNow },
	})
	t.Cleanup(app.Close)
	return app, store
}

// pump waits for view updates until cond holds on the refreshed model.
func pump(t *testing.T, a App, cond func(App) bool) App {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-a.live.updates:
			m, _ := a.Update(viewUpdatedMsg{})
			a = m.(App)
		case <-time.After(50 * time.Millisecond):
			a.refresh()
		}
		if cond(a) {
			return a
		}
	}
	t.Fatal("timed out waiting for app state")
	return a
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestAppShowsWeeklyExpenses(t *testing.T) {
	a, store := newTestApp(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "trans", "t1", map[string]any{
		"category": "Food", "amount": "12.50", "type": "expenditure",
		"date": "2024-05-07", "month": "2024-05", "title": "lunch",
	})
	require.NoError(t, err)
	_, err = store.Put(ctx, "trans", "t2", map[string]any{
		"category": "Food", "amount": 7.5, "type": "expenditure",
		"date": "2024-05-01", "month": "2024-05", "title": "last week",
	})
	require.NoError(t, err)

	// The first delivery may be the empty set from before the writes.
	a = pump(t, a, func(a App) bool { return a.stats.Status == snapshot.Ready && len(a.stats.Chart) > 0 })
	assert.Equal(t, pipeline.DateRange{Start: "2024-05-06", End: "2024-05-12"}, a.stats.Range)
	require.Len(t, a.stats.Chart, 1)
	assert.True(t, a.stats.Chart[0].Amount.Equal(decimal.RequireFromString("12.50")))

	m, _ := a.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	a = m.(App)
	assert.Contains(t, a.View(), "Food")
}

func TestAppWeekNavigationReopensStatistics(t *testing.T) {
	a, _ := newTestApp(t)

	m, _ := a.Update(key("["))
	a = m.(App)
	assert.Equal(t, -1, a.weekOffset)
	assert.Equal(t, "2024-04-29", a.stats.Range.Start)
	assert.Equal(t, snapshot.Loading, a.stats.Status)

	m, _ = a.Update(key("t"))
	a = m.(App)
	assert.Equal(t, 0, a.weekOffset)
	assert.Equal(t, "2024-05-06", a.live.stats.Range().Start)
}

func TestAppTabKeys(t *testing.T) {
	a, _ := newTestApp(t)

	m, _ := a.Update(key("b"))
	assert.Equal(t, 1, m.(App).activeTab)
	m, _ = m.(App).Update(key("c"))
	assert.Equal(t, 2, m.(App).activeTab)
	m, _ = m.(App).Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 0, m.(App).activeTab)
}

func TestAppCategoryAddedNotice(t *testing.T) {
	a, _ := newTestApp(t)

	m, _ := a.Update(categoryAddedMsg{Title: "Books"})
	assert.Equal(t, `added "Books"`, m.(App).notice)
	assert.False(t, m.(App).noticeErr)

	m, _ = a.Update(categoryAddedMsg{Title: "Books", Err: viewmodel.ErrDuplicateTitle})
	assert.True(t, m.(App).noticeErr)
}

func TestAddCategoryCmdWritesDocument(t *testing.T) {
	a, store := newTestApp(t)

	msg := addCategoryCmd(a.live.cats, model.IncomeCategories, viewmodel.NewCategory{Title: "Salary", Color: "#00ff00"})()
	added, ok := msg.(categoryAddedMsg)
	require.True(t, ok)
	require.NoError(t, added.Err)

	docs, err := store.Query(context.Background(), docstore.Collection("income_categories"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Salary", docs[0].String("title"))
}

func TestWeekFor(t *testing.T) {
	tests := []struct {
		offset int
		start  string
	}{
		{0, "2024-05-06"},
		{1, "2024-05-13"},
		{-2, "2024-04-22"},
	}
	for _, tt := range tests {
		if got := weekFor(fixedNow, tt.offset); got.Start != tt.start {
			t.Errorf("weekFor(offset %d).Start = %s, want %s", tt.offset, got.Start, tt.start)
		}
	}
}

func TestRenderStatisticsStates(t *testing.T) {
	loading := renderStatisticsTab(viewmodel.StatisticsState{Status: snapshot.Loading}, viewmodel.CategoriesState{}, "$", "*", 80)
	assert.Contains(t, loading, "Loading")

	failed := renderStatisticsTab(viewmodel.StatisticsState{
		Status: snapshot.Failed,
		Err:    errors.New("database is locked"),
	}, viewmodel.CategoriesState{}, "$", "*", 80)
	assert.Contains(t, failed, "database is locked")

	ready := renderStatisticsTab(viewmodel.StatisticsState{
		Status: snapshot.Ready,
		Chart: []model.CategoryTotal{
			{Category: "Rent", Amount: decimal.NewFromInt(900), Fill: model.NoColor},
		},
		Total:     decimal.NewFromInt(900),
		ColorsErr: errors.New("colors down"),
	}, viewmodel.CategoriesState{
		Expenditure: []model.Category{{Title: "Rent", Icon: "home"}},
	}, "$", "*", 80)
	assert.Contains(t, ready, "home Rent")
	assert.Contains(t, ready, "$900.00")
	assert.Contains(t, ready, "colors down")
}

func TestRenderBudgetsTab(t *testing.T) {
	out := renderBudgetsTab(viewmodel.BudgetsState{
		Status: snapshot.Ready,
		Budgets: []viewmodel.BudgetProgress{{
			Entry: model.BudgetEntry{
				Title:      "Groceries",
				Amount:     decimal.NewFromInt(0),
				CurrAmount: decimal.NewFromInt(40),
			},
			Progress: model.Progress{NoTarget: true},
		}},
	}, "$", fixedNow, 80)

	assert.Contains(t, out, "Groceries")
	assert.Contains(t, out, "no target")
	assert.True(t, strings.Contains(out, "$40.00 of $0.00"), out)
}

func TestTitleTaken(t *testing.T) {
	st := viewmodel.CategoriesState{
		Expenditure: []model.Category{{Title: "Food"}},
		Income:      []model.Category{{Title: "Salary"}},
	}
	assert.True(t, titleTaken(st, model.ExpenditureCategories, "Food"))
	assert.False(t, titleTaken(st, model.IncomeCategories, "Food"))
	assert.True(t, titleTaken(st, model.IncomeCategories, "Salary"))
}
