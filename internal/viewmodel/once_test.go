package viewmodel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/snapshot"
)

func TestStatisticsOnceWaitsForColors(t *testing.T) {
	h := newHarness(t)
	h.put(t, "trans", "t1", map[string]any{"type": "expenditure", "category": "Food", "amount": "4.20", "date": "2024-05-07"})
	h.put(t, "expense_categories", "c1", map[string]any{"title": "Food", "color": "#00FF00"})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	st, err := StatisticsOnce(ctx, h.deps, week)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Ready, st.Status)
	assert.True(t, st.ColorsLoaded)
	require.Len(t, st.Chart, 1)
	assert.Equal(t, model.Color("#00FF00"), st.Chart[0].Fill)
}

func TestStatisticsOnceReportsFailure(t *testing.T) {
	h := newHarness(t)
	h.deps.Store = failingStore{Store: h.store, collection: "trans"}
	h.deps.Subscription = snapshot.Options{Interval: 5 * time.Millisecond, FailureThreshold: 1}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	st, err := StatisticsOnce(ctx, h.deps, week)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Failed, st.Status)
	assert.ErrorIs(t, st.Err, errOffline)
}

func TestBudgetsOnceHonoursContext(t *testing.T) {
	h := newHarness(t)
	h.deps.Store = blockingStore{Store: h.store}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	st, err := BudgetsOnce(ctx, h.deps)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, snapshot.Loading, st.Status)
}

func TestCategoriesOnce(t *testing.T) {
	h := newHarness(t)
	h.put(t, "income_categories", "i1", map[string]any{"title": "Salary", "icon": "cash"})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	st, err := CategoriesOnce(ctx, h.deps)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Ready, st.Status)
	assert.Empty(t, st.Expenditure)
	require.Len(t, st.Income, 1)
	assert.Equal(t, "cash", st.Icon(model.IncomeCategories, "Salary"))
}
