package viewmodel

import (
	"context"

	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/snapshot"
)

// settle opens a view, waits until its state satisfies done and closes it.
// On ctx expiry the last state is returned along with ctx.Err().
func settle[S any](ctx context.Context, open func(onChange func(S)) (latest func() S, closeFn func()), done func(S) bool) (S, error) {
	wake := make(chan struct{}, 1)
	latest, closeFn := open(func(S) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer closeFn()

	for {
		st := latest()
		if done(st) {
			return st, nil
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return latest(), ctx.Err()
		}
	}
}

// StatisticsOnce returns the first settled expense chart for rng: transactions
// delivered or failed, and colors delivered or failed.
func StatisticsOnce(ctx context.Context, deps Deps, rng pipeline.DateRange) (StatisticsState, error) {
	return settle(ctx, func(onChange func(StatisticsState)) (func() StatisticsState, func()) {
		v := NewStatistics(deps, rng, onChange)
		return v.Latest, v.Close
	}, func(st StatisticsState) bool {
		return st.Status == snapshot.Failed || (st.Status == snapshot.Ready && st.ColorsLoaded)
	})
}

// BudgetsOnce returns the first settled budget list.
func BudgetsOnce(ctx context.Context, deps Deps) (BudgetsState, error) {
	return settle(ctx, func(onChange func(BudgetsState)) (func() BudgetsState, func()) {
		v := NewBudgets(deps, onChange)
		return v.Latest, v.Close
	}, func(st BudgetsState) bool {
		return st.Status != snapshot.Loading
	})
}

// CategoriesOnce returns the first settled pair of category sets.
func CategoriesOnce(ctx context.Context, deps Deps) (CategoriesState, error) {
	return settle(ctx, func(onChange func(CategoriesState)) (func() CategoriesState, func()) {
		v := NewCategories(deps, onChange)
		return v.Latest, v.Close
	}, func(st CategoriesState) bool {
		return st.Status != snapshot.Loading
	})
}
