package viewmodel

import (
	"sync/atomic"
	"time"

	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/snapshot"
)

// BudgetProgress pairs a budget with its progress bar value.
type BudgetProgress struct {
	Entry    model.BudgetEntry
	Progress model.Progress
}

// BudgetsState is one immutable rendering of the budget list.
type BudgetsState struct {
	Status    snapshot.State
	Budgets   []BudgetProgress
	Rejected  []pipeline.Rejection
	Err       error
	UpdatedAt time.Time
}

// Budgets is the live budget progress list.
type Budgets struct {
	*base
	onChange func(BudgetsState)
	latest   atomic.Pointer[BudgetsState]
}

// NewBudgets subscribes to the budget collection.
func NewBudgets(deps Deps, onChange func(BudgetsState)) *Budgets {
	b := &Budgets{
		base:     newBase(deps, "budgets"),
		onChange: onChange,
	}
	b.latest.Store(&BudgetsState{Status: snapshot.Loading})
	b.subscribe(docstore.Collection(deps.Collections.Budgets), b.onBudgets)
	return b
}

// Latest returns the most recent state.
func (b *Budgets) Latest() BudgetsState {
	return *b.latest.Load()
}

// Close stops the subscription. A callback already running may still
// finish after Close returns.
func (b *Budgets) Close() {
	b.close()
}

func (b *Budgets) onBudgets(snap snapshot.Snapshot) {
	prev := b.Latest()
	st := BudgetsState{Status: snap.State, UpdatedAt: snap.At}

	if snap.State == snapshot.Failed {
		st.Budgets = prev.Budgets
		st.Rejected = prev.Rejected
		st.Err = snap.Err
	} else {
		entries, rejected := pipeline.ProjectAll(snap.Docs, pipeline.ProjectBudget)
		b.logRejections(b.deps.Collections.Budgets, rejected)

		st.Budgets = make([]BudgetProgress, 0, len(entries))
		for _, e := range entries {
			st.Budgets = append(st.Budgets, BudgetProgress{Entry: e, Progress: pipeline.ProgressRatio(e)})
		}
		st.Rejected = rejected
	}

	b.latest.Store(&st)
	if b.onChange != nil {
		b.onChange(st)
	}
}
