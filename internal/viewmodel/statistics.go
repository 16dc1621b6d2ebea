package viewmodel

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/snapshot"
)

// StatisticsState is one immutable rendering of the expense chart.
type StatisticsState struct {
	Status snapshot.State
	Range  pipeline.DateRange
	Chart  []model.CategoryTotal
	Total  decimal.Decimal
	// Rejected lists transaction and color documents left out of the chart.
	Rejected []pipeline.Rejection
	// Err is set when the transaction subscription has failed. Chart then
	// holds the last good data, if any.
	Err error
	// ColorsErr is set when only the color subscription failed. The chart
	// still renders, with stale or missing fills.
	ColorsErr error
	// ColorsLoaded is set once the color subscription has delivered or failed.
	ColorsLoaded bool
	UpdatedAt    time.Time
}

// Statistics is the expense chart for a date range: transactions and
// expense category colors, joined whenever either side changes.
type Statistics struct {
	*base
	rng      pipeline.DateRange
	onChange func(StatisticsState)
	latest   atomic.Pointer[StatisticsState]

	// loop-owned
	amounts     *pipeline.Totals
	colors      pipeline.ColorMap
	haveAmounts bool
	txRejected  []pipeline.Rejection
	colRejected []pipeline.Rejection
	txErr       error
	colorsErr   error
	colorsSeen  bool
}

// NewStatistics subscribes to transactions in rng and to expense category
// colors. onChange, if set, runs on the view's loop after every update.
func NewStatistics(deps Deps, rng pipeline.DateRange, onChange func(StatisticsState)) *Statistics {
	s := &Statistics{
		base:     newBase(deps, "statistics"),
		rng:      rng,
		onChange: onChange,
		colors:   pipeline.ColorMap{},
	}
	s.latest.Store(&StatisticsState{Status: snapshot.Loading, Range: rng})

	txQuery := rng.Query(docstore.Collection(deps.Collections.Transactions), "date")
	s.subscribe(txQuery, s.onTransactions)
	s.subscribe(docstore.Collection(deps.Collections.ExpenseCategories), s.onColors)
	return s
}

// Range returns the date range the view covers.
func (s *Statistics) Range() pipeline.DateRange {
	return s.rng
}

// Latest returns the most recent state. Status is Loading until the first
// transaction delivery.
func (s *Statistics) Latest() StatisticsState {
	return *s.latest.Load()
}

// Close stops both subscriptions. No callback starts after Close returns,
// but one already running on the loop may still finish.
func (s *Statistics) Close() {
	s.close()
}

func (s *Statistics) onTransactions(snap snapshot.Snapshot) {
	if snap.State == snapshot.Failed {
		s.txErr = snap.Err
		s.publish(snap.At)
		return
	}

	records, rejected := pipeline.ProjectAll(snap.Docs, pipeline.ProjectExpense)
	s.logRejections(s.deps.Collections.Transactions, rejected)

	s.amounts = pipeline.Aggregate(records)
	s.txRejected = rejected
	s.txErr = nil
	s.haveAmounts = true
	s.publish(snap.At)
}

func (s *Statistics) onColors(snap snapshot.Snapshot) {
	s.colorsSeen = true
	if snap.State == snapshot.Failed {
		s.colorsErr = snap.Err
		s.publish(snap.At)
		return
	}

	colors, rejected := pipeline.ProjectAll(snap.Docs, pipeline.ProjectColor)
	s.logRejections(s.deps.Collections.ExpenseCategories, rejected)

	s.colors = pipeline.ResolveColors(colors)
	s.colRejected = rejected
	s.colorsErr = nil
	s.publish(snap.At)
}

// publish re-assembles from the cached amounts and colors.
func (s *Statistics) publish(at time.Time) {
	if !s.haveAmounts && s.txErr == nil {
		// Colors arrived first; nothing to draw yet.
		return
	}

	st := StatisticsState{
		Status:       snapshot.Ready,
		Range:        s.rng,
		Chart:        pipeline.Assemble(s.amounts, s.colors),
		Total:        s.amounts.Sum(),
		Err:          s.txErr,
		ColorsErr:    s.colorsErr,
		ColorsLoaded: s.colorsSeen,
		UpdatedAt:    at,
	}
	if s.txErr != nil {
		st.Status = snapshot.Failed
	}
	st.Rejected = append(append([]pipeline.Rejection(nil), s.txRejected...), s.colRejected...)

	s.latest.Store(&st)
	if s.onChange != nil {
		s.onChange(st)
	}
}
