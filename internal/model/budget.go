package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetEntry holds one spending target and the progress made against it.
type BudgetEntry struct {
	ID         string
	Title      string
	Amount     decimal.Decimal // target
	CurrAmount decimal.Decimal // progress so far
	StartDate  time.Time
	EndDate    time.Time
	Categories []string
}

// Progress is a budget's fill level, safe to hand to a progress bar.
type Progress struct {
	Ratio     float64 // always within [0, 1]
	NoTarget  bool    // target was zero or negative; Ratio is 0
	Overspent bool    // progress exceeded the target; Ratio is clamped to 1
}
