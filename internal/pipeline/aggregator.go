// Package pipeline turns projected documents into chart and progress data:
// records are folded into per-category totals, joined with category colors
// and handed to renderers.
package pipeline

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/model"
)

// Totals maps categories to summed amounts, remembering the order in which
// categories were first seen.
type Totals struct {
	keys []string
	sums map[string]decimal.Decimal
}

// NewTotals returns an empty mapping.
func NewTotals() *Totals {
	return &Totals{sums: make(map[string]decimal.Decimal)}
}

// Add adds amount to category, creating the entry on first occurrence.
func (t *Totals) Add(category string, amount decimal.Decimal) {
	cur, ok := t.sums[category]
	if !ok {
		t.keys = append(t.keys, category)
	}
	t.sums[category] = cur.Add(amount)
}

// Keys returns the categories in first-seen order.
func (t *Totals) Keys() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Get returns the total for category.
func (t *Totals) Get(category string) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	v, ok := t.sums[category]
	return v, ok
}

// Len returns the number of categories.
func (t *Totals) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Sum returns the total across all categories.
func (t *Totals) Sum() decimal.Decimal {
	total := decimal.Zero
	if t == nil {
		return total
	}
	for _, v := range t.sums {
		total = total.Add(v)
	}
	return total
}

// Equal reports whether both mappings hold the same categories and amounts,
// ignoring order.
func (t *Totals) Equal(other *Totals) bool {
	if t.Len() != other.Len() {
		return false
	}
	for _, k := range t.Keys() {
		ov, ok := other.Get(k)
		if !ok {
			return false
		}
		v, _ := t.Get(k)
		if !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Aggregate folds records into per-category totals. Decimal addition is
// exact, so the result does not depend on record order.
func Aggregate(records []model.TransactionRecord) *Totals {
	totals := NewTotals()
	for _, r := range records {
		totals.Add(r.Category, r.Amount)
	}
	return totals
}

// AggregateByMonth folds records into per-category totals for each month.
// Records without a month are grouped under "".
func AggregateByMonth(records []model.TransactionRecord) map[string]*Totals {
	months := make(map[string]*Totals)
	for _, r := range records {
		t, ok := months[r.Month]
		if !ok {
			t = NewTotals()
			months[r.Month] = t
		}
		t.Add(r.Category, r.Amount)
	}
	return months
}

// SortedMonths returns the keys of a month mapping, oldest first.
func SortedMonths(months map[string]*Totals) []string {
	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
