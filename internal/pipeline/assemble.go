package pipeline

import "github.com/theirongolddev/fintrack/internal/model"

// Assemble joins category totals with colors into chart entries, one per
// category of amounts in first-seen order. Categories without a color get
// model.NoColor; none are dropped.
func Assemble(amounts *Totals, colors ColorMap) []model.CategoryTotal {
	out := make([]model.CategoryTotal, 0, amounts.Len())
	for _, cat := range amounts.Keys() {
		amt, _ := amounts.Get(cat)
		out = append(out, model.CategoryTotal{
			Category: cat,
			Amount:   amt,
			Fill:     colors.Lookup(cat),
		})
	}
	return out
}
