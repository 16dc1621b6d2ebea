package pipeline

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/model"
)

// ProgressRatio returns how full a budget is. A target of zero or below has
// no meaningful ratio and is reported as NoTarget with Ratio 0. Otherwise the
// ratio is clamped to [0, 1] and Overspent is set when progress passes the target.
func ProgressRatio(entry model.BudgetEntry) model.Progress {
	if entry.Amount.Sign() <= 0 {
		return model.Progress{NoTarget: true}
	}

	p := model.Progress{Overspent: entry.CurrAmount.GreaterThan(entry.Amount)}
	switch {
	case entry.CurrAmount.Sign() <= 0:
		p.Ratio = 0
	case p.Overspent:
		p.Ratio = 1
	default:
		p.Ratio = entry.CurrAmount.DivRound(entry.Amount, 8).InexactFloat64()
	}
	return p
}

// ProjectBudget validates a budget document. A missing currAmount counts as
// no progress; a present but non-numeric one is an error.
func ProjectBudget(doc docstore.Document) (model.BudgetEntry, bool, error) {
	title := strings.TrimSpace(doc.String("title"))
	if title == "" {
		return model.BudgetEntry{}, false, dataErr(doc.ID, "title", ErrMissingTitle)
	}

	raw, _ := doc.Value("amount")
	amount, err := ParseAmount(raw)
	if err != nil {
		return model.BudgetEntry{}, false, dataErr(doc.ID, "amount", err)
	}

	curr := decimal.Zero
	if raw, ok := doc.Value("currAmount"); ok && raw != nil {
		curr, err = ParseAmount(raw)
		if err != nil {
			return model.BudgetEntry{}, false, dataErr(doc.ID, "currAmount", err)
		}
	}

	start, err := parseDate(doc.String("startDate"))
	if err != nil {
		return model.BudgetEntry{}, false, dataErr(doc.ID, "startDate", err)
	}
	end, err := parseDate(doc.String("endDate"))
	if err != nil {
		return model.BudgetEntry{}, false, dataErr(doc.ID, "endDate", err)
	}

	cats, err := stringList(doc, "categories")
	if err != nil {
		return model.BudgetEntry{}, false, err
	}

	return model.BudgetEntry{
		ID:         doc.ID,
		Title:      title,
		Amount:     amount,
		CurrAmount: curr,
		StartDate:  start,
		EndDate:    end,
		Categories: cats,
	}, true, nil
}

func stringList(doc docstore.Document, field string) ([]string, error) {
	raw, ok := doc.Value(field)
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, dataErr(doc.ID, field, fmt.Errorf("expected a list, got %T", raw))
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, dataErr(doc.ID, field, fmt.Errorf("expected strings, got %T", it))
		}
		out = append(out, s)
	}
	return out, nil
}
