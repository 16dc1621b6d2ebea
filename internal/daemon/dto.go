package daemon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/viewmodel"
)

// JSON payloads. Amounts leave the service as numbers rounded to cents.

// RangeDTO is an inclusive YYYY-MM-DD range.
type RangeDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CategoryAmount is one chart tuple.
type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Fill     string  `json:"fill"`
}

// StatisticsDTO is served at /v1/statistics.
type StatisticsDTO struct {
	State       string           `json:"state"`
	Range       RangeDTO         `json:"range"`
	Chart       []CategoryAmount `json:"chart"`
	Total       float64          `json:"total"`
	Rejected    int              `json:"rejected"`
	Error       string           `json:"error,omitempty"`
	ColorsError string           `json:"colors_error,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// BudgetDTO is one budget with its progress.
type BudgetDTO struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Target     float64  `json:"target"`
	Spent      float64  `json:"spent"`
	Ratio      float64  `json:"ratio"`
	NoTarget   bool     `json:"no_target,omitempty"`
	Overspent  bool     `json:"overspent,omitempty"`
	Start      string   `json:"start,omitempty"`
	End        string   `json:"end,omitempty"`
	Categories []string `json:"categories"`
}

// BudgetsDTO is served at /v1/budgets.
type BudgetsDTO struct {
	State     string      `json:"state"`
	Budgets   []BudgetDTO `json:"budgets"`
	Rejected  int         `json:"rejected"`
	Error     string      `json:"error,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CategoryDTO is one category document.
type CategoryDTO struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Icon    string `json:"icon,omitempty"`
	Color   string `json:"color,omitempty"`
	Checked bool   `json:"checked"`
}

// CategoriesDTO is served at /v1/categories.
type CategoriesDTO struct {
	State       string        `json:"state"`
	Expenditure []CategoryDTO `json:"expenditure"`
	Income      []CategoryDTO `json:"income"`
	Rejected    int           `json:"rejected"`
	Error       string        `json:"error,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func rangeDTO(r pipeline.DateRange) RangeDTO {
	return RangeDTO{Start: r.Start, End: r.End}
}

func statisticsDTO(st viewmodel.StatisticsState) StatisticsDTO {
	chart := make([]CategoryAmount, 0, len(st.Chart))
	for _, c := range st.Chart {
		chart = append(chart, CategoryAmount{Category: c.Category, Amount: money(c.Amount), Fill: string(c.Fill)})
	}
	return StatisticsDTO{
		State:       st.Status.String(),
		Range:       rangeDTO(st.Range),
		Chart:       chart,
		Total:       money(st.Total),
		Rejected:    len(st.Rejected),
		Error:       errString(st.Err),
		ColorsError: errString(st.ColorsErr),
		UpdatedAt:   st.UpdatedAt,
	}
}

func budgetsDTO(st viewmodel.BudgetsState) BudgetsDTO {
	out := make([]BudgetDTO, 0, len(st.Budgets))
	for _, bp := range st.Budgets {
		e := bp.Entry
		cats := e.Categories
		if cats == nil {
			cats = []string{}
		}
		out = append(out, BudgetDTO{
			ID:         e.ID,
			Title:      e.Title,
			Target:     money(e.Amount),
			Spent:      money(e.CurrAmount),
			Ratio:      bp.Progress.Ratio,
			NoTarget:   bp.Progress.NoTarget,
			Overspent:  bp.Progress.Overspent,
			Start:      dateString(e.StartDate),
			End:        dateString(e.EndDate),
			Categories: cats,
		})
	}
	return BudgetsDTO{
		State:     st.Status.String(),
		Budgets:   out,
		Rejected:  len(st.Rejected),
		Error:     errString(st.Err),
		UpdatedAt: st.UpdatedAt,
	}
}

func categoryDTOs(cats []model.Category) []CategoryDTO {
	out := make([]CategoryDTO, 0, len(cats))
	for _, c := range cats {
		out = append(out, CategoryDTO{
			Key:     c.Key,
			Title:   c.Title,
			Icon:    c.Icon,
			Color:   string(c.Color),
			Checked: c.Checked,
		})
	}
	return out
}

func categoriesDTO(st viewmodel.CategoriesState) CategoriesDTO {
	return CategoriesDTO{
		State:       st.Status.String(),
		Expenditure: categoryDTOs(st.Expenditure),
		Income:      categoryDTOs(st.Income),
		Rejected:    len(st.Rejected),
		Error:       errString(st.Err),
		UpdatedAt:   st.UpdatedAt,
	}
}
