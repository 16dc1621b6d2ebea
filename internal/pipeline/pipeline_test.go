package pipeline

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rec(cat, amount string) model.TransactionRecord {
	return model.TransactionRecord{Category: cat, Amount: d(amount), Type: model.Expenditure}
}

func txDoc(id string, data map[string]any) docstore.Document {
	return docstore.Document{ID: id, Version: 1, Data: data}
}

func TestScenarioFoodRent(t *testing.T) {
	records := []model.TransactionRecord{rec("Food", "10"), rec("Food", "5"), rec("Rent", "100")}

	amounts := Aggregate(records)
	assert.Equal(t, []string{"Food", "Rent"}, amounts.Keys())
	food, _ := amounts.Get("Food")
	rent, _ := amounts.Get("Rent")
	assert.True(t, food.Equal(d("15")), "Food = %s, want 15", food)
	assert.True(t, rent.Equal(d("100")), "Rent = %s, want 100", rent)

	colors := ResolveColors([]model.CategoryColor{{Title: "Food", Color: "#FF0000"}})
	chart := Assemble(amounts, colors)

	require.Len(t, chart, 2)
	assert.Equal(t, "Food", chart[0].Category)
	assert.True(t, chart[0].Amount.Equal(d("15")))
	assert.Equal(t, model.Color("#FF0000"), chart[0].Fill)
	assert.Equal(t, "Rent", chart[1].Category)
	assert.True(t, chart[1].Amount.Equal(d("100")))
	assert.Equal(t, model.NoColor, chart[1].Fill)
}

func TestAggregateEmpty(t *testing.T) {
	amounts := Aggregate(nil)
	assert.Equal(t, 0, amounts.Len())
	assert.Empty(t, Assemble(amounts, ResolveColors([]model.CategoryColor{{Title: "Food", Color: "#fff"}})))
	assert.Empty(t, Assemble(nil, nil))
}

func TestAggregatePermutationInvariant(t *testing.T) {
	cats := []string{"Food", "Rent", "Fun", "Travel"}
	rng := rand.New(rand.NewSource(42))

	var records []model.TransactionRecord
	for i := 0; i < 500; i++ {
		amt := decimal.New(rng.Int63n(100000), -2)
		records = append(records, model.TransactionRecord{Category: cats[rng.Intn(len(cats))], Amount: amt})
	}
	want := Aggregate(records)

	for trial := 0; trial < 20; trial++ {
		shuffled := append([]model.TransactionRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := Aggregate(shuffled)
		if !got.Equal(want) {
			t.Fatalf("trial %d: totals differ after shuffle", trial)
		}
	}
}

func TestAggregateExactDecimal(t *testing.T) {
	var records []model.TransactionRecord
	for i := 0; i < 10; i++ {
		records = append(records, rec("Food", "0.1"))
	}
	got, _ := Aggregate(records).Get("Food")
	assert.True(t, got.Equal(d("1")), "sum = %s, want 1", got)
}

func TestAssembleIdempotent(t *testing.T) {
	records := []model.TransactionRecord{rec("A", "1"), rec("B", "2"), rec("A", "3")}
	colors := []model.CategoryColor{{Title: "A", Color: "#111"}, {Title: "C", Color: "#333"}}

	first := Assemble(Aggregate(records), ResolveColors(colors))
	second := Assemble(Aggregate(records), ResolveColors(colors))
	assert.Equal(t, first, second)
}

func TestResolveColorsLastWriteWins(t *testing.T) {
	m := ResolveColors([]model.CategoryColor{
		{Title: "Food", Color: "#111111"},
		{Title: "Rent", Color: "#222222"},
		{Title: "Food", Color: "#333333"},
	})
	assert.Equal(t, model.Color("#333333"), m.Lookup("Food"))
	assert.Equal(t, model.Color("#222222"), m.Lookup("Rent"))
	assert.Equal(t, model.NoColor, m.Lookup("Travel"))
}

func TestAggregateByMonth(t *testing.T) {
	a := rec("Food", "1")
	a.Month = "2024-05"
	b := rec("Food", "2")
	b.Month = "2024-06"
	c := rec("Rent", "3")
	c.Month = "2024-05"

	months := AggregateByMonth([]model.TransactionRecord{a, b, c})
	assert.Equal(t, []string{"2024-05", "2024-06"}, SortedMonths(months))
	assert.Equal(t, []string{"Food", "Rent"}, months["2024-05"].Keys())
	assert.True(t, months["2024-06"].Sum().Equal(d("2")))
}

func TestProjectExpense(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		wantOK  bool
		wantErr error
		amount  string
	}{
		{"number", map[string]any{"type": "expenditure", "category": "Food", "amount": json.Number("12.50")}, true, nil, "12.5"},
		{"string", map[string]any{"type": "expenditure", "category": "Food", "amount": "7"}, true, nil, "7"},
		{"comma decimal", map[string]any{"type": "expenditure", "category": "Food", "amount": "7,25"}, true, nil, "7.25"},
		{"float", map[string]any{"type": "expenditure", "category": "Food", "amount": 3.5}, true, nil, "3.5"},
		{"income filtered", map[string]any{"type": "income", "category": "Salary", "amount": 50}, false, nil, ""},
		{"income with bad amount filtered", map[string]any{"type": "income", "amount": "lots"}, false, nil, ""},
		{"non-numeric", map[string]any{"type": "expenditure", "category": "Food", "amount": "abc"}, false, ErrNonNumericAmount, ""},
		{"missing amount", map[string]any{"type": "expenditure", "category": "Food"}, false, ErrNonNumericAmount, ""},
		{"missing category", map[string]any{"type": "expenditure", "amount": "1"}, false, ErrMissingCategory, ""},
		{"unknown type", map[string]any{"type": "transfer", "category": "Food", "amount": "1"}, false, ErrUnknownType, ""},
		{"bad date", map[string]any{"type": "expenditure", "category": "Food", "amount": "1", "date": "May 5"}, false, ErrBadDate, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok, err := ProjectExpense(txDoc("doc1", tt.data))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var de *DataError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, "doc1", de.DocID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.True(t, r.Amount.Equal(d(tt.amount)), "amount = %s, want %s", r.Amount, tt.amount)
			}
		})
	}
}

func TestProjectExpenseDoesNotMutate(t *testing.T) {
	data := map[string]any{"type": "expenditure", "category": " Food ", "amount": "1", "date": "2024-05-06", "extra": "x"}
	_, ok, err := ProjectExpense(txDoc("a", data))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "expenditure", "category": " Food ", "amount": "1", "date": "2024-05-06", "extra": "x"}, data)
}

func TestProjectTransactionFields(t *testing.T) {
	r, err := ProjectTransaction(txDoc("t1", map[string]any{
		"type": "income", "category": "Salary", "amount": "1000", "date": "2024-05-06", "title": "May pay",
	}))
	require.NoError(t, err)
	assert.Equal(t, model.Income, r.Type)
	assert.Equal(t, "2024-05", r.Month)
	assert.Equal(t, "May pay", r.Title)
	assert.Equal(t, 6, r.Date.Day())
}

func TestProjectAllPartialFailure(t *testing.T) {
	docs := []docstore.Document{
		txDoc("a", map[string]any{"type": "expenditure", "category": "Food", "amount": "10"}),
		txDoc("b", map[string]any{"type": "expenditure", "category": "Food", "amount": "ten"}),
		txDoc("c", map[string]any{"type": "income", "category": "Pay", "amount": "50"}),
		txDoc("d", map[string]any{"type": "expenditure", "category": "Rent", "amount": "100"}),
	}

	records, rejected := ProjectAll(docs, ProjectExpense)
	require.Len(t, records, 2)
	require.Len(t, rejected, 1)
	assert.Equal(t, "b", rejected[0].DocID)
	assert.ErrorIs(t, rejected[0].Err, ErrNonNumericAmount)

	amounts := Aggregate(records)
	assert.Equal(t, []string{"Food", "Rent"}, amounts.Keys())
}

func TestProgressRatio(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		curr      string
		ratio     float64
		noTarget  bool
		overspent bool
	}{
		{"half", "200", "100", 0.5, false, false},
		{"zero target", "0", "50", 0, true, false},
		{"negative target", "-5", "1", 0, true, false},
		{"overspent", "100", "150", 1, false, true},
		{"exact", "100", "100", 1, false, false},
		{"negative progress", "100", "-10", 0, false, false},
		{"third", "3", "1", 1.0 / 3, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ProgressRatio(model.BudgetEntry{Amount: d(tt.amount), CurrAmount: d(tt.curr)})
			assert.InDelta(t, tt.ratio, p.Ratio, 1e-6)
			assert.Equal(t, tt.noTarget, p.NoTarget)
			assert.Equal(t, tt.overspent, p.Overspent)
			assert.False(t, math.IsNaN(p.Ratio) || math.IsInf(p.Ratio, 0))
		})
	}
}

func TestProjectBudget(t *testing.T) {
	b, ok, err := ProjectBudget(txDoc("b1", map[string]any{
		"title":      "Groceries",
		"amount":     json.Number("300"),
		"currAmount": "120.5",
		"startDate":  "2024-05-01",
		"endDate":    "2024-05-31",
		"categories": []any{"Food", "Drinks"},
	}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Groceries", b.Title)
	assert.True(t, b.CurrAmount.Equal(d("120.5")))
	assert.Equal(t, []string{"Food", "Drinks"}, b.Categories)
	assert.Equal(t, time.May, b.EndDate.Month())

	b, _, err = ProjectBudget(txDoc("b2", map[string]any{"title": "Empty", "amount": 0}))
	require.NoError(t, err)
	assert.True(t, b.CurrAmount.IsZero())
	assert.True(t, ProgressRatio(b).NoTarget)

	_, _, err = ProjectBudget(txDoc("b3", map[string]any{"title": "X", "amount": "1", "categories": "Food"}))
	var de *DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "categories", de.Field)

	_, _, err = ProjectBudget(txDoc("b4", map[string]any{"amount": "1"}))
	assert.ErrorIs(t, err, ErrMissingTitle)
}

func TestProjectColorAndCategory(t *testing.T) {
	c, ok, err := ProjectColor(txDoc("k1", map[string]any{"title": "Food", "color": "#F66A73", "checked": true}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.CategoryColor{Title: "Food", Color: "#F66A73", Checked: true}, c)

	_, _, err = ProjectColor(txDoc("k2", map[string]any{"color": "#000"}))
	assert.ErrorIs(t, err, ErrMissingTitle)

	cat, ok, err := ProjectCategory(model.IncomeCategories)(txDoc("k3", map[string]any{"title": "Salary", "icon": "cash", "id": "7"}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.Category{Key: "k3", ID: "7", Title: "Salary", Icon: "cash", Kind: model.IncomeCategories}, cat)
}

func TestWeekRange(t *testing.T) {
	tests := []struct {
		day   string
		start string
		end   string
	}{
		{"2024-05-06", "2024-05-06", "2024-05-12"}, // Monday
		{"2024-05-09", "2024-05-06", "2024-05-12"},
		{"2024-05-12", "2024-05-06", "2024-05-12"}, // Sunday
		{"2024-12-31", "2024-12-30", "2025-01-05"},
	}
	for _, tt := range tests {
		day, err := time.ParseInLocation("2006-01-02", tt.day, time.UTC)
		require.NoError(t, err)
		day = day.Add(23 * time.Hour)
		r := WeekRange(day)
		assert.Equal(t, DateRange{Start: tt.start, End: tt.end}, r, tt.day)
		assert.True(t, r.Contains(tt.day))
	}
}

func TestDateRangeQuery(t *testing.T) {
	r := DateRange{Start: "2024-05-06", End: "2024-05-12"}
	q := r.Query(docstore.Collection("trans"), "date")
	require.Len(t, q.Filters, 2)
	assert.Equal(t, docstore.Gte, q.Filters[0].Op)
	assert.Equal(t, docstore.Lte, q.Filters[1].Op)
	assert.False(t, r.Contains("2024-05-13"))

	assert.Empty(t, DateRange{}.Query(docstore.Collection("trans"), "date").Filters)
	assert.Equal(t, DateRange{Start: "2024-02-01", End: "2024-02-29"}, MonthRange(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)))
}
