// Package export writes fintrack statistics, budgets and categories to an
// xlsx workbook.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/viewmodel"
)

// Sheet names.
const (
	SheetExpenses   = "Expenses"
	SheetMonthly    = "Monthly"
	SheetBudgets    = "Budgets"
	SheetCategories = "Categories"
)

const moneyFormat = "#,##0.00"

// Report is everything one workbook contains.
type Report struct {
	Range pipeline.DateRange
	Chart []model.CategoryTotal
	// Monthly holds expense totals per YYYY-MM month. Optional.
	Monthly     map[string]*pipeline.Totals
	Budgets     []viewmodel.BudgetProgress
	Expenditure []model.Category
	Income      []model.Category
}

type styles struct {
	title   int
	header  int
	money   int
	percent int
}

// Build renders r into a new workbook. The caller closes the file.
func Build(r Report) (*excelize.File, error) {
	f := excelize.NewFile()

	st, err := newStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if err := f.SetSheetName(f.GetSheetName(0), SheetExpenses); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}

	steps := []func(*excelize.File, Report, styles) error{
		writeExpenses,
		writeMonthly,
		writeBudgets,
		writeCategories,
	}
	for _, step := range steps {
		if err := step(f, r, st); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write renders r as xlsx into w.
func Write(w io.Writer, r Report) error {
	f, err := Build(r)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// WriteFile renders r to path, creating parent directories.
func WriteFile(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}
	f, err := Build(r)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	money := moneyFormat
	if st.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	}); err != nil {
		return st, fmt.Errorf("creating title style: %w", err)
	}
	if st.header, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#205EA6"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "#100F0F", Style: 1}},
	}); err != nil {
		return st, fmt.Errorf("creating header style: %w", err)
	}
	if st.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &money}); err != nil {
		return st, fmt.Errorf("creating money style: %w", err)
	}
	if st.percent, err = f.NewStyle(&excelize.Style{NumFmt: 10}); err != nil {
		return st, fmt.Errorf("creating percent style: %w", err)
	}
	return st, nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// writeRow sets consecutive cells starting at column 1.
func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for i, v := range values {
		if err := f.SetCellValue(sheet, cell(i+1, row), v); err != nil {
			return fmt.Errorf("writing %s!%s: %w", sheet, cell(i+1, row), err)
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, row int, st styles, headers ...any) error {
	if err := writeRow(f, sheet, row, headers...); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell(1, row), cell(len(headers), row), st.header)
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func writeExpenses(f *excelize.File, r Report, st styles) error {
	sheet := SheetExpenses

	if err := writeRow(f, sheet, 1, "Expenses "+r.Range.String()); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", st.title); err != nil {
		return err
	}
	if err := writeHeader(f, sheet, 3, st, "Category", "Amount", "Share", "Color"); err != nil {
		return err
	}

	total := decimal.Zero
	for _, c := range r.Chart {
		total = total.Add(c.Amount)
	}

	row := 4
	for _, c := range r.Chart {
		share := 0.0
		if total.IsPositive() {
			share = c.Amount.Div(total).InexactFloat64()
		}
		if err := writeRow(f, sheet, row, c.Category, amount(c.Amount), share, string(c.Fill)); err != nil {
			return err
		}
		if hex, ok := c.Fill.Hex(); ok {
			swatch, err := f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Color: []string{hex}, Pattern: 1},
			})
			if err != nil {
				return fmt.Errorf("creating swatch style: %w", err)
			}
			if err := f.SetCellStyle(sheet, cell(4, row), cell(4, row), swatch); err != nil {
				return err
			}
		}
		row++
	}
	last := row - 1

	if err := writeRow(f, sheet, row, "Total", amount(total)); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell(2, 4), cell(2, row), st.money); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell(3, 4), cell(3, row), st.percent); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "A", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "D", 14); err != nil {
		return err
	}

	if len(r.Chart) == 0 {
		return nil
	}
	if err := f.AddChart(sheet, "F3", &excelize.Chart{
		Type: excelize.Pie,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$A$1", sheet),
			Categories: fmt.Sprintf("%s!$A$4:$A$%d", sheet, last),
			Values:     fmt.Sprintf("%s!$B$4:$B$%d", sheet, last),
		}},
		Title: []excelize.RichTextRun{{Text: "Expenses by category"}},
	}); err != nil {
		return fmt.Errorf("adding expense chart: %w", err)
	}
	return nil
}

// writeMonthly lays out months as rows and categories as columns.
func writeMonthly(f *excelize.File, r Report, st styles) error {
	if len(r.Monthly) == 0 {
		return nil
	}
	sheet := SheetMonthly
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating %s sheet: %w", sheet, err)
	}

	months := pipeline.SortedMonths(r.Monthly)

	// Column order: first appearance across months.
	seen := make(map[string]int)
	var cats []string
	for _, m := range months {
		for _, c := range r.Monthly[m].Keys() {
			if _, ok := seen[c]; !ok {
				seen[c] = len(cats)
				cats = append(cats, c)
			}
		}
	}

	header := []any{"Month"}
	for _, c := range cats {
		header = append(header, c)
	}
	header = append(header, "Total")
	if err := writeHeader(f, sheet, 1, st, header...); err != nil {
		return err
	}

	for i, m := range months {
		t := r.Monthly[m]
		values := make([]any, len(cats)+2)
		values[0] = m
		for j, c := range cats {
			if v, ok := t.Get(c); ok {
				values[j+1] = amount(v)
			}
		}
		values[len(values)-1] = amount(t.Sum())
		if err := writeRow(f, sheet, i+2, values...); err != nil {
			return err
		}
	}
	return f.SetCellStyle(sheet, cell(2, 2), cell(len(cats)+2, len(months)+1), st.money)
}

func writeBudgets(f *excelize.File, r Report, st styles) error {
	sheet := SheetBudgets
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating %s sheet: %w", sheet, err)
	}
	if err := writeHeader(f, sheet, 1, st,
		"Budget", "Target", "Spent", "Progress", "Start", "End", "Categories"); err != nil {
		return err
	}

	for i, bp := range r.Budgets {
		var progress any = bp.Progress.Ratio
		if bp.Progress.NoTarget {
			progress = "no target"
		}
		if err := writeRow(f, sheet, i+2,
			bp.Entry.Title,
			amount(bp.Entry.Amount),
			amount(bp.Entry.CurrAmount),
			progress,
			formatDate(bp.Entry.StartDate),
			formatDate(bp.Entry.EndDate),
			joinList(bp.Entry.Categories),
		); err != nil {
			return err
		}
	}
	if len(r.Budgets) == 0 {
		return nil
	}
	last := len(r.Budgets) + 1
	if err := f.SetCellStyle(sheet, "B2", cell(3, last), st.money); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "D2", cell(4, last), st.percent)
}

func writeCategories(f *excelize.File, r Report, st styles) error {
	sheet := SheetCategories
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating %s sheet: %w", sheet, err)
	}
	if err := writeHeader(f, sheet, 1, st, "Kind", "Title", "Icon", "Color", "Checked"); err != nil {
		return err
	}

	row := 2
	for _, list := range [][]model.Category{r.Expenditure, r.Income} {
		for _, c := range list {
			if err := writeRow(f, sheet, row, string(c.Kind), c.Title, c.Icon, string(c.Color), c.Checked); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}
