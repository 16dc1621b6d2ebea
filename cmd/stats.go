package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/snapshot"
	"github.com/theirongolddev/fintrack/internal/viewmodel"
)

var (
	flagWeek  int
	flagMonth bool
	flagAll   bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Expenses per category for a week, month or all time",
	RunE:  runStats,
}

func init() {
	addStatsFlags(statsCmd)
	rootCmd.AddCommand(statsCmd)
}

func addStatsFlags(c *cobra.Command) {
	c.Flags().IntVarP(&flagWeek, "week", "w", 0, "Week offset from the current week (-1 is last week)")
	c.Flags().BoolVar(&flagMonth, "month", false, "Show the current calendar month")
	c.Flags().BoolVar(&flagAll, "all", false, "Show all recorded expenses")
}

// statsRange resolves the range flags against now.
func statsRange(now time.Time) (pipeline.DateRange, error) {
	if flagMonth && flagAll {
		return pipeline.DateRange{}, errors.New("--month and --all are mutually exclusive")
	}
	if flagWeek != 0 && (flagMonth || flagAll) {
		return pipeline.DateRange{}, errors.New("--week cannot be combined with --month or --all")
	}
	switch {
	case flagAll:
		return pipeline.DateRange{}, nil
	case flagMonth:
		return pipeline.MonthRange(now), nil
	default:
		return pipeline.WeekRange(now.AddDate(0, 0, 7*flagWeek)), nil
	}
}

func runStats(_ *cobra.Command, _ []string) error {
	rng, err := statsRange(time.Now())
	if err != nil {
		return err
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := waitContext()
	defer cancel()

	st, err := viewmodel.StatisticsOnce(ctx, rt.deps(), rng)
	if err != nil {
		return fmt.Errorf("waiting for expenses: %w", err)
	}
	if st.Status == snapshot.Failed {
		return fmt.Errorf("reading transactions: %w", st.Err)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("Expenses  " + rng.String()))
	fmt.Println()
	fmt.Print(renderStatistics(st, rt.cfg.General.Currency))

	if prev, ok := previousRange(rng); ok {
		before, err := viewmodel.StatisticsOnce(ctx, rt.deps(), prev)
		if err == nil && before.Status == snapshot.Ready {
			fmt.Printf("\n  vs %s: %s\n", prev, cli.FormatDelta(st.Total, before.Total, rt.cfg.General.Currency))
		}
	}
	if rng.IsZero() {
		trend, err := monthlyTrend(ctx, rt)
		if err != nil {
			return err
		}
		fmt.Print(trend)
	}
	return nil
}

// previousRange is the period of the same length just before rng: the prior
// week or the prior month. An unbounded range has none.
func previousRange(rng pipeline.DateRange) (pipeline.DateRange, bool) {
	start, err := time.ParseInLocation("2006-01-02", rng.Start, time.Local)
	if err != nil {
		return pipeline.DateRange{}, false
	}
	if flagMonth {
		return pipeline.MonthRange(start.AddDate(0, 0, -1)), true
	}
	return pipeline.WeekRange(start.AddDate(0, 0, -7)), true
}

// monthlyTrend renders a sparkline of expense totals per month.
func monthlyTrend(ctx context.Context, rt *runtime) (string, error) {
	docs, err := rt.store.Query(ctx, docstore.Collection(rt.cfg.Collections.Transactions))
	if err != nil {
		return "", fmt.Errorf("reading transactions: %w", err)
	}
	records, _ := pipeline.ProjectAll(docs, pipeline.ProjectExpense)
	byMonth := pipeline.AggregateByMonth(records)
	delete(byMonth, "")
	months := pipeline.SortedMonths(byMonth)
	if len(months) < 2 {
		return "", nil
	}

	values := make([]float64, len(months))
	peak := decimal.Zero
	for i, m := range months {
		sum := byMonth[m].Sum()
		values[i] = sum.InexactFloat64()
		peak = decimal.Max(peak, sum)
	}
	return fmt.Sprintf("\n  Monthly  %s  %s to %s, peak %s\n",
		cli.RenderSparkline(values), months[0], months[len(months)-1], cli.FormatCompact(peak)), nil
}

// renderStatistics is the stats table followed by one bar per category.
func renderStatistics(st viewmodel.StatisticsState, currency string) string {
	var b strings.Builder

	if len(st.Chart) == 0 {
		b.WriteString(cli.RenderStatus("no expenses in this range", false))
		b.WriteString("\n")
	} else {
		rows := make([][]string, 0, len(st.Chart)+1)
		for _, c := range st.Chart {
			rows = append(rows, []string{
				c.Category,
				cli.FormatAmount(c.Amount, currency),
				cli.FormatShare(c.Amount, st.Total),
			})
		}
		rows = append(rows, []string{"Total", cli.FormatAmount(st.Total, currency), ""})

		b.WriteString(cli.RenderTable(cli.Table{
			Headers: []string{"Category", "Amount", "Share"},
			Rows:    rows,
		}))
		b.WriteString("\n")

		labelW := 0
		maxVal := 0.0
		for _, c := range st.Chart {
			labelW = max(labelW, len(c.Category))
			maxVal = max(maxVal, c.Float())
		}
		for _, c := range st.Chart {
			fmt.Fprintf(&b, "  %-*s  %s\n", labelW, c.Category, cli.RenderCategoryBar(c.Float(), maxVal, 40, c.Fill))
		}
	}

	if st.ColorsErr != nil {
		b.WriteString(cli.RenderStatus("category colors unavailable: "+st.ColorsErr.Error(), true))
		b.WriteString("\n")
	}
	if n := len(st.Rejected); n > 0 {
		b.WriteString(cli.RenderStatus(fmt.Sprintf("%d document(s) skipped as malformed", n), true))
		b.WriteString("\n")
	}
	return b.String()
}
