package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/export"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/snapshot"
	"github.com/theirongolddev/fintrack/internal/viewmodel"
)

var (
	flagExportOut     string
	flagExportMonthly bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write expenses, budgets and categories to an xlsx workbook",
	RunE:  runExport,
}

func init() {
	addStatsFlags(exportCmd)
	exportCmd.Flags().StringVarP(&flagExportOut, "out", "o", "", "Output file (default fintrack-<date>.xlsx)")
	exportCmd.Flags().BoolVar(&flagExportMonthly, "monthly", true, "Include a per-month sheet over all transactions")
	rootCmd.AddCommand(exportCmd)
}

func runExport(_ *cobra.Command, _ []string) error {
	now := time.Now()
	rng, err := statsRange(now)
	if err != nil {
		return err
	}
	out := flagExportOut
	if out == "" {
		out = fmt.Sprintf("fintrack-%s.xlsx", now.Format("2006-01-02"))
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := waitContext()
	defer cancel()
	deps := rt.deps()

	stats, err := viewmodel.StatisticsOnce(ctx, deps, rng)
	if err != nil {
		return fmt.Errorf("waiting for expenses: %w", err)
	}
	if stats.Status == snapshot.Failed {
		return fmt.Errorf("reading transactions: %w", stats.Err)
	}
	budgets, err := viewmodel.BudgetsOnce(ctx, deps)
	if err != nil {
		return fmt.Errorf("waiting for budgets: %w", err)
	}
	cats, err := viewmodel.CategoriesOnce(ctx, deps)
	if err != nil {
		return fmt.Errorf("waiting for categories: %w", err)
	}

	report := export.Report{
		Range:       rng,
		Chart:       stats.Chart,
		Budgets:     budgets.Budgets,
		Expenditure: cats.Expenditure,
		Income:      cats.Income,
	}

	if flagExportMonthly {
		docs, err := rt.store.Query(ctx, docstore.Collection(rt.cfg.Collections.Transactions))
		if err != nil {
			return fmt.Errorf("reading transactions: %w", err)
		}
		records, rejected := pipeline.ProjectAll(docs, pipeline.ProjectExpense)
		if len(rejected) > 0 {
			rt.log.WithField("rejected", len(rejected)).Warn("malformed transactions left out of the monthly sheet")
		}
		report.Monthly = pipeline.AggregateByMonth(records)
	}

	if err := export.WriteFile(out, report); err != nil {
		return err
	}

	fmt.Printf("  Wrote %s (%s, %d categories, %d budgets)\n", out, rng, len(stats.Chart), len(budgets.Budgets))
	return nil
}
