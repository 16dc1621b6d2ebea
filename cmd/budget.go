package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/snapshot"
	"github.com/theirongolddev/fintrack/internal/viewmodel"
)

var budgetCmd = &cobra.Command{
	Use:     "budget",
	Aliases: []string{"budgets"},
	Short:   "Show budget progress",
	RunE:    runBudget,
}

func init() {
	rootCmd.AddCommand(budgetCmd)
}

func runBudget(_ *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := waitContext()
	defer cancel()

	st, err := viewmodel.BudgetsOnce(ctx, rt.deps())
	if err != nil {
		return fmt.Errorf("waiting for budgets: %w", err)
	}
	if st.Status == snapshot.Failed {
		return fmt.Errorf("reading budgets: %w", st.Err)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("Budgets"))
	fmt.Println()
	fmt.Print(renderBudgets(st, rt.cfg.General.Currency))
	return nil
}

func renderBudgets(st viewmodel.BudgetsState, currency string) string {
	var b strings.Builder

	if len(st.Budgets) == 0 {
		b.WriteString(cli.RenderStatus("no budgets", false))
		b.WriteString("\n")
	} else {
		rows := make([][]string, 0, len(st.Budgets))
		for _, bp := range st.Budgets {
			e := bp.Entry
			target := cli.FormatAmount(e.Amount, currency)
			progress := cli.FormatPercent(bp.Progress.Ratio)
			switch {
			case bp.Progress.NoTarget:
				target, progress = "-", "no target"
			case bp.Progress.Overspent:
				progress = "over"
			}
			rows = append(rows, []string{
				e.Title,
				cli.FormatAmount(e.CurrAmount, currency),
				target,
				progress,
				budgetPeriod(e.StartDate.Format("2006-01-02"), e.EndDate.Format("2006-01-02"), e.StartDate.IsZero(), e.EndDate.IsZero()),
			})
		}
		b.WriteString(cli.RenderTable(cli.Table{
			Headers: []string{"Budget", "Spent", "Target", "Progress", "Period"},
			Rows:    rows,
		}))
		b.WriteString("\n")

		labelW := 0
		for _, bp := range st.Budgets {
			labelW = max(labelW, len(bp.Entry.Title))
		}
		for _, bp := range st.Budgets {
			line := fmt.Sprintf("  %-*s  %s", labelW, bp.Entry.Title, cli.RenderRatioBar(bp.Progress.Ratio, 30))
			if len(bp.Entry.Categories) > 0 {
				line += "  " + strings.Join(bp.Entry.Categories, ", ")
			}
			b.WriteString(line + "\n")
		}
	}

	if n := len(st.Rejected); n > 0 {
		b.WriteString(cli.RenderStatus(fmt.Sprintf("%d budget(s) skipped as malformed", n), true))
		b.WriteString("\n")
	}
	return b.String()
}

func budgetPeriod(start, end string, noStart, noEnd bool) string {
	switch {
	case noStart && noEnd:
		return "-"
	case noStart:
		return "until " + end
	case noEnd:
		return "from " + start
	default:
		return start + " to " + end
	}
}
