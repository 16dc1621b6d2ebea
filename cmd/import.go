package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/ingest"
)

var flagImportForce bool

var importCmd = &cobra.Command{
	Use:   "import DIR",
	Short: "Import seed files (*.yaml, *.yml, *.jsonl) into the store",
	Long: `Import seed files into the store. Each file fills the collection named
after it, so trans.jsonl writes to "trans". Files unchanged since the last
import are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&flagImportForce, "force", false, "Re-import files even when unchanged")
	rootCmd.AddCommand(importCmd)
}

func runImport(_ *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Scanning %s...\n", args[0])
	}
	progressFn := func(current, total int) {
		if flagQuiet {
			return
		}
		if current%50 == 0 || current == total {
			fmt.Fprintf(os.Stderr, "\r  Parsing [%d/%d]", current, total)
		}
	}

	ctx := context.Background()
	res, err := ingest.Import(ctx, rt.store, args[0], ingest.Options{
		Force:    flagImportForce,
		Progress: progressFn,
		Logger:   rt.log,
	})
	if err != nil {
		return err
	}
	if !flagQuiet && res.Imported+res.FileErrors > 0 {
		fmt.Fprintln(os.Stderr)
	}

	for coll := range res.Collections {
		rt.announce(ctx, coll, "")
	}

	fmt.Printf("  %d file(s): %d imported, %d unchanged, %d unreadable\n",
		res.TotalFiles, res.Imported, res.Skipped, res.FileErrors)
	if res.ParseErrors > 0 {
		fmt.Println(cli.RenderStatus(fmt.Sprintf("%d malformed entries skipped", res.ParseErrors), true))
	}
	if len(res.Collections) == 0 {
		return nil
	}

	names := make([]string, 0, len(res.Collections))
	for name := range res.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		total := "?"
		if n, err := rt.store.Count(ctx, name); err == nil {
			total = cli.FormatNumber(int64(n))
		}
		rows = append(rows, []string{name, cli.FormatNumber(int64(res.Collections[name])), total})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{Headers: []string{"Collection", "Imported", "Total"}, Rows: rows}))
	return nil
}
