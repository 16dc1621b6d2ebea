package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/snapshot"
	"github.com/theirongolddev/fintrack/internal/tui"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
	"github.com/theirongolddev/fintrack/internal/viewmodel"
)

var (
	flagCatKind  string
	flagCatTitle string
	flagCatIcon  string
	flagCatColor string
)

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Aliases: []string{"cats"},
	Short:   "List expenditure and income categories",
	RunE:    runCategories,
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a category (interactive without --title)",
	RunE:  runCategoriesAdd,
}

func init() {
	categoriesAddCmd.Flags().StringVar(&flagCatKind, "kind", string(model.ExpenditureCategories), "Category set: expenditure or income")
	categoriesAddCmd.Flags().StringVar(&flagCatTitle, "title", "", "Category title")
	categoriesAddCmd.Flags().StringVar(&flagCatIcon, "icon", "", "Icon name")
	categoriesAddCmd.Flags().StringVar(&flagCatColor, "color", "", "Chart color as #RRGGBB")

	categoriesCmd.AddCommand(categoriesAddCmd)
	rootCmd.AddCommand(categoriesCmd)
}

func runCategories(_ *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := waitContext()
	defer cancel()

	st, err := viewmodel.CategoriesOnce(ctx, rt.deps())
	if err != nil {
		return fmt.Errorf("waiting for categories: %w", err)
	}
	if st.Status == snapshot.Failed {
		return fmt.Errorf("reading categories: %w", st.Err)
	}

	fmt.Println()
	fmt.Print(categoryTable("Expenditure", st.Expenditure))
	fmt.Println()
	fmt.Print(categoryTable("Income", st.Income))
	if n := len(st.Rejected); n > 0 {
		fmt.Println(cli.RenderStatus(fmt.Sprintf("%d category document(s) skipped as malformed", n), true))
	}
	return nil
}

func categoryTable(title string, cats []model.Category) string {
	if len(cats) == 0 {
		return cli.RenderStatus(title+": none", false) + "\n"
	}
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		color := string(c.Color)
		if !c.Color.IsSet() {
			color = "-"
		}
		rows = append(rows, []string{c.Title, c.Icon, color, c.Key})
	}
	return cli.RenderTable(cli.Table{
		Title:   title,
		Headers: []string{"Title", "Icon", "Color", "ID"},
		Rows:    rows,
	})
}

func runCategoriesAdd(_ *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := waitContext()
	defer cancel()

	kind := model.CategoryKind(flagCatKind)
	nc := viewmodel.NewCategory{Title: flagCatTitle, Icon: flagCatIcon, Color: model.Color(flagCatColor)}

	if flagCatTitle == "" {
		existing, err := viewmodel.CategoriesOnce(ctx, rt.deps())
		if err != nil {
			return fmt.Errorf("waiting for categories: %w", err)
		}
		theme.SetActive(rt.cfg.Appearance.Theme)
		var ok bool
		kind, nc, ok, err = tui.PromptCategory(existing)
		if err != nil {
			return fmt.Errorf("category form: %w", err)
		}
		if !ok {
			fmt.Println(cli.RenderStatus("cancelled", false))
			return nil
		}
		// The form may have taken longer than --timeout.
		cancel()
		ctx, cancel = waitContext()
		defer cancel()
	} else if nc.Color != "" && !theme.ValidColor(string(nc.Color)) {
		return fmt.Errorf("invalid --color %q: use #RGB or #RRGGBB", flagCatColor)
	}

	if hex, ok := nc.Color.Hex(); ok {
		nc.Color = model.Color(hex)
	}

	cat, err := viewmodel.AddCategory(ctx, rt.store, rt.cfg.Collections, kind, nc)
	if err != nil {
		if errors.Is(err, viewmodel.ErrInvalidKind) {
			return fmt.Errorf("%w (use %s or %s)", err, model.ExpenditureCategories, model.IncomeCategories)
		}
		return err
	}
	rt.announce(ctx, collectionForKind(rt, kind), cat.Key)

	fmt.Printf("  Added %s category %q (%s)\n", kind, cat.Title, cat.Key)
	return nil
}

func collectionForKind(rt *runtime, kind model.CategoryKind) string {
	if kind == model.IncomeCategories {
		return rt.cfg.Collections.IncomeCategories
	}
	return rt.cfg.Collections.ExpenseCategories
}
