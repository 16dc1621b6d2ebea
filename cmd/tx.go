package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
)

var (
	flagTxType     string
	flagTxCategory string
	flagTxAmount   string
	flagTxTitle    string
	flagTxDate     string
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Record transactions",
}

var txAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record one expenditure or income",
	Example: `  fintrack tx add --category Food --amount 12.50
  fintrack tx add --type income --category Salary --amount 2000 --date 2024-05-01`,
	RunE: runTxAdd,
}

var txRmCmd = &cobra.Command{
	Use:     "rm ID",
	Aliases: []string{"delete"},
	Short:   "Delete a transaction by id",
	Args:    cobra.ExactArgs(1),
	RunE:    runTxRm,
}

func init() {
	txAddCmd.Flags().StringVar(&flagTxType, "type", string(model.Expenditure), "Transaction type: expenditure or income")
	txAddCmd.Flags().StringVarP(&flagTxCategory, "category", "c", "", "Category title")
	txAddCmd.Flags().StringVarP(&flagTxAmount, "amount", "a", "", "Amount, e.g. 12.50")
	txAddCmd.Flags().StringVarP(&flagTxTitle, "title", "t", "", "Optional description")
	txAddCmd.Flags().StringVar(&flagTxDate, "date", "", "Date as YYYY-MM-DD (default today)")
	_ = txAddCmd.MarkFlagRequired("category")
	_ = txAddCmd.MarkFlagRequired("amount")

	txCmd.AddCommand(txAddCmd, txRmCmd)
	rootCmd.AddCommand(txCmd)
}

// transactionDoc validates the flags and builds the stored document.
func transactionDoc(typ, category, amount, title, date string, now time.Time) (map[string]any, error) {
	t := model.TransactionType(typ)
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", pipeline.ErrUnknownType, typ)
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, pipeline.ErrMissingCategory
	}
	amt, err := pipeline.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	if amt.Sign() < 0 {
		return nil, errors.New("amount must not be negative; use --type income for money coming in")
	}

	day := now
	if date != "" {
		day, err = time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", pipeline.ErrBadDate, date)
		}
	}

	doc := map[string]any{
		"type":     string(t),
		"category": category,
		"amount":   amt.String(),
		"date":     day.Format("2006-01-02"),
		"month":    day.Format("2006-01"),
	}
	if title = strings.TrimSpace(title); title != "" {
		doc["title"] = title
	}
	return doc, nil
}

func runTxAdd(_ *cobra.Command, _ []string) error {
	doc, err := transactionDoc(flagTxType, flagTxCategory, flagTxAmount, flagTxTitle, flagTxDate, time.Now())
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

	coll := rt.cfg.Collections.Transactions
	saved, err := rt.store.Add(ctx, coll, doc)
	if err != nil {
		return fmt.Errorf("saving transaction: %w", err)
	}
	rt.announce(ctx, coll, saved.ID)

	amt, _ := pipeline.ParseAmount(doc["amount"])
	fmt.Printf("  Recorded %s %s in %s on %s (%s)\n",
		doc["type"], cli.FormatAmount(amt, rt.cfg.General.Currency), doc["category"], doc["date"], saved.ID)
	return nil
}

func runTxRm(_ *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := waitContext()
	defer cancel()

	coll := rt.cfg.Collections.Transactions
	doc, err := rt.store.Get(ctx, coll, args[0])
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("no transaction %q", args[0])
		}
		return err
	}
	if err := rt.store.Delete(ctx, coll, doc.ID); err != nil {
		return err
	}
	rt.announce(ctx, coll, doc.ID)

	raw, _ := doc.Value("amount")
	amount := "?"
	if amt, err := pipeline.ParseAmount(raw); err == nil {
		amount = cli.FormatAmount(amt, rt.cfg.General.Currency)
	}
	fmt.Printf("  Deleted %s %s in %s on %s\n", doc.String("type"), amount, doc.String("category"), doc.String("date"))
	return nil
}
