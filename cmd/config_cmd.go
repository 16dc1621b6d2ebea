package cmd

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/config"
)

var flagConfigForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(config.ConfigPath())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&flagConfigForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := config.ConfigPath()
	if flagConfig != "" {
		path = flagConfig
	}
	fmt.Printf("  Config file: %s\n", path)
	if flagConfig != "" || config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Database:          %s\n", cfg.DBPath())
	fmt.Printf("    Poll interval:     %s\n", cfg.General.PollInterval)
	fmt.Printf("    Failure threshold: %d\n", cfg.General.FailureThreshold)
	fmt.Printf("    Currency:          %s\n", cfg.General.Currency)
	fmt.Println()

	fmt.Println("  [Collections]")
	fmt.Printf("    Transactions:       %s\n", cfg.Collections.Transactions)
	fmt.Printf("    Expense categories: %s\n", cfg.Collections.ExpenseCategories)
	fmt.Printf("    Income categories:  %s\n", cfg.Collections.IncomeCategories)
	fmt.Printf("    Budgets:            %s\n", cfg.Collections.Budgets)
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:       %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Events buffer: %d\n", cfg.Daemon.EventsBuffer)
	fmt.Printf("    Rollover cron: %s\n", cfg.Daemon.RolloverCron)
	fmt.Println()

	fmt.Println("  [Notify]")
	if cfg.Notify.AMQPURL != "" {
		fmt.Printf("    AMQP URL: %s\n", maskURL(cfg.Notify.AMQPURL))
		fmt.Printf("    Exchange: %s\n", cfg.Notify.Exchange)
	} else {
		fmt.Println("    Change feed: disabled")
	}
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  [Log]")
	fmt.Printf("    Level:  %s\n", cfg.Log.Level)
	fmt.Printf("    Format: %s\n", cfg.Log.Format)
	fmt.Println()

	fmt.Println("  Run `fintrack config init` to write these defaults to disk.")
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	if config.Exists() && !flagConfigForce {
		return errors.New("config file already exists (use --force to overwrite)")
	}
	if err := config.Save(config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Printf("  Wrote %s\n", config.ConfigPath())
	return nil
}

// maskURL hides the password in a broker URL.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable)"
	}
	return u.Redacted()
}
