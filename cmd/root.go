// Package cmd implements the fintrack CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/logging"
	"github.com/theirongolddev/fintrack/internal/notify"
	"github.com/theirongolddev/fintrack/internal/snapshot"
	"github.com/theirongolddev/fintrack/internal/viewmodel"
)

var (
	flagDB       string
	flagConfig   string
	flagLogLevel string
	flagQuiet    bool
	flagTimeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "fintrack",
	Short:         "Personal finance tracker",
	Long:          "Track expenses, income categories and budgets from a local document store.",
	RunE:          runStats,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database file (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default "+config.ConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 10*time.Second, "How long one-shot commands wait for data")

	addStatsFlags(rootCmd)
}

// loadConfig reads .env, the config file and environment overrides, then
// applies command-line flags on top.
func loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, fmt.Errorf("loading .env: %w", err)
	}

	var (
		cfg config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
		config.ApplyEnv(&cfg)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}

	if flagDB != "" {
		cfg.General.DBPath = flagDB
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	return cfg, nil
}

// runtime is the shared state of one command invocation.
type runtime struct {
	cfg   config.Config
	log   *logrus.Logger
	store *docstore.Store
	hub   *snapshot.Hub
	// feed is set by startFeed.
	feed *notify.Feed
}

// openRuntime loads config, opens the store and wires store writes to the
// hub.
func openRuntime() (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	dbPath := cfg.DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	store, err := docstore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	rt := &runtime{cfg: cfg, log: log, store: store, hub: snapshot.NewHub()}
	store.OnChange(func(collection, _ string) { rt.hub.Notify(collection) })

	log.WithField("db", dbPath).Debug("store opened")
	return rt, nil
}

// startFeed wires the AMQP change feed for long-running commands: local
// writes are published and remote ones wake the hub. It returns nil when no
// broker is configured; the caller runs the returned feed.
func (rt *runtime) startFeed() *notify.Feed {
	if rt.cfg.Notify.AMQPURL == "" {
		return nil
	}
	rt.feed = notify.NewFeed(rt.cfg.Notify.AMQPURL, rt.cfg.Notify.Exchange, rt.cfg.Notify.Queue,
		func(msg notify.ChangeMessage) { rt.hub.Notify(msg.Collection) }, rt.log)
	rt.store.OnChange(rt.feed.Enqueue)
	return rt.feed
}

func (rt *runtime) deps() viewmodel.Deps {
	return viewmodel.Deps{
		Store:       rt.store,
		Collections: rt.cfg.Collections,
		Subscription: snapshot.Options{
			Interval:         rt.cfg.General.PollInterval.Duration,
			FailureThreshold: rt.cfg.General.FailureThreshold,
			Hub:              rt.hub,
		},
		Logger: rt.log,
	}
}

// announce publishes a single change to the broker so running dashboards
// and daemons refresh without waiting for their next poll. One-shot commands
// do not run the feed loop, so they dial a publish-only client. Failures
// only log.
func (rt *runtime) announce(ctx context.Context, collection, id string) {
	if rt.cfg.Notify.AMQPURL == "" {
		return
	}
	client, err := notify.DialPublisher(rt.cfg.Notify.AMQPURL, rt.cfg.Notify.Exchange)
	if err != nil {
		rt.log.WithError(err).Warn("change not announced")
		return
	}
	defer func() { _ = client.Close() }()

	if err := client.Publish(ctx, notify.NewChangeMessage("cli", collection, id)); err != nil {
		rt.log.WithError(err).Warn("change not announced")
	}
}

func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		rt.log.WithError(err).Warn("closing store")
	}
}

// waitContext bounds one-shot reads by --timeout.
func waitContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), flagTimeout)
}
