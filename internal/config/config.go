package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all fintrack configuration.
type Config struct {
	General     GeneralConfig     `toml:"general"`
	Collections CollectionsConfig `toml:"collections"`
	Daemon      DaemonConfig      `toml:"daemon"`
	Notify      NotifyConfig      `toml:"notify"`
	Appearance  AppearanceConfig  `toml:"appearance"`
	Log         LogConfig         `toml:"log"`
}

// GeneralConfig holds store and subscription settings.
type GeneralConfig struct {
	DBPath           string   `toml:"db_path,omitempty"`
	PollInterval     Duration `toml:"poll_interval"`
	FailureThreshold int      `toml:"failure_threshold"`
	Currency         string   `toml:"currency"`
}

// CollectionsConfig names the document collections the views read.
type CollectionsConfig struct {
	Transactions      string `toml:"transactions"`
	ExpenseCategories string `toml:"expense_categories"`
	IncomeCategories  string `toml:"income_categories"`
	Budgets           string `toml:"budgets"`
}

// DaemonConfig holds HTTP daemon settings.
type DaemonConfig struct {
	Addr         string `toml:"addr"`
	EventsBuffer int    `toml:"events_buffer"`
	RolloverCron string `toml:"rollover_cron"`
}

// NotifyConfig holds the AMQP change feed settings. An empty URL disables it.
type NotifyConfig struct {
	AMQPURL  string `toml:"amqp_url,omitempty"`
	Exchange string `toml:"exchange"`
	Queue    string `toml:"queue,omitempty"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration written as a string ("5s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			PollInterval:     Duration{2 * time.Second},
			FailureThreshold: 2,
			Currency:         "$",
		},
		Collections: CollectionsConfig{
			Transactions:      "trans",
			ExpenseCategories: "expense_categories",
			IncomeCategories:  "income_categories",
			Budgets:           "budget",
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8787",
			EventsBuffer: 200,
			RolloverCron: "0 0 * * 1",
		},
		Notify: NotifyConfig{
			Exchange: "fintrack.changes",
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fintrack")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fintrack")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataDir returns the XDG-compliant data directory.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "fintrack")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "fintrack")
}

// DBPath returns the configured database path, or the default under DataDir.
func (c Config) DBPath() string {
	if c.General.DBPath != "" {
		return c.General.DBPath
	}
	return filepath.Join(DataDir(), "fintrack.db")
}

// Load reads the config file, returning defaults if it doesn't exist.
// Environment overrides are applied on top.
func Load() (Config, error) {
	cfg, err := LoadFile(ConfigPath())
	if err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// LoadFile reads a specific config file over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the views cannot run with.
func (c Config) Validate() error {
	if c.General.PollInterval.Duration <= 0 {
		return fmt.Errorf("general.poll_interval must be positive, got %s", c.General.PollInterval)
	}
	if c.General.FailureThreshold < 1 {
		return fmt.Errorf("general.failure_threshold must be at least 1, got %d", c.General.FailureThreshold)
	}
	if c.Daemon.EventsBuffer < 1 {
		return fmt.Errorf("daemon.events_buffer must be at least 1, got %d", c.Daemon.EventsBuffer)
	}
	return nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
