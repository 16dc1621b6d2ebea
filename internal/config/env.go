package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override config file values.
const (
	EnvDB       = "FINTRACK_DB"
	EnvAMQPURL  = "FINTRACK_AMQP_URL"
	EnvLogLevel = "FINTRACK_LOG_LEVEL"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides cfg with values from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvDB); v != "" {
		cfg.General.DBPath = v
	}
	if v := os.Getenv(EnvAMQPURL); v != "" {
		cfg.Notify.AMQPURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}
