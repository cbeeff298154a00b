// Package cli holds the start-up steps shared by cmd/subledger and
// cmd/sync-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"subledger/internal/config"
	applog "subledger/internal/log"
	"subledger/internal/storage"
)

// LoadEnvFile loads .env files for local development. A missing file is not
// an error.
func LoadEnvFile(files ...string) error {
	var existing []string
	for _, f := range append([]string{".env"}, files...) {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// SetupLogger builds the process logger from LOG_LEVEL and makes it the
// slog default.
func SetupLogger(level, component string) *applog.Logger {
	lvl, err := applog.ParseLevel(level)
	cfg := applog.DefaultConfig()
	cfg.Level = lvl
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info level", "error", err)
	}
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenLocalStore opens the SQLite-backed local ledger store.
func OpenLocalStore(dbPath string) (*storage.LocalStore, func() error, error) {
	kv, err := storage.NewSQLiteKV(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open local store %s: %w", dbPath, err)
	}
	return storage.NewLocalStore(kv), kv.Close, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
