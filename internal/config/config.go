package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type Config struct {
	// Local ledger
	LedgerDBPath string
	CatalogFile  string
	UserID       string

	// Remote store selection
	RemoteBackend string
	RemoteDBPath  string
	PullStrategy  string // "replace" (default) or "newest"

	// Google Sheets remote
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// AMQP (optional; without it pushes run in-process)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Exchange rates and display
	ExchangeRateURL string
	ExchangeRateTTL time.Duration
	DisplayCurrency string

	// Worker
	SyncInterval time.Duration
	SyncDebounce time.Duration

	LogLevel string
}

var (
	validBackends       = []string{"memory", "sheets", "sqlite"}
	validPullStrategies = []string{"replace", "newest"}
	validCurrencies     = []string{"JPY", "USD"}
	validLogLevels      = []string{"debug", "info", "warn", "warning", "error"}
)

func Load() *Config {
	return &Config{
		LedgerDBPath: getEnv("LEDGER_DB_PATH", "./data/subledger.db"),
		CatalogFile:  getEnv("CATALOG_FILE", ""),
		UserID:       getEnv("LEDGER_USER_ID", ""),

		RemoteBackend: getEnv("REMOTE_BACKEND", "sqlite"),
		RemoteDBPath:  getEnv("REMOTE_DB_PATH", "./data/remote.db"),
		PullStrategy:  strings.ToLower(getEnv("PULL_STRATEGY", "replace")),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Subscriptions"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "subledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "push_requests"),

		ExchangeRateURL: getEnv("EXCHANGE_RATE_URL", ""),
		ExchangeRateTTL: getEnvDuration("EXCHANGE_RATE_TTL", 6*time.Hour),
		DisplayCurrency: strings.ToUpper(getEnv("DISPLAY_CURRENCY", "JPY")),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", 15*time.Minute),
		SyncDebounce: getEnvDuration("SYNC_DEBOUNCE", 2*time.Second),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.LedgerDBPath == "" {
		errors = append(errors, "ledger database path cannot be empty")
	} else if msg := ensureDir(c.LedgerDBPath); msg != "" {
		errors = append(errors, msg)
	}

	if !slices.Contains(validBackends, c.RemoteBackend) {
		errors = append(errors, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validBackends))
	}

	if c.RemoteBackend == "sqlite" {
		if c.RemoteDBPath == "" {
			errors = append(errors, "remote database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(c.RemoteDBPath); msg != "" {
			errors = append(errors, msg)
		}
	}

	if c.RemoteBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExchangeRateURL != "" {
		if parsedURL, err := url.Parse(c.ExchangeRateURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid exchange rate URL '%s': %v", c.ExchangeRateURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid exchange rate URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}
	if c.ExchangeRateTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid exchange rate TTL %v: must be at least 1 minute", c.ExchangeRateTTL))
	}

	if c.PullStrategy != "" && !slices.Contains(validPullStrategies, c.PullStrategy) {
		errors = append(errors, fmt.Sprintf("invalid pull strategy '%s': must be one of %v", c.PullStrategy, validPullStrategies))
	}

	if !slices.Contains(validCurrencies, c.DisplayCurrency) {
		errors = append(errors, fmt.Sprintf("invalid display currency '%s': must be one of %v", c.DisplayCurrency, validCurrencies))
	}

	// Zero disables the periodic pass
	if c.SyncInterval < 0 || (c.SyncInterval > 0 && c.SyncInterval < time.Second) {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be 0 or at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}
	if c.SyncDebounce < 0 {
		errors = append(errors, fmt.Sprintf("invalid sync debounce %v: must not be negative", c.SyncDebounce))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// UserIDs returns the comma separated LEDGER_USER_ID values.
func (c *Config) UserIDs() []string {
	var out []string
	for _, id := range strings.Split(c.UserID, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func ensureDir(dbPath string) string {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create database directory '%s': %v", dir, err)
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
