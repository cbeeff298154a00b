package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	goption "google.golang.org/api/option"

	applog "subledger/internal/log"
	"subledger/internal/remote/google"
	"subledger/internal/remote/memory"
	"subledger/internal/remote/sqlstore"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	// sheetsOptions are appended to the Sheets client options (endpoint overrides).
	sheetsOptions []goption.ClientOption
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateRemote implements Factory.CreateRemote
func (f *DefaultFactory) CreateRemote(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLite(config)
	case SheetsBackend:
		return f.createSheets(ctx, config)
	case MemoryBackend:
		return f.createMemory()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLite(config Config) (*Result, error) {
	store, err := sqlstore.Open(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite remote store: %w", err)
	}

	f.logger.Info("Initialized SQLite remote store", applog.FieldBackend, config.Type, "db_path", config.DBPath)
	return &Result{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createSheets(ctx context.Context, config Config) (*Result, error) {
	creds := []byte(config.GoogleServiceAccountJSON)
	if len(creds) == 0 {
		b, err := os.ReadFile(config.GoogleServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		creds = b
	}

	cli, err := google.NewWithCredentials(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName,
		creds, f.sheetsOptions...)
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets remote store",
		applog.FieldBackend, config.Type,
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)
	return &Result{Store: cli}, nil
}

// createMemory is meant for tests and demos; data dies with the process.
func (f *DefaultFactory) createMemory() (*Result, error) {
	f.logger.Warn("Using in-memory remote store, data is not persisted", applog.FieldBackend, MemoryBackend)
	return &Result{Store: memory.New()}, nil
}
