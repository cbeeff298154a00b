package backend

import (
	"context"

	"subledger/internal/remote"
)

// CleanupFunc releases resources held by a created store
type CleanupFunc func() error

// Result contains the remote store and an optional cleanup function
type Result struct {
	Store   remote.Store
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates remote stores based on configuration
type Factory interface {
	CreateRemote(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for remote store creation
type Config struct {
	Type BackendType

	// SQLite specific
	DBPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

// BackendType names a remote store implementation
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
