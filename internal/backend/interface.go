package backend

import (
	"context"

	"budgetcal/internal/sheets"
	"budgetcal/internal/storage"
)

// CleanupFunc releases the resources behind a backend.
type CleanupFunc func() error

// BackendResult contains the repository and its cleanup function.
type BackendResult struct {
	Repository storage.Repository
	Cleanup    CleanupFunc
}

// Factory creates storage and export backends from configuration.
type Factory interface {
	// CreateBackend opens the repository selected by config.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateExporter returns the spreadsheet exporter, or an in-process one
	// when no spreadsheet is configured.
	CreateExporter(ctx context.Context, config Config) (sheets.MonthExporter, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid.
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Shared reports whether separate processes see the same data.
func (bt BackendType) Shared() bool {
	return bt == SQLiteBackend
}
