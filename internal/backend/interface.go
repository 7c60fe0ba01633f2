// Package backend builds the session source and the snapshot stores
// selected by configuration.
package backend

import (
	"context"

	"tutordash/internal/sheets"
	"tutordash/internal/snapshot"
)

// Source is an upstream lesson table that can name itself in logs.
type Source interface {
	sheets.TableFetcher
	sheets.Named
}

// CleanupFunc releases resources opened by the factory.
type CleanupFunc func() error

// BackendResult contains the source, the configured stores and their cleanup.
type BackendResult struct {
	Source  Source
	Stores  []snapshot.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds what the factory needs; see FromAppConfig.
type Config struct {
	Type BackendType

	// Google Sheets
	SpreadsheetID   string
	SheetRange      string
	CredentialsJSON string
	CredentialsFile string

	// Excel workbook
	XLSXPath  string
	XLSXSheet string

	// In-memory; empty SeedCSVPath means generated demo data
	SeedCSVPath string

	// Optional snapshot stores; empty disables
	SQLiteDBPath string
	RedisURL     string
	SnapshotKeep int
}

// BackendType represents the type of upstream source.
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	XLSXBackend   BackendType = "xlsx"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is known.
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, XLSXBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
