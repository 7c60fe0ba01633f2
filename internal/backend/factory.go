package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutordash/internal/cache/redisstore"
	"tutordash/internal/log"
	gsheet "tutordash/internal/sheets/google"
	"tutordash/internal/sheets/memory"
	"tutordash/internal/sheets/xlsx"
	"tutordash/internal/storage"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *log.Logger
	now    func() time.Time
}

var _ Factory = (*DefaultFactory)(nil)

// NewFactory creates a backend factory. now seeds the demo data set.
func NewFactory(logger *log.Logger, now func() time.Time) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	if now == nil {
		now = time.Now
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend), now: now}
}

// CreateBackend builds the source and every enabled store. On error nothing is left open.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	source, err := f.createSource(ctx, config)
	if err != nil {
		return nil, err
	}

	res := &BackendResult{Source: source}
	var closers []func() error
	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	if config.SQLiteDBPath != "" {
		var opts []storage.Option
		opts = append(opts, storage.WithLogger(f.logger))
		if config.SnapshotKeep > 0 {
			opts = append(opts, storage.WithKeep(config.SnapshotKeep))
		}
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, opts...)
		if err != nil {
			_ = res.Cleanup()
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		closers = append(closers, repo.Close)
		res.Stores = append(res.Stores, repo)
		f.logger.Info("Initialized SQLite snapshot store", "db_path", config.SQLiteDBPath)
	}

	if config.RedisURL != "" {
		client, err := redisstore.Connect(ctx, config.RedisURL)
		if err != nil {
			_ = res.Cleanup()
			return nil, fmt.Errorf("failed to initialize Redis store: %w", err)
		}
		closers = append(closers, client.Close)
		res.Stores = append(res.Stores, redisstore.New(client, redisstore.DefaultKey, 0))
		f.logger.Info("Initialized Redis snapshot store")
	}

	f.logger.Info("Initialized backend",
		"type", config.Type.String(),
		log.FieldSource, source.Name(),
		"stores", len(res.Stores))
	return res, nil
}

func (f *DefaultFactory) createSource(ctx context.Context, config Config) (Source, error) {
	switch config.Type {
	case SheetsBackend:
		cli, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   config.SpreadsheetID,
			Range:           config.SheetRange,
			CredentialsJSON: config.CredentialsJSON,
			CredentialsFile: config.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		return cli, nil
	case XLSXBackend:
		wb, err := xlsx.New(config.XLSXPath, config.XLSXSheet)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		return wb, nil
	case MemoryBackend:
		if config.SeedCSVPath == "" {
			f.logger.Info("Using generated demo sessions")
			return memory.NewSample(f.now()), nil
		}
		store, err := memory.NewFromCSV(config.SeedCSVPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed file: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
