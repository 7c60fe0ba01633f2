// Package storage persists snapshots in SQLite so a restarted process can
// serve the last good data before the sheet answers.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tutordash/internal/core"
	"tutordash/internal/ingest"
	"tutordash/internal/log"
	"tutordash/internal/snapshot"

	_ "modernc.org/sqlite"
)

// DefaultKeep is how many snapshots survive a save.
const DefaultKeep = 5

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	keep    int
	logger  *log.Logger
}

// Ensure interface conformance
var _ snapshot.Store = (*SQLiteRepository)(nil)

// Option tunes a repository.
type Option func(*SQLiteRepository)

// WithKeep sets how many snapshots are retained. Values below 1 are ignored.
func WithKeep(n int) Option {
	return func(r *SQLiteRepository) {
		if n >= 1 {
			r.keep = n
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *SQLiteRepository) {
		if l != nil {
			r.logger = l.WithComponent(log.ComponentStorage)
		}
	}
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		keep:    DefaultKeep,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveSnapshot writes s and its rows in one transaction, then prunes history.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s *snapshot.Snapshot) error {
	if s == nil || s.ID == "" {
		return errors.New("snapshot without id")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	q := r.queries.WithTx(tx)
	if err := q.InsertSnapshot(ctx, SnapshotRow{
		ID:           s.ID,
		FetchedAt:    s.FetchedAt.UTC().UnixNano(),
		Source:       s.Source,
		DroppedRows:  int64(s.Dropped),
		SessionCount: int64(len(s.Sessions)),
	}); err != nil {
		return fmt.Errorf("insert snapshot %s: %w", s.ID, err)
	}

	for i, sess := range s.Sessions {
		if err := q.InsertSession(ctx, SessionRow{
			SnapshotID:  s.ID,
			Position:    int64(i),
			StudentName: sess.StudentName,
			SessionDate: sess.Date.String(),
			Hours:       sess.Hours,
			PayCents:    sess.Pay.Cents,
			Provider:    sess.Provider,
			StartTime:   sess.Start,
			EndTime:     sess.End,
		}); err != nil {
			return fmt.Errorf("insert session %d: %w", i, err)
		}
	}

	for _, w := range s.Warnings {
		if err := q.InsertWarning(ctx, WarningRow{
			SnapshotID: s.ID,
			RowNumber:  int64(w.Row),
			ColumnName: w.Column,
			Value:      w.Value,
			Reason:     w.Reason,
		}); err != nil {
			return fmt.Errorf("insert warning row %d: %w", w.Row, err)
		}
	}

	if err := q.PruneSnapshots(ctx, int64(r.keep)); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	r.logger.DebugContext(ctx, "Snapshot persisted",
		log.FieldSnapshotID, s.ID,
		log.FieldSessions, len(s.Sessions),
		log.FieldOperation, log.OpPersist)
	return nil
}

// LoadLatest returns the newest stored snapshot or snapshot.ErrNoSnapshot.
func (r *SQLiteRepository) LoadLatest(ctx context.Context) (*snapshot.Snapshot, error) {
	row, err := r.queries.GetLatestSnapshot(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, snapshot.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return r.hydrate(ctx, row)
}

// History lists the stored snapshots, newest first, without their sessions.
func (r *SQLiteRepository) History(ctx context.Context, limit int) ([]snapshot.Snapshot, error) {
	if limit <= 0 {
		limit = r.keep
	}
	rows, err := r.queries.ListSnapshots(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := make([]snapshot.Snapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, snapshot.Snapshot{
			ID:        row.ID,
			FetchedAt: time.Unix(0, row.FetchedAt).UTC(),
			Source:    row.Source,
			Dropped:   int(row.DroppedRows),
		})
	}
	return out, nil
}

func (r *SQLiteRepository) hydrate(ctx context.Context, row SnapshotRow) (*snapshot.Snapshot, error) {
	sessRows, err := r.queries.ListSessions(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("list sessions of %s: %w", row.ID, err)
	}
	sessions := make([]core.Session, 0, len(sessRows))
	for _, sr := range sessRows {
		d, err := core.ParseISODate(sr.SessionDate)
		if err != nil {
			return nil, fmt.Errorf("session %d of %s: %w", sr.Position, row.ID, err)
		}
		sessions = append(sessions, core.Session{
			StudentName: sr.StudentName,
			Date:        d,
			Hours:       sr.Hours,
			Pay:         core.Money{Cents: sr.PayCents},
			Provider:    sr.Provider,
			Start:       sr.StartTime,
			End:         sr.EndTime,
		})
	}

	warnRows, err := r.queries.ListWarnings(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("list warnings of %s: %w", row.ID, err)
	}
	var warnings []ingest.RowParseWarning
	for _, w := range warnRows {
		warnings = append(warnings, ingest.RowParseWarning{
			Row:    int(w.RowNumber),
			Column: w.ColumnName,
			Value:  w.Value,
			Reason: w.Reason,
		})
	}

	return &snapshot.Snapshot{
		ID:        row.ID,
		FetchedAt: time.Unix(0, row.FetchedAt).UTC(),
		Source:    row.Source,
		Sessions:  sessions,
		Dropped:   int(row.DroppedRows),
		Warnings:  warnings,
	}, nil
}
