package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the prepared SQL of the snapshot store.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type SnapshotRow struct {
	ID           string
	FetchedAt    int64
	Source       string
	DroppedRows  int64
	SessionCount int64
}

type SessionRow struct {
	SnapshotID  string
	Position    int64
	StudentName string
	SessionDate string
	Hours       float64
	PayCents    int64
	Provider    string
	StartTime   string
	EndTime     string
}

type WarningRow struct {
	SnapshotID string
	RowNumber  int64
	ColumnName string
	Value      string
	Reason     string
}

const insertSnapshot = `INSERT INTO snapshots (id, fetched_at, source, dropped_rows, session_count)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertSnapshot(ctx context.Context, arg SnapshotRow) error {
	_, err := q.db.ExecContext(ctx, insertSnapshot, arg.ID, arg.FetchedAt, arg.Source, arg.DroppedRows, arg.SessionCount)
	return err
}

const insertSession = `INSERT INTO sessions
(snapshot_id, position, student_name, session_date, hours, pay_cents, provider, start_time, end_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertSession(ctx context.Context, arg SessionRow) error {
	_, err := q.db.ExecContext(ctx, insertSession, arg.SnapshotID, arg.Position, arg.StudentName, arg.SessionDate,
		arg.Hours, arg.PayCents, arg.Provider, arg.StartTime, arg.EndTime)
	return err
}

const insertWarning = `INSERT INTO row_warnings (snapshot_id, row_number, column_name, value, reason)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertWarning(ctx context.Context, arg WarningRow) error {
	_, err := q.db.ExecContext(ctx, insertWarning, arg.SnapshotID, arg.RowNumber, arg.ColumnName, arg.Value, arg.Reason)
	return err
}

const getLatestSnapshot = `SELECT id, fetched_at, source, dropped_rows, session_count
FROM snapshots ORDER BY fetched_at DESC LIMIT 1`

func (q *Queries) GetLatestSnapshot(ctx context.Context) (SnapshotRow, error) {
	var s SnapshotRow
	err := q.db.QueryRowContext(ctx, getLatestSnapshot).Scan(&s.ID, &s.FetchedAt, &s.Source, &s.DroppedRows, &s.SessionCount)
	return s, err
}

const listSnapshots = `SELECT id, fetched_at, source, dropped_rows, session_count
FROM snapshots ORDER BY fetched_at DESC LIMIT ?`

func (q *Queries) ListSnapshots(ctx context.Context, limit int64) ([]SnapshotRow, error) {
	rows, err := q.db.QueryContext(ctx, listSnapshots, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SnapshotRow
	for rows.Next() {
		var s SnapshotRow
		if err := rows.Scan(&s.ID, &s.FetchedAt, &s.Source, &s.DroppedRows, &s.SessionCount); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const listSessions = `SELECT snapshot_id, position, student_name, session_date, hours, pay_cents, provider, start_time, end_time
FROM sessions WHERE snapshot_id = ? ORDER BY position`

func (q *Queries) ListSessions(ctx context.Context, snapshotID string) ([]SessionRow, error) {
	rows, err := q.db.QueryContext(ctx, listSessions, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SessionRow
	for rows.Next() {
		var s SessionRow
		if err := rows.Scan(&s.SnapshotID, &s.Position, &s.StudentName, &s.SessionDate, &s.Hours,
			&s.PayCents, &s.Provider, &s.StartTime, &s.EndTime); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const listWarnings = `SELECT snapshot_id, row_number, column_name, value, reason
FROM row_warnings WHERE snapshot_id = ? ORDER BY row_number`

func (q *Queries) ListWarnings(ctx context.Context, snapshotID string) ([]WarningRow, error) {
	rows, err := q.db.QueryContext(ctx, listWarnings, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WarningRow
	for rows.Next() {
		var w WarningRow
		if err := rows.Scan(&w.SnapshotID, &w.RowNumber, &w.ColumnName, &w.Value, &w.Reason); err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

const pruneSessions = `DELETE FROM sessions WHERE snapshot_id NOT IN
(SELECT id FROM snapshots ORDER BY fetched_at DESC LIMIT ?)`

const pruneWarnings = `DELETE FROM row_warnings WHERE snapshot_id NOT IN
(SELECT id FROM snapshots ORDER BY fetched_at DESC LIMIT ?)`

const pruneSnapshots = `DELETE FROM snapshots WHERE id NOT IN
(SELECT id FROM snapshots ORDER BY fetched_at DESC LIMIT ?)`

// PruneSnapshots keeps the newest keep snapshots and their rows.
func (q *Queries) PruneSnapshots(ctx context.Context, keep int64) error {
	for _, stmt := range []string{pruneSessions, pruneWarnings, pruneSnapshots} {
		if _, err := q.db.ExecContext(ctx, stmt, keep); err != nil {
			return err
		}
	}
	return nil
}
