// Package snapshot keeps the last good copy of the lesson table in memory and
// decides when to go back upstream for a new one.
package snapshot

import (
	"context"
	"errors"
	"time"

	"tutordash/internal/core"
	"tutordash/internal/ingest"
)

// ErrNoSnapshot is returned by stores that have nothing persisted yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Snapshot is one successfully ingested fetch. It is never modified after
// creation; a refresh replaces it wholesale.
type Snapshot struct {
	ID        string
	FetchedAt time.Time
	Source    string
	Sessions  []core.Session
	Dropped   int
	Warnings  []ingest.RowParseWarning
}

// Age returns how old the snapshot is at now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Store persists snapshots outside the process.
type Store interface {
	SaveSnapshot(ctx context.Context, s *Snapshot) error
	LoadLatest(ctx context.Context) (*Snapshot, error)
}

// Recorder receives fetch instrumentation. *metrics.Metrics implements it.
type Recorder interface {
	ObserveFetch(source string, d time.Duration, err error)
	ObserveSnapshot(sessions, dropped int, at time.Time)
	StaleServe()
}

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(string, time.Duration, error) {}
func (nopRecorder) ObserveSnapshot(int, int, time.Time)       {}
func (nopRecorder) StaleServe()                               {}
