// Package worker runs the background refresh loop and reacts to refresh
// events announced by other processes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tutordash/internal/amqp"
	"tutordash/internal/log"
	"tutordash/internal/snapshot"
)

type (
	// Refresher fetches a new snapshot and writes it to the configured stores.
	Refresher interface {
		Refresh(ctx context.Context) (*snapshot.Snapshot, error)
	}

	// Publisher announces a new snapshot to the dashboard servers.
	Publisher interface {
		PublishSnapshotRefreshed(ctx context.Context, msg *amqp.SnapshotRefreshed) error
	}

	// EventRecorder counts publish outcomes. *metrics.Metrics implements it.
	EventRecorder interface {
		EventPublished(err error)
	}
)

var (
	_ Refresher = (*snapshot.Provider)(nil)
	_ Reloader  = (*snapshot.Provider)(nil)
	_ Publisher = (*amqp.Client)(nil)
)

// Config holds configuration for the refresh worker
type Config struct {
	// Interval between two upstream fetches (default: 1m)
	Interval time.Duration

	// PublishTimeout bounds one publish including its retries (default: 10s)
	PublishTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:       time.Minute,
		PublishTimeout: 10 * time.Second,
	}
}

// RefreshWorker periodically refreshes the snapshot and publishes a
// snapshot.refreshed event for every successful fetch.
type RefreshWorker struct {
	refresher Refresher
	publisher Publisher
	recorder  EventRecorder
	config    Config
	logger    *log.Logger
	now       func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Option customises a RefreshWorker.
type Option func(*RefreshWorker)

func WithLogger(l *log.Logger) Option {
	return func(w *RefreshWorker) { w.logger = l }
}

func WithRecorder(r EventRecorder) Option {
	return func(w *RefreshWorker) { w.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(w *RefreshWorker) { w.now = now }
}

// NewRefreshWorker creates a worker. publisher may be nil, in which case
// snapshots are only written to the stores.
func NewRefreshWorker(refresher Refresher, publisher Publisher, config Config, opts ...Option) *RefreshWorker {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = def.PublishTimeout
	}
	w := &RefreshWorker{
		refresher: refresher,
		publisher: publisher,
		config:    config,
		logger:    log.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithComponent(log.ComponentWorker)
	return w
}

// Start begins the refresh loop. Returns an error if already running.
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("refresh worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Refresh worker started", "interval", w.config.Interval.String())
	return nil
}

// Stop gracefully stops the worker and waits for the current cycle.
func (w *RefreshWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Refresh worker stopped gracefully")
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Refresh worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *RefreshWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *RefreshWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	// Refresh immediately on startup
	w.cycle(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

func (w *RefreshWorker) cycle(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Refresh cycle failed",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err)
	}
}

// RunOnce fetches one snapshot and announces it. A publish failure is
// returned but the snapshot has already been persisted by then.
func (w *RefreshWorker) RunOnce(ctx context.Context) (*snapshot.Snapshot, error) {
	start := w.now()
	snap, err := w.refresher.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh snapshot: %w", err)
	}
	w.logger.InfoContext(ctx, "Snapshot refreshed",
		log.FieldSnapshotID, snap.ID,
		log.FieldSessions, len(snap.Sessions),
		log.FieldDroppedRows, snap.Dropped,
		log.FieldDuration, w.now().Sub(start).Milliseconds())

	if w.publisher == nil {
		return snap, nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, w.config.PublishTimeout)
	defer cancel()
	err = w.publisher.PublishSnapshotRefreshed(pubCtx, amqp.NewSnapshotRefreshed(snap, w.now()))
	if w.recorder != nil {
		w.recorder.EventPublished(err)
	}
	if err != nil {
		return snap, fmt.Errorf("publish snapshot %s: %w", snap.ID, err)
	}
	w.logger.DebugContext(ctx, "Refresh event published",
		log.FieldSnapshotID, snap.ID,
		log.FieldOperation, log.OpPublish)
	return snap, nil
}
