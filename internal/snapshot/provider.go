package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"tutordash/internal/apperr"
	"tutordash/internal/ingest"
	"tutordash/internal/log"
	"tutordash/internal/sheets"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL          = 10 * time.Second
	DefaultFetchTimeout = 7 * time.Second
	persistTimeout      = 3 * time.Second
)

// Options tunes a Provider. Zero values select the defaults.
type Options struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time
	NewID        func() string
	Logger       *log.Logger
	Recorder     Recorder
	Stores       []Store
}

// Provider serves the current snapshot, refetching it from upstream when it
// is older than the TTL. Concurrent callers share a single upstream fetch.
// A failed fetch never discards the previous snapshot.
type Provider struct {
	fetcher sheets.TableFetcher
	source  string
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	newID   func() string
	logger  *log.Logger
	rec     Recorder
	stores  []Store
	group   singleflight.Group

	mu        sync.RWMutex
	current   *Snapshot
	expiresAt time.Time
	retryAt   time.Time
}

// New creates a provider reading from fetcher.
func New(fetcher sheets.TableFetcher, opts Options) *Provider {
	p := &Provider{
		fetcher: fetcher,
		source:  "upstream",
		ttl:     opts.TTL,
		timeout: opts.FetchTimeout,
		now:     opts.Now,
		newID:   opts.NewID,
		logger:  opts.Logger,
		rec:     opts.Recorder,
		stores:  opts.Stores,
	}
	if n, ok := fetcher.(sheets.Named); ok {
		p.source = n.Name()
	}
	if p.ttl <= 0 {
		p.ttl = DefaultTTL
	}
	if p.timeout <= 0 {
		p.timeout = DefaultFetchTimeout
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	if p.logger == nil {
		p.logger = log.Discard()
	}
	p.logger = p.logger.WithComponent(log.ComponentSnapshot)
	if p.rec == nil {
		p.rec = nopRecorder{}
	}
	return p
}

// Current returns the snapshot in memory without triggering a fetch, or nil.
func (p *Provider) Current() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Get returns a snapshot no older than the TTL when upstream is reachable.
// When a refetch fails and an older snapshot exists, the older one is
// returned and the next upstream attempt is deferred by one TTL.
func (p *Provider) Get(ctx context.Context) (*Snapshot, error) {
	now := p.now()
	p.mu.RLock()
	cur := p.current
	fresh := cur != nil && now.Before(p.expiresAt)
	backoff := cur != nil && now.Before(p.retryAt)
	p.mu.RUnlock()

	if fresh {
		return cur, nil
	}
	if backoff {
		p.rec.StaleServe()
		return cur, nil
	}

	snap, err := p.load(ctx)
	if err == nil {
		return snap, nil
	}
	if stale := p.Current(); stale != nil {
		p.rec.StaleServe()
		p.logger.WarnContext(ctx, "Serving stale snapshot after failed refresh",
			log.FieldSnapshotID, stale.ID,
			log.FieldStaleAge, stale.Age(p.now()).String(),
			log.FieldError, err)
		return stale, nil
	}
	return nil, err
}

// Refresh forces an upstream fetch. The error is returned even when an older
// snapshot is still being served.
func (p *Provider) Refresh(ctx context.Context) (*Snapshot, error) {
	return p.load(ctx)
}

// Invalidate marks the current snapshot expired so the next Get refetches.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresAt = time.Time{}
	p.retryAt = time.Time{}
}

// Warm installs the newest snapshot found in the stores, if any. It is meant
// for startup: the warm snapshot counts as expired, so the first Get still
// goes upstream but has something to fall back on.
func (p *Provider) Warm(ctx context.Context) error {
	snap, err := p.latestStored(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || snap.FetchedAt.After(p.current.FetchedAt) {
		p.current = snap
		p.expiresAt = snap.FetchedAt.Add(p.ttl)
	}
	p.logger.InfoContext(ctx, "Snapshot warmed from store",
		log.FieldSnapshotID, snap.ID,
		log.FieldSessions, len(snap.Sessions),
		log.FieldOperation, log.OpWarm)
	return nil
}

// Reload adopts a snapshot written by another process (the refresh worker)
// if it is newer than the one in memory. It reports whether it switched.
func (p *Provider) Reload(ctx context.Context) (bool, error) {
	snap, err := p.latestStored(ctx)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && !snap.FetchedAt.After(p.current.FetchedAt) {
		return false, nil
	}
	p.current = snap
	p.expiresAt = p.now().Add(p.ttl)
	p.retryAt = time.Time{}
	return true, nil
}

func (p *Provider) latestStored(ctx context.Context) (*Snapshot, error) {
	var errs []error
	for _, st := range p.stores {
		snap, err := st.LoadLatest(ctx)
		if err == nil {
			return snap, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrNoSnapshot
	}
	return nil, errors.Join(errs...)
}

func (p *Provider) load(ctx context.Context) (*Snapshot, error) {
	v, err, _ := p.group.Do("fetch", func() (any, error) {
		// The fetch is shared, so one caller going away must not cancel it.
		return p.fetch(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (p *Provider) fetch(ctx context.Context) (*Snapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	table, err := p.fetcher.FetchTable(fetchCtx)
	p.rec.ObserveFetch(p.source, time.Since(start), err)
	if err != nil {
		p.markFailure()
		return nil, apperr.DataSource(err, "fetch lesson table from "+p.source)
	}
	res, err := ingest.Parse(table)
	if err != nil {
		p.markFailure()
		return nil, err
	}

	snap := &Snapshot{
		ID:        p.newID(),
		FetchedAt: p.now(),
		Source:    p.source,
		Sessions:  res.Sessions,
		Dropped:   res.Dropped,
		Warnings:  res.Warnings,
	}
	p.install(snap)
	p.rec.ObserveSnapshot(len(snap.Sessions), snap.Dropped, snap.FetchedAt)

	log.NewStructuredLogger(p.logger).LogSnapshotLoaded(ctx, snap.ID, snap.Source, len(snap.Sessions), snap.Dropped)
	if snap.Dropped > 0 {
		p.logger.WarnContext(ctx, "Dropped malformed rows",
			log.FieldSnapshotID, snap.ID,
			log.FieldDroppedRows, snap.Dropped,
			log.FieldFirstReason, snap.Warnings[0].String())
	}
	p.persist(ctx, snap)
	return snap, nil
}

func (p *Provider) install(snap *Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = snap
	p.expiresAt = snap.FetchedAt.Add(p.ttl)
	p.retryAt = time.Time{}
}

func (p *Provider) markFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retryAt = p.now().Add(p.ttl)
}

func (p *Provider) persist(ctx context.Context, snap *Snapshot) {
	if len(p.stores) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	for _, st := range p.stores {
		if err := st.SaveSnapshot(ctx, snap); err != nil {
			p.logger.WarnContext(ctx, "Failed to persist snapshot",
				log.FieldSnapshotID, snap.ID,
				log.FieldOperation, log.OpPersist,
				log.FieldError, err)
		}
	}
}
