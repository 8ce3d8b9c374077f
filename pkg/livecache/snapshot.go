package livecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc performs the single remote call behind a Snapshot.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// SnapshotState is an immutable view of a Snapshot.
type SnapshotState[T any] struct {
	// Value is the last successfully fetched or seeded value.
	Value T `json:"value"`
	// HasValue is false until the first fetch or a fresh cache seed.
	HasValue bool `json:"has_value"`
	// CapturedAt records when Value was fetched.
	CapturedAt time.Time `json:"captured_at"`
	// IsLoading is set while a fetch is in flight.
	IsLoading bool `json:"is_loading"`
	// FromCache is set while Value comes only from a persisted envelope.
	FromCache bool `json:"from_cache"`
}

// Snapshot caches the result of one remote call and republishes it to observers.
//
// Concurrent Get and Refresh calls share one in-flight fetch.
type Snapshot[T any] struct {
	cfg     config
	fetch   FetchFunc[T]
	metrics instruments
	hub     *hub[SnapshotState[T]]
	group   singleflight.Group
	runCtx  context.Context
	cancel  context.CancelFunc

	mu    sync.Mutex
	state SnapshotState[T]
}

// NewSnapshot creates a snapshot over fetch, seeded from a fresh envelope when a
// blob store is configured.
func NewSnapshot[T any](ctx context.Context, fetch FetchFunc[T], options ...Option) (*Snapshot[T], error) {
	if fetch == nil {
		return nil, fmt.Errorf("new live cache snapshot: nil fetch func")
	}

	cfg := defaultConfig()
	for _, option := range options {
		option(&cfg)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Snapshot[T]{
		cfg:     cfg,
		fetch:   fetch,
		metrics: newInstruments(cfg.meter),
		runCtx:  runCtx,
		cancel:  cancel,
	}
	s.seed(ctx)
	s.hub = newHub(s.state)

	return s, nil
}

// State returns the latest state without blocking on fetches.
func (s *Snapshot[T]) State() SnapshotState[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Subscribe attaches an observer. The current state is delivered first.
func (s *Snapshot[T]) Subscribe() *Subscription[SnapshotState[T]] {
	return s.hub.subscribe()
}

// Get returns the cached value while it is fresh and fetches otherwise.
func (s *Snapshot[T]) Get(ctx context.Context) (T, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state.HasValue && (Envelope{CapturedAt: state.CapturedAt}).Fresh(s.cfg.now(), s.cfg.freshness) {
		return state.Value, nil
	}

	return s.Refresh(ctx)
}

// Refresh fetches a new value. On failure the previous value stays published and
// the error is returned only to the caller.
//
// Concurrent callers share one fetch that outlives any single caller; ctx bounds
// only how long this caller waits for it. Close abandons the shared fetch.
func (s *Snapshot[T]) Refresh(ctx context.Context) (T, error) {
	var zero T

	results := s.group.DoChan(s.cfg.name, func() (any, error) {
		return s.refreshShared(ctx)
	})

	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("refresh %s: %w", s.cfg.name, ctx.Err())
	case result := <-results:
		if result.Err != nil {
			return zero, fmt.Errorf("refresh %s: %w", s.cfg.name, result.Err)
		}

		value, ok := result.Val.(T)
		if !ok {
			return zero, fmt.Errorf("refresh %s: unexpected result type %T", s.cfg.name, result.Val)
		}

		return value, nil
	}
}

// Invalidate drops the cached value and removes the persisted envelope.
func (s *Snapshot[T]) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.state = SnapshotState[T]{IsLoading: s.state.IsLoading}
	s.hub.publish(s.state)
	s.mu.Unlock()

	if s.cfg.store == nil {
		return nil
	}
	if err := s.cfg.store.Remove(ctx, s.cfg.key); err != nil {
		return fmt.Errorf("invalidate %s: %w", s.cfg.name, err)
	}

	return nil
}

// Close abandons a shared fetch in flight and closes every subscription.
func (s *Snapshot[T]) Close() {
	s.cancel()
	s.hub.close()
}

// refreshShared detaches the fetch from the caller that started it and ties it to
// the snapshot lifetime instead.
func (s *Snapshot[T]) refreshShared(ctx context.Context) (T, error) {
	sharedCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(s.runCtx, cancel)
	defer stop()

	return s.refresh(sharedCtx)
}

func (s *Snapshot[T]) refresh(ctx context.Context) (T, error) {
	var zero T

	s.setLoading(true)

	fetchCtx := ctx
	cancel := func() {}
	if s.cfg.fetchTimeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.fetchTimeout)
	}
	defer cancel()

	var value T
	err := runSafely("fetch snapshot", func() error {
		fetched, err := s.fetch(fetchCtx)
		if err != nil {
			return err
		}
		value = fetched
		return nil
	})
	if err != nil {
		s.cfg.logger.Warn("livecache snapshot fetch failed", "context", s.cfg.name, "error", err)
		record(ctx, s.metrics.fetchFailures, s.cfg.name, 1)
		s.setLoading(false)
		return zero, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	now := s.cfg.now()
	s.mu.Lock()
	s.state = SnapshotState[T]{
		Value:      value,
		HasValue:   true,
		CapturedAt: now,
	}
	s.hub.publish(s.state)
	s.mu.Unlock()

	s.persist(ctx, value, now)

	return value, nil
}

func (s *Snapshot[T]) setLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.IsLoading = loading
	s.hub.publish(s.state)
}

func (s *Snapshot[T]) persist(ctx context.Context, value T, capturedAt time.Time) {
	if s.cfg.store == nil {
		return
	}

	payload, err := encodeValue(value)
	if err != nil {
		s.cfg.logger.Warn("livecache encode snapshot failed", "context", s.cfg.name, "error", err)
		return
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.storeTimeout)
	defer cancel()

	if err := s.cfg.store.Put(storeCtx, s.cfg.key, Envelope{CapturedAt: capturedAt, Payload: payload}); err != nil {
		s.cfg.logger.Warn("livecache persist snapshot failed", "context", s.cfg.name, "key", s.cfg.key, "error", err)
	}
}

func (s *Snapshot[T]) seed(ctx context.Context) {
	if s.cfg.store == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.storeTimeout)
	defer cancel()

	envelope, found, err := loadFreshEnvelope(storeCtx, s.cfg.store, s.cfg.key, s.cfg.now(), s.cfg.freshness)
	if err != nil {
		s.cfg.logger.Warn("livecache snapshot seed read failed", "context", s.cfg.name, "error", err)
		return
	}
	if !found {
		return
	}

	value, err := decodeValue[T](envelope.Payload)
	if err != nil {
		if errors.Is(err, ErrCacheCorrupt) {
			record(ctx, s.metrics.cacheCorrupt, s.cfg.name, 1)
		}
		s.cfg.logger.Warn("livecache snapshot seed ignored", "context", s.cfg.name, "error", err)
		return
	}

	s.state = SnapshotState[T]{
		Value:      value,
		HasValue:   true,
		CapturedAt: envelope.CapturedAt,
		FromCache:  true,
	}
}
