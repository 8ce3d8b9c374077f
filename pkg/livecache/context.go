package livecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const commandBuffer = 64

// Context accumulates a remote paginated list and streams its state.
//
// All mutation happens on one owner goroutine. Callers on any goroutine may read
// State, subscribe, and request loads; requests are marshaled onto the owner.
type Context[W, T any] struct {
	cfg     config
	source  Source[W, T]
	metrics instruments
	hub     *hub[State[T]]
	current atomic.Pointer[State[T]]

	commands  chan func()
	runCtx    context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	fetches   sync.WaitGroup
	closeOnce sync.Once

	// Owned by the run goroutine after construction.
	state      State[T]
	cursor     Cursor
	lastFailed bool
	reset      *resetCheckpoint
	capturedAt time.Time
}

// resetCheckpoint remembers where a reset reload started so a failed first page
// can restore the previous accumulation.
type resetCheckpoint struct {
	cursor Cursor
}

// New creates a context over source and seeds it from a fresh persisted envelope
// when a blob store is configured. ctx bounds only the seed read.
func New[W, T any](ctx context.Context, source Source[W, T], options ...Option) (*Context[W, T], error) {
	if source == nil {
		return nil, fmt.Errorf("new live cache context: nil source")
	}

	cfg := defaultConfig()
	for _, option := range options {
		option(&cfg)
	}
	if cfg.initialLimit <= 0 || cfg.subsequentLimit <= 0 {
		return nil, fmt.Errorf("new live cache context %s: limits must be > 0", cfg.name)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Context[W, T]{
		cfg:      cfg,
		source:   source,
		metrics:  newInstruments(cfg.meter),
		commands: make(chan func(), commandBuffer),
		runCtx:   runCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    State[T]{CanLoadMore: true},
	}
	c.seed(ctx)

	snapshot := c.state.clone()
	c.current.Store(&snapshot)
	c.hub = newHub(snapshot)

	go c.run()

	return c, nil
}

// Name returns the context name used in logs and metrics.
func (c *Context[W, T]) Name() string {
	return c.cfg.name
}

// State returns the latest published state without blocking.
func (c *Context[W, T]) State() State[T] {
	return c.current.Load().clone()
}

// Subscribe attaches an observer. The current state is delivered first.
func (c *Context[W, T]) Subscribe() *Subscription[State[T]] {
	return c.hub.subscribe()
}

// LoadMore requests the next page. It is a no-op while a fetch is in flight or
// once the list is exhausted.
func (c *Context[W, T]) LoadMore() {
	c.submit(c.loadMoreLocked)
}

// Reload behaves like LoadMore until a page has been fetched. Afterwards it
// follows the configured ReloadPolicy. It is a no-op while a fetch is in flight.
func (c *Context[W, T]) Reload() {
	c.submit(c.reloadLocked)
}

// MarkRemoved removes the first item matching predicate from the accumulation and
// rewrites the persisted envelope. It reports whether an item was removed.
func (c *Context[W, T]) MarkRemoved(predicate func(T) bool) bool {
	if predicate == nil {
		return false
	}

	result := make(chan bool, 1)
	if !c.submit(func() { result <- c.removeLocked(predicate) }) {
		return false
	}

	select {
	case removed := <-result:
		return removed
	case <-c.done:
		return false
	}
}

// Close abandons the in-flight fetch, stops the owner goroutine and closes every
// subscription. It waits for background goroutines until ctx expires.
func (c *Context[W, T]) Close(ctx context.Context) error {
	c.closeOnce.Do(c.cancel)

	select {
	case <-c.done:
	case <-ctx.Done():
		return fmt.Errorf("close %s: %w", c.cfg.name, ctx.Err())
	}

	fetched := make(chan struct{})
	go func() {
		c.fetches.Wait()
		close(fetched)
	}()

	select {
	case <-fetched:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close %s: wait fetch: %w", c.cfg.name, ctx.Err())
	}
}

func (c *Context[W, T]) run() {
	defer close(c.done)
	defer c.hub.close()

	for {
		select {
		case <-c.runCtx.Done():
			return
		case command := <-c.commands:
			command()
		}
	}
}

// submit queues command on the owner goroutine. It reports false after Close.
func (c *Context[W, T]) submit(command func()) bool {
	if c.runCtx.Err() != nil {
		return false
	}

	select {
	case c.commands <- command:
		return true
	case <-c.runCtx.Done():
		return false
	}
}

func (c *Context[W, T]) loadMoreLocked() {
	if c.state.IsLoadingMore || !c.state.CanLoadMore {
		return
	}
	c.beginFetchLocked()
}

func (c *Context[W, T]) reloadLocked() {
	if c.state.IsLoadingMore {
		return
	}
	if !c.state.HasLoadedOnce {
		c.loadMoreLocked()
		return
	}

	switch c.cfg.reloadPolicy {
	case ReloadReset:
		c.reset = &resetCheckpoint{cursor: c.cursor}
		c.cursor = Cursor{}
		c.beginFetchLocked()
	default:
		// A degraded page left CanLoadMore false; an explicit reload retries it.
		if c.lastFailed {
			c.beginFetchLocked()
			return
		}
		c.loadMoreLocked()
	}
}

func (c *Context[W, T]) limitLocked() int {
	if c.cursor.IsZero() {
		return c.cfg.initialLimit
	}

	return c.cfg.subsequentLimit
}

// beginFetchLocked marks the context loading and starts exactly one remote call.
func (c *Context[W, T]) beginFetchLocked() {
	request := PageRequest{
		Cursor: c.cursor,
		Limit:  c.limitLocked(),
	}
	c.state.IsLoadingMore = true
	c.publishLocked()

	c.fetches.Add(1)
	go func() {
		defer c.fetches.Done()

		page, err := c.fetch(request)
		c.submit(func() {
			c.completeFetchLocked(request, page, err)
		})
	}()
}

func (c *Context[W, T]) fetch(request PageRequest) (Page[W], error) {
	fetchCtx := c.runCtx
	cancel := func() {}
	if c.cfg.fetchTimeout > 0 {
		fetchCtx, cancel = context.WithTimeout(c.runCtx, c.cfg.fetchTimeout)
	}
	defer cancel()

	var page Page[W]
	err := runSafely("fetch page", func() error {
		fetched, err := c.source.FetchPage(fetchCtx, request)
		if err != nil {
			return err
		}
		page = fetched
		return nil
	})
	if err != nil {
		return Page[W]{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	return page, nil
}

// completeFetchLocked merges one page into the accumulation and publishes.
func (c *Context[W, T]) completeFetchLocked(request PageRequest, page Page[W], fetchErr error) {
	c.state.IsLoadingMore = false

	if fetchErr != nil {
		c.cfg.logger.Warn("livecache fetch degraded to empty page",
			"context", c.cfg.name,
			"offset", request.Cursor.Offset,
			"limit", request.Limit,
			"subscribers", c.hub.count(),
			"error", fetchErr,
		)
		record(c.runCtx, c.metrics.fetchFailures, c.cfg.name, 1)
		c.lastFailed = true

		if c.reset != nil {
			c.cursor = c.reset.cursor
			c.reset = nil
			c.publishLocked()
			return
		}

		c.state.CanLoadMore = false
		c.state.HasLoadedOnce = true
		c.state.TotalCountEstimate = len(c.state.Items)
		c.publishLocked()
		return
	}

	decoded := c.decodeLocked(page.Items)
	if c.reset != nil {
		c.state.Items = nil
		c.reset = nil
	}

	returned := len(page.Items)
	c.state.Items = append(c.state.Items, decoded...)
	c.cursor.Offset += returned
	c.cursor.Token = page.NextToken
	c.lastFailed = false

	c.state.HasLoadedOnce = true
	c.state.FromCache = false
	c.state.CanLoadMore = returned > 0 && returned >= request.Limit && page.HasMore
	if returned == 0 {
		c.state.TotalCountEstimate = len(c.state.Items)
	} else {
		c.state.TotalCountEstimate = max(page.TotalCount, len(c.state.Items))
	}

	record(c.runCtx, c.metrics.pages, c.cfg.name, 1)
	c.publishLocked()
	c.persistLocked(c.cfg.now())
}

func (c *Context[W, T]) decodeLocked(items []W) []T {
	decoded := make([]T, 0, len(items))
	for idx, item := range items {
		value, err := c.decodeSafely(item)
		if err != nil {
			c.cfg.logger.Warn("livecache dropped undecodable item",
				"context", c.cfg.name,
				"index", idx,
				"error", err,
			)
			record(c.runCtx, c.metrics.decodeDrops, c.cfg.name, 1)
			continue
		}
		decoded = append(decoded, value)
	}

	return decoded
}

func (c *Context[W, T]) decodeSafely(item W) (value T, err error) {
	err = runSafely("decode item", func() error {
		decoded, decodeErr := c.source.Decode(item)
		if decodeErr != nil {
			return decodeErr
		}
		value = decoded
		return nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return value, nil
}

func (c *Context[W, T]) removeLocked(predicate func(T) bool) bool {
	index := -1
	for idx, item := range c.state.Items {
		if predicate(item) {
			index = idx
			break
		}
	}
	if index < 0 {
		return false
	}

	items := make([]T, 0, len(c.state.Items)-1)
	items = append(items, c.state.Items[:index]...)
	items = append(items, c.state.Items[index+1:]...)
	c.state.Items = items
	if c.state.TotalCountEstimate > 0 {
		c.state.TotalCountEstimate--
	}
	c.state.TotalCountEstimate = max(c.state.TotalCountEstimate, len(c.state.Items))
	c.publishLocked()

	capturedAt := c.capturedAt
	if capturedAt.IsZero() {
		capturedAt = c.cfg.now()
	}
	c.persistLocked(capturedAt)

	return true
}

func (c *Context[W, T]) publishLocked() {
	snapshot := c.state.clone()
	c.current.Store(&snapshot)
	c.hub.publish(snapshot)
}

// persistLocked writes the accumulation as an envelope. Failures are logged only.
func (c *Context[W, T]) persistLocked(capturedAt time.Time) {
	if c.cfg.store == nil {
		return
	}

	payload, err := encodeListPayload(listPayload[T]{
		Items:       c.state.Items,
		TotalCount:  c.state.TotalCountEstimate,
		Cursor:      c.cursor,
		CanLoadMore: c.state.CanLoadMore,
	})
	if err != nil {
		c.cfg.logger.Warn("livecache encode envelope failed", "context", c.cfg.name, "error", err)
		return
	}

	storeCtx, cancel := context.WithTimeout(c.runCtx, c.cfg.storeTimeout)
	defer cancel()

	if err := c.cfg.store.Put(storeCtx, c.cfg.key, Envelope{CapturedAt: capturedAt, Payload: payload}); err != nil {
		c.cfg.logger.Warn("livecache persist envelope failed",
			"context", c.cfg.name,
			"key", c.cfg.key,
			"error", err,
		)
		return
	}
	c.capturedAt = capturedAt
}

// seed loads a fresh envelope into the initial state. Every failure is a miss.
func (c *Context[W, T]) seed(ctx context.Context) {
	if c.cfg.store == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	storeCtx, cancel := context.WithTimeout(ctx, c.cfg.storeTimeout)
	defer cancel()

	envelope, found, err := loadFreshEnvelope(storeCtx, c.cfg.store, c.cfg.key, c.cfg.now(), c.cfg.freshness)
	if err != nil {
		c.cfg.logger.Warn("livecache seed read failed", "context", c.cfg.name, "key", c.cfg.key, "error", err)
		return
	}
	if !found {
		return
	}

	payload, err := decodeListPayload[T](envelope.Payload)
	if err != nil {
		if errors.Is(err, ErrCacheCorrupt) {
			record(ctx, c.metrics.cacheCorrupt, c.cfg.name, 1)
		}
		c.cfg.logger.Warn("livecache seed envelope ignored", "context", c.cfg.name, "key", c.cfg.key, "error", err)
		return
	}

	c.state = State[T]{
		Items:              payload.Items,
		TotalCountEstimate: payload.TotalCount,
		HasLoadedOnce:      true,
		CanLoadMore:        payload.CanLoadMore,
		FromCache:          true,
	}
	c.cursor = payload.Cursor
	c.capturedAt = envelope.CapturedAt
}
