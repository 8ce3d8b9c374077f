package livecache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type wireItem struct {
	ID  int
	Bad bool
}

type item struct {
	ID int `json:"id"`
}

// stubSource records requests and answers them through respond. When gate is set,
// every fetch blocks until a value is received from gate or ctx ends.
type stubSource struct {
	mu       sync.Mutex
	requests []PageRequest
	respond  func(request PageRequest) (Page[wireItem], error)
	gate     chan struct{}
	started  chan PageRequest
}

func (s *stubSource) FetchPage(ctx context.Context, request PageRequest) (Page[wireItem], error) {
	s.mu.Lock()
	s.requests = append(s.requests, request)
	respond := s.respond
	s.mu.Unlock()

	if s.started != nil {
		s.started <- request
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return Page[wireItem]{}, ctx.Err()
		}
	}
	if respond == nil {
		return Page[wireItem]{}, errors.New("no responder")
	}

	return respond(request)
}

func (s *stubSource) Decode(w wireItem) (item, error) {
	if w.Bad {
		return item{}, errors.New("bad wire item")
	}

	return item{ID: w.ID}, nil
}

func (s *stubSource) recorded() []PageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]PageRequest(nil), s.requests...)
}

// sequentialPages answers every request with count items numbered from the
// request offset, reporting total as the server count.
func sequentialPages(total int, sizes ...int) func(PageRequest) (Page[wireItem], error) {
	var mu sync.Mutex
	call := 0

	return func(request PageRequest) (Page[wireItem], error) {
		mu.Lock()
		size := 0
		if call < len(sizes) {
			size = sizes[call]
		}
		call++
		mu.Unlock()

		items := make([]wireItem, 0, size)
		for idx := 0; idx < size; idx++ {
			items = append(items, wireItem{ID: request.Cursor.Offset + idx})
		}

		return Page[wireItem]{
			Items:      items,
			TotalCount: total,
			HasMore:    request.Cursor.Offset+size < total,
		}, nil
	}
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]Envelope
	puts    int
	removes int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]Envelope)}
}

func (s *memoryStore) Get(_ context.Context, key string) (Envelope, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	envelope, found := s.entries[key]
	return envelope, found, nil
}

func (s *memoryStore) Put(_ context.Context, key string, envelope Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = envelope
	s.puts++
	return nil
}

func (s *memoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	s.removes++
	return nil
}

func (s *memoryStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.puts
}

func (s *memoryStore) entry(key string) (Envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	envelope, found := s.entries[key]
	return envelope, found
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

func newTestContext(t *testing.T, source *stubSource, options ...Option) *Context[wireItem, item] {
	t.Helper()

	base := []Option{
		WithName("test"),
		WithLogger(discardLogger()),
		WithClock(fixedClock(testNow)),
	}
	c, err := New[wireItem, item](context.Background(), source, append(base, options...)...)
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.Close(ctx); err != nil {
			t.Errorf("close context: %v", err)
		}
	})

	return c
}

// waitForState reads updates until match accepts one or the deadline passes.
func waitForState[S any](t *testing.T, sub *Subscription[S], match func(S) bool) S {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case state, ok := <-sub.Updates():
			if !ok {
				t.Fatal("subscription closed while waiting for state")
			}
			if match(state) {
				return state
			}
		case <-deadline:
			t.Fatal("timed out waiting for state")
		}
	}
}

// barrier round-trips through the owner goroutine so earlier commands are applied.
func barrier(c *Context[wireItem, item]) {
	c.MarkRemoved(func(item) bool { return false })
}

func itemIDs(items []item) []int {
	ids := make([]int, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}

	return ids
}
