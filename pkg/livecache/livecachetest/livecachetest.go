// Package livecachetest provides helpers for testing code built on livecache.
package livecachetest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chanpulse/pkg/livecache"
)

// DefaultWait bounds WaitFor.
const DefaultWait = 2 * time.Second

// Store is an in-memory livecache.BlobStore that counts writes.
type Store struct {
	mu      sync.Mutex
	entries map[string]livecache.Envelope
	puts    int
	removes int
}

// NewStore creates an empty recording store.
func NewStore() *Store {
	return &Store{entries: make(map[string]livecache.Envelope)}
}

// Get implements livecache.BlobStore.
func (s *Store) Get(_ context.Context, key string) (livecache.Envelope, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	envelope, found := s.entries[key]
	return envelope, found, nil
}

// Put implements livecache.BlobStore.
func (s *Store) Put(_ context.Context, key string, envelope livecache.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = envelope
	s.puts++
	return nil
}

// Remove implements livecache.BlobStore.
func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	s.removes++
	return nil
}

// Seed stores envelope under key without counting a write.
func (s *Store) Seed(key string, envelope livecache.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = envelope
}

// Keys returns every stored key.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// Has reports whether key is stored.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found := s.entries[key]
	return found
}

// Puts returns how many times Put was called.
func (s *Store) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.puts
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FixedClock returns a clock stuck at now.
func FixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

// WaitFor reads updates until match accepts one or DefaultWait passes.
func WaitFor[S any](t testing.TB, sub *livecache.Subscription[S], match func(S) bool) S {
	t.Helper()

	deadline := time.After(DefaultWait)
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

// Loaded matches a state whose first page landed and no fetch is in flight.
func Loaded[T any](state livecache.State[T]) bool {
	return state.HasLoadedOnce && !state.IsLoadingMore
}

// Close closes c with a bounded context and reports failures on t.
func Close(t testing.TB, c interface{ Close(context.Context) error }) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultWait)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Errorf("close: %v", err)
	}
}
