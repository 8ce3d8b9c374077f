package livecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stats struct {
	Followers int `json:"followers"`
}

func newTestSnapshot(t *testing.T, fetch FetchFunc[stats], options ...Option) *Snapshot[stats] {
	t.Helper()

	base := []Option{
		WithName("stats"),
		WithLogger(discardLogger()),
		WithClock(fixedClock(testNow)),
	}
	s, err := NewSnapshot(context.Background(), fetch, append(base, options...)...)
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}
	t.Cleanup(s.Close)

	return s
}

func TestSnapshotGetCachesFreshValue(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s := newTestSnapshot(t, func(context.Context) (stats, error) {
		calls.Add(1)
		return stats{Followers: 10}, nil
	})

	for idx := 0; idx < 3; idx++ {
		value, err := s.Get(context.Background())
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if value.Followers != 10 {
			t.Fatalf("followers = %d, want 10", value.Followers)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch calls = %d, want 1", got)
	}

	state := s.State()
	if !state.HasValue || state.IsLoading || !state.CapturedAt.Equal(testNow) {
		t.Fatalf("state = %+v", state)
	}
}

func TestSnapshotRefreshFailureKeepsValue(t *testing.T) {
	t.Parallel()

	fail := false
	s := newTestSnapshot(t, func(context.Context) (stats, error) {
		if fail {
			return stats{}, errors.New("flood wait")
		}
		return stats{Followers: 5}, nil
	})

	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	fail = true
	sub := s.Subscribe()
	defer sub.Close()

	_, err := s.Refresh(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("refresh error = %v, want ErrTransport", err)
	}

	state := waitForState(t, sub, func(state SnapshotState[stats]) bool { return !state.IsLoading })
	if !state.HasValue || state.Value.Followers != 5 {
		t.Fatalf("state = %+v, want previous value kept", state)
	}
}

func TestSnapshotConcurrentRefreshSharesFetch(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	entered := make(chan struct{}, 8)
	var calls atomic.Int32
	s := newTestSnapshot(t, func(context.Context) (stats, error) {
		calls.Add(1)
		entered <- struct{}{}
		<-release
		return stats{Followers: 3}, nil
	})

	var wg sync.WaitGroup
	results := make(chan int, 4)
	for idx := 0; idx < 4; idx++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := s.Refresh(context.Background())
			if err != nil {
				t.Errorf("refresh: %v", err)
				return
			}
			results <- value.Followers
		}()
	}

	<-entered
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for followers := range results {
		if followers != 3 {
			t.Fatalf("followers = %d, want 3", followers)
		}
	}
	if got := calls.Load(); got < 1 || got > 4 {
		t.Fatalf("fetch calls = %d", got)
	}
}

func TestSnapshotRefreshOutlivesCancelledCaller(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	s := newTestSnapshot(t, func(ctx context.Context) (stats, error) {
		entered <- struct{}{}
		select {
		case <-release:
			return stats{Followers: 8}, nil
		case <-ctx.Done():
			return stats{}, ctx.Err()
		}
	})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Refresh(firstCtx)
		firstErr <- err
	}()
	<-entered

	type result struct {
		value stats
		err   error
	}
	second := make(chan result, 1)
	go func() {
		value, err := s.Refresh(context.Background())
		second <- result{value: value, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller error = %v, want context.Canceled", err)
	}

	close(release)
	got := <-second
	if got.err != nil {
		t.Fatalf("live caller error = %v", got.err)
	}
	if got.value.Followers != 8 || !s.State().HasValue {
		t.Fatalf("value = %+v state = %+v", got.value, s.State())
	}
}

func TestSnapshotCloseAbandonsFetch(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{}, 1)
	s := newTestSnapshot(t, func(ctx context.Context) (stats, error) {
		entered <- struct{}{}
		<-ctx.Done()
		return stats{}, ctx.Err()
	})

	refreshErr := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background())
		refreshErr <- err
	}()
	<-entered

	s.Close()
	select {
	case err := <-refreshErr:
		if !errors.Is(err, ErrTransport) || !errors.Is(err, context.Canceled) {
			t.Fatalf("refresh error = %v, want cancelled transport failure", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("refresh still blocked after close")
	}
}

func TestSnapshotSeedAndInvalidate(t *testing.T) {
	t.Parallel()

	payload, err := encodeValue(stats{Followers: 99})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	tests := []struct {
		name      string
		envelope  Envelope
		wantValue bool
	}{
		{
			name:      "fresh envelope seeds value",
			envelope:  Envelope{CapturedAt: testNow.Add(-time.Minute), Payload: payload},
			wantValue: true,
		},
		{
			name:     "stale envelope is ignored",
			envelope: Envelope{CapturedAt: testNow.Add(-10 * time.Minute), Payload: payload},
		},
		{
			name:     "corrupt envelope is ignored",
			envelope: Envelope{CapturedAt: testNow.Add(-time.Minute), Payload: []byte("[")},
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			store := newMemoryStore()
			store.entries["stats"] = testCase.envelope

			var calls atomic.Int32
			s := newTestSnapshot(t, func(context.Context) (stats, error) {
				calls.Add(1)
				return stats{Followers: 1}, nil
			}, WithBlobStore(store, "stats"))

			state := s.State()
			if state.HasValue != testCase.wantValue {
				t.Fatalf("has value = %v, want %v", state.HasValue, testCase.wantValue)
			}
			if testCase.wantValue && (!state.FromCache || state.Value.Followers != 99) {
				t.Fatalf("state = %+v, want cached value", state)
			}

			value, err := s.Get(context.Background())
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			wantCalls := int32(1)
			wantFollowers := 1
			if testCase.wantValue {
				wantCalls = 0
				wantFollowers = 99
			}
			if calls.Load() != wantCalls || value.Followers != wantFollowers {
				t.Fatalf("calls = %d value = %d, want %d/%d", calls.Load(), value.Followers, wantCalls, wantFollowers)
			}

			if err := s.Invalidate(context.Background()); err != nil {
				t.Fatalf("invalidate: %v", err)
			}
			if _, found := store.entry("stats"); found {
				t.Fatal("envelope still present after invalidate")
			}
			if s.State().HasValue {
				t.Fatal("value still present after invalidate")
			}
		})
	}
}

func TestSnapshotPersistsRefresh(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	s := newTestSnapshot(t, func(context.Context) (stats, error) {
		return stats{Followers: 12}, nil
	}, WithBlobStore(store, "stats"))

	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	envelope, found := store.entry("stats")
	if !found {
		t.Fatal("envelope not persisted")
	}
	value, err := decodeValue[stats](envelope.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if value.Followers != 12 || !envelope.CapturedAt.Equal(testNow) {
		t.Fatalf("persisted = %+v at %v", value, envelope.CapturedAt)
	}
}
