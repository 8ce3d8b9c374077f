package boosters

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"chanpulse/pkg/livecache"
	"chanpulse/pkg/livecache/livecachetest"
	"chanpulse/pkg/pulse"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type wireBoost struct {
	ID   int
	Gift bool
}

type recordingSource struct {
	mu       sync.Mutex
	requests []livecache.PageRequest
	total    int
}

func (s *recordingSource) FetchPage(_ context.Context, request livecache.PageRequest) (livecache.Page[wireBoost], error) {
	s.mu.Lock()
	s.requests = append(s.requests, request)
	s.mu.Unlock()

	count := request.Limit
	if remaining := s.total - request.Cursor.Offset; remaining < count {
		count = remaining
	}
	items := make([]wireBoost, 0, count)
	for idx := 0; idx < count; idx++ {
		items = append(items, wireBoost{ID: request.Cursor.Offset + idx})
	}

	return livecache.Page[wireBoost]{
		Items:      items,
		TotalCount: s.total,
		HasMore:    request.Cursor.Offset+count < s.total,
	}, nil
}

func (s *recordingSource) Decode(w wireBoost) (pulse.Booster, error) {
	kind := pulse.BoostKindRegular
	if w.Gift {
		kind = pulse.BoostKindGift
	}
	return pulse.Booster{ID: strconv.Itoa(w.ID), Kind: kind, UserID: int64(w.ID + 1)}, nil
}

func (s *recordingSource) offsets() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	offsets := make([]int, 0, len(s.requests))
	for _, request := range s.requests {
		offsets = append(offsets, request.Cursor.Offset)
	}
	return offsets
}

func TestNewValidatesArguments(t *testing.T) {
	t.Parallel()

	source := &recordingSource{}
	tests := []struct {
		name    string
		channel pulse.ChannelRef
		boosts  livecache.Source[wireBoost, pulse.Booster]
		gifts   livecache.Source[wireBoost, pulse.Booster]
		wantErr error
	}{
		{name: "missing channel id", channel: pulse.ChannelRef{Username: "news"}, boosts: source, gifts: source, wantErr: pulse.ErrInvalidChannel},
		{name: "nil boosts source", channel: pulse.ChannelRef{ID: 1}, gifts: source},
		{name: "nil gifts source", channel: pulse.ChannelRef{ID: 1}, boosts: source},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(context.Background(), testCase.channel, testCase.boosts, testCase.gifts)
			if err == nil {
				t.Fatal("expected error")
			}
			if testCase.wantErr != nil && !errors.Is(err, testCase.wantErr) {
				t.Fatalf("error = %v, want %v", err, testCase.wantErr)
			}
		})
	}
}

func TestListsPaginateIndependently(t *testing.T) {
	t.Parallel()

	boosts := &recordingSource{total: 120}
	gifts := &recordingSource{total: 10}
	store := livecachetest.NewStore()
	c, err := New[wireBoost](context.Background(), pulse.ChannelRef{ID: 42}, boosts, gifts,
		WithBlobStore(store),
		WithLogger(livecachetest.DiscardLogger()),
		WithCacheOptions(livecache.WithClock(livecachetest.FixedClock(testNow))),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer livecachetest.Close(t, c)

	boostSub := c.Boosts().Subscribe()
	defer boostSub.Close()
	giftSub := c.Gifts().Subscribe()
	defer giftSub.Close()

	c.Boosts().LoadMore()
	state := livecachetest.WaitFor(t, boostSub, livecachetest.Loaded[pulse.Booster])
	if len(state.Items) != 25 || !state.CanLoadMore || state.TotalCountEstimate != 120 {
		t.Fatalf("boosts after first page = %d items, can_load_more %v, total %d", len(state.Items), state.CanLoadMore, state.TotalCountEstimate)
	}

	c.Gifts().LoadMore()
	giftState := livecachetest.WaitFor(t, giftSub, livecachetest.Loaded[pulse.Booster])
	if len(giftState.Items) != 10 || giftState.CanLoadMore {
		t.Fatalf("gifts = %d items, can_load_more %v", len(giftState.Items), giftState.CanLoadMore)
	}

	c.Boosts().LoadMore()
	state = livecachetest.WaitFor(t, boostSub, func(state livecache.State[pulse.Booster]) bool {
		return !state.IsLoadingMore && len(state.Items) == 75
	})
	if !state.CanLoadMore {
		t.Fatal("boosts can_load_more = false after full second page")
	}

	if got := boosts.offsets(); len(got) != 2 || got[0] != 0 || got[1] != 25 {
		t.Fatalf("boost offsets = %v, want [0 25]", got)
	}
	if got := gifts.offsets(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("gift offsets = %v, want [0]", got)
	}

	c.Boosts().MarkRemoved(func(pulse.Booster) bool { return false })
	c.Gifts().MarkRemoved(func(pulse.Booster) bool { return false })
	for _, key := range []string{"boosters:42:boosts", "boosters:42:gifts"} {
		if !store.Has(key) {
			t.Fatalf("envelope %q not persisted, have %v", key, store.Keys())
		}
	}
}

func TestReloadRestartsFromFirstPage(t *testing.T) {
	t.Parallel()

	boosts := &recordingSource{total: 100}
	c, err := New[wireBoost](context.Background(), pulse.ChannelRef{ID: 7}, boosts, &recordingSource{},
		WithLogger(livecachetest.DiscardLogger()),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer livecachetest.Close(t, c)

	sub := c.Boosts().Subscribe()
	defer sub.Close()

	c.Boosts().LoadMore()
	livecachetest.WaitFor(t, sub, livecachetest.Loaded[pulse.Booster])
	c.Boosts().LoadMore()
	livecachetest.WaitFor(t, sub, func(state livecache.State[pulse.Booster]) bool {
		return !state.IsLoadingMore && len(state.Items) == 75
	})

	c.Boosts().Reload()
	state := livecachetest.WaitFor(t, sub, func(state livecache.State[pulse.Booster]) bool {
		return !state.IsLoadingMore && len(state.Items) == 25
	})
	if !state.CanLoadMore {
		t.Fatal("can_load_more = false after reset")
	}

	if got := boosts.offsets(); len(got) != 3 || got[2] != 0 {
		t.Fatalf("offsets = %v, want reload from 0", got)
	}
}

func TestListByName(t *testing.T) {
	t.Parallel()

	c, err := New[wireBoost](context.Background(), pulse.ChannelRef{ID: 3}, &recordingSource{}, &recordingSource{},
		WithLogger(livecachetest.DiscardLogger()),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer livecachetest.Close(t, c)

	if list, err := c.List(ListGifts); err != nil || list != c.Gifts() {
		t.Fatalf("list gifts = %p, %v", list, err)
	}
	if _, err := c.List("stories"); !errors.Is(err, pulse.ErrUnsupportedItem) {
		t.Fatalf("unknown list error = %v", err)
	}
	if c.Channel().ID != 3 {
		t.Fatalf("channel = %+v", c.Channel())
	}
	if name := c.Boosts().Name(); name != "boosters:3:boosts" {
		t.Fatalf("name = %q", name)
	}
}
