package revenue

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"chanpulse/pkg/livecache"
	"chanpulse/pkg/livecache/livecachetest"
	"chanpulse/pkg/pulse"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// historySource serves amounts as transactions; calls listed in failOn fail.
func historySource(amounts []int64, failOn ...int32) (livecache.SourceFuncs[int64, pulse.RevenueTransaction], *atomic.Int32) {
	calls := &atomic.Int32{}
	source := livecache.SourceFuncs[int64, pulse.RevenueTransaction]{
		Fetch: func(_ context.Context, request livecache.PageRequest) (livecache.Page[int64], error) {
			call := calls.Add(1)
			for _, failing := range failOn {
				if call == failing {
					return livecache.Page[int64]{}, errors.New("rpc error code 420: FLOOD_WAIT_3")
				}
			}

			end := min(request.Cursor.Offset+request.Limit, len(amounts))
			page := amounts[min(request.Cursor.Offset, end):end]
			return livecache.Page[int64]{
				Items:      page,
				TotalCount: len(amounts),
				NextToken:  strconv.Itoa(end),
				HasMore:    end < len(amounts),
			}, nil
		},
		Translate: func(amount int64) (pulse.RevenueTransaction, error) {
			kind := pulse.TransactionProceeds
			if amount < 0 {
				kind = pulse.TransactionWithdrawal
			}
			return pulse.RevenueTransaction{
				ID:       strconv.FormatInt(amount, 10),
				Kind:     kind,
				Amount:   amount,
				Currency: pulse.CurrencyStars,
			}, nil
		},
	}

	return source, calls
}

func newTestContext(t *testing.T, source livecache.Source[int64, pulse.RevenueTransaction], options ...Option) *Context[int64] {
	t.Helper()

	base := []Option{
		WithLogger(livecachetest.DiscardLogger()),
		WithCacheOptions(livecache.WithClock(livecachetest.FixedClock(testNow))),
	}
	c, err := New(context.Background(), pulse.ChannelRef{ID: 99, Username: "pulse"}, source, append(base, options...)...)
	if err != nil {
		t.Fatalf("new revenue context: %v", err)
	}
	t.Cleanup(func() { livecachetest.Close(t, c) })

	return c
}

func TestNewRejectsInvalidChannel(t *testing.T) {
	t.Parallel()

	source, _ := historySource(nil)
	if _, err := New[int64](context.Background(), pulse.ChannelRef{}, source); !errors.Is(err, pulse.ErrInvalidChannel) {
		t.Fatalf("error = %v, want ErrInvalidChannel", err)
	}
	if _, err := New[int64](context.Background(), pulse.ChannelRef{ID: 1}, nil); err == nil {
		t.Fatal("expected nil source error")
	}
}

func TestSummaryFollowsAccumulation(t *testing.T) {
	t.Parallel()

	amounts := make([]int64, 0, 30)
	for idx := 0; idx < 30; idx++ {
		amounts = append(amounts, 10)
	}
	amounts[27] = -100

	source, _ := historySource(amounts)
	store := livecachetest.NewStore()
	c := newTestContext(t, source, WithBlobStore(store))
	sub := c.Subscribe()
	defer sub.Close()

	c.LoadMore()
	livecachetest.WaitFor(t, sub, livecachetest.Loaded[pulse.RevenueTransaction])
	if got := c.Summary().Currencies[pulse.CurrencyStars]; got.Incoming != 250 || got.Count != 25 {
		t.Fatalf("first page totals = %+v", got)
	}

	c.LoadMore()
	state := livecachetest.WaitFor(t, sub, func(state livecache.State[pulse.RevenueTransaction]) bool {
		return !state.IsLoadingMore && len(state.Items) == 30
	})
	if state.CanLoadMore {
		t.Fatal("can_load_more = true after short page")
	}

	got := c.Summary().Currencies[pulse.CurrencyStars]
	if got.Incoming != 290 || got.Outgoing != 100 || got.Net != 190 {
		t.Fatalf("totals = %+v, want incoming 290 outgoing 100 net 190", got)
	}

	c.MarkRemoved(func(pulse.RevenueTransaction) bool { return false })
	if !store.Has("revenue:99:transactions") {
		t.Fatalf("envelope not persisted, have %v", store.Keys())
	}
}

func TestReloadRecoversFromFailedPage(t *testing.T) {
	t.Parallel()

	amounts := make([]int64, 60)
	for idx := range amounts {
		amounts[idx] = int64(idx + 1)
	}
	source, calls := historySource(amounts, 2)
	c := newTestContext(t, source)
	sub := c.Subscribe()
	defer sub.Close()

	c.LoadMore()
	livecachetest.WaitFor(t, sub, livecachetest.Loaded[pulse.RevenueTransaction])

	c.LoadMore()
	degraded := livecachetest.WaitFor(t, sub, func(state livecache.State[pulse.RevenueTransaction]) bool {
		return !state.IsLoadingMore && !state.CanLoadMore
	})
	if len(degraded.Items) != 25 {
		t.Fatalf("items after failed page = %d, want 25 kept", len(degraded.Items))
	}

	c.LoadMore()
	c.MarkRemoved(func(pulse.RevenueTransaction) bool { return false })
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls after gated load more = %d, want 2", got)
	}

	c.Reload()
	state := livecachetest.WaitFor(t, sub, func(state livecache.State[pulse.RevenueTransaction]) bool {
		return !state.IsLoadingMore && state.CanLoadMore
	})
	if len(state.Items) != 25 || state.Items[0].Amount != 1 {
		t.Fatalf("items after reset = %d first %+v", len(state.Items), state.Items[0])
	}
	if state.TotalCountEstimate != 60 {
		t.Fatalf("total = %d, want 60", state.TotalCountEstimate)
	}
}
