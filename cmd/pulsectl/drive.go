package main

import (
	"context"
	"fmt"
	"time"

	"chanpulse/pkg/livecache"
)

const defaultCloseTimeout = 5 * time.Second

// pager is the part of a paginated live cache the CLI drives.
type pager[T any] interface {
	Subscribe() *livecache.Subscription[livecache.State[T]]
	LoadMore()
	Reload()
}

// drive loads up to call.maxPages pages and hands every settled state to emit.
// A state served from the cache is emitted before any remote call.
func drive[T any](ctx context.Context, list pager[T], call invocation, emit func(livecache.State[T]) error) error {
	sub := list.Subscribe()
	defer sub.Close()

	state, err := nextSettled(ctx, sub)
	if err != nil {
		return err
	}
	if state.HasLoadedOnce {
		if err := emit(state); err != nil {
			return err
		}
	}

	for pages := 0; pages < call.maxPages; pages++ {
		switch {
		case call.reload && pages == 0:
			list.Reload()
		case state.CanLoadMore:
			list.LoadMore()
		default:
			return nil
		}

		state, err = nextSettled(ctx, sub)
		if err != nil {
			return err
		}
		if err := emit(state); err != nil {
			return err
		}
	}

	return nil
}

// nextSettled returns the next published state with no fetch in flight.
func nextSettled[T any](ctx context.Context, sub *livecache.Subscription[livecache.State[T]]) (livecache.State[T], error) {
	for {
		select {
		case <-ctx.Done():
			return livecache.State[T]{}, ctx.Err()
		case state, ok := <-sub.Updates():
			if !ok {
				return livecache.State[T]{}, fmt.Errorf("wait for state: %w", livecache.ErrClosed)
			}
			if !state.IsLoadingMore {
				return state, nil
			}
		}
	}
}
