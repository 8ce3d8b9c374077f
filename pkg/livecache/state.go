package livecache

import (
	"context"
	"fmt"
)

// Cursor marks how far pagination has progressed.
//
// The zero value means "start from the beginning".
type Cursor struct {
	// Offset counts wire items consumed so far.
	Offset int `json:"offset"`
	// Token carries a server issued continuation for token paged sources.
	Token string `json:"token,omitempty"`
}

// IsZero reports whether the cursor points at the first page.
func (c Cursor) IsZero() bool {
	return c.Offset == 0 && c.Token == ""
}

// PageRequest describes one remote page fetch.
type PageRequest struct {
	// Cursor is the position to resume from.
	Cursor Cursor
	// Limit is the maximum number of items requested.
	Limit int
}

// Page is one remote page in wire form.
type Page[W any] struct {
	// Items are the wire items in server order.
	Items []W
	// TotalCount is the server reported list size, possibly stale.
	TotalCount int
	// NextToken is the continuation token for token paged sources.
	NextToken string
	// HasMore reports whether the server indicates that more items exist.
	HasMore bool
}

// Source fetches remote pages and translates wire items into domain values.
//
// FetchPage must be idempotent and safe to retry. Decode must be a pure function.
type Source[W, T any] interface {
	// FetchPage issues exactly one remote call for the requested window.
	FetchPage(ctx context.Context, request PageRequest) (Page[W], error)
	// Decode translates one wire item. An error drops only that item.
	Decode(item W) (T, error)
}

// SourceFuncs adapts plain functions to Source.
type SourceFuncs[W, T any] struct {
	Fetch     func(ctx context.Context, request PageRequest) (Page[W], error)
	Translate func(item W) (T, error)
}

// FetchPage calls Fetch.
func (s SourceFuncs[W, T]) FetchPage(ctx context.Context, request PageRequest) (Page[W], error) {
	if s.Fetch == nil {
		return Page[W]{}, fmt.Errorf("fetch page: nil fetch func")
	}

	return s.Fetch(ctx, request)
}

// Decode calls Translate.
func (s SourceFuncs[W, T]) Decode(item W) (T, error) {
	if s.Translate == nil {
		var zero T
		return zero, fmt.Errorf("decode: nil translate func")
	}

	return s.Translate(item)
}

// Phase is the coarse pagination state of a context.
type Phase string

const (
	// PhaseEmpty means no page has been fetched yet.
	PhaseEmpty Phase = "empty"
	// PhaseLoading means a fetch is in flight.
	PhaseLoading Phase = "loading"
	// PhasePartial means at least one page was fetched and more exist.
	PhasePartial Phase = "partial"
	// PhaseComplete means the list is exhausted.
	PhaseComplete Phase = "complete"
)

// State is an immutable snapshot of an accumulated list.
type State[T any] struct {
	// Items is the accumulation in server order.
	Items []T `json:"items"`
	// TotalCountEstimate is never below len(Items).
	TotalCountEstimate int `json:"total_count_estimate"`
	// IsLoadingMore is set while a fetch is in flight.
	IsLoadingMore bool `json:"is_loading_more"`
	// HasLoadedOnce is set after the first page or a fresh cache seed.
	HasLoadedOnce bool `json:"has_loaded_once"`
	// CanLoadMore is false once the list is exhausted.
	CanLoadMore bool `json:"can_load_more"`
	// FromCache is set while the items come only from a persisted envelope.
	FromCache bool `json:"from_cache"`
}

// Phase derives the pagination phase from state flags.
func (s State[T]) Phase() Phase {
	switch {
	case s.IsLoadingMore:
		return PhaseLoading
	case !s.HasLoadedOnce:
		return PhaseEmpty
	case s.CanLoadMore:
		return PhasePartial
	default:
		return PhaseComplete
	}
}

// clone copies the item slice so published snapshots never alias owner state.
func (s State[T]) clone() State[T] {
	cloned := s
	cloned.Items = append([]T(nil), s.Items...)

	return cloned
}
