package livecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultFreshness is how long a persisted envelope may seed a context.
const DefaultFreshness = 5 * time.Minute

// Envelope is a timestamped snapshot persisted in a BlobStore.
type Envelope struct {
	// CapturedAt records when the payload was produced.
	CapturedAt time.Time
	// Payload is the encoded snapshot.
	Payload []byte
}

// Fresh reports whether the envelope is still inside the freshness window at now.
func (e Envelope) Fresh(now time.Time, window time.Duration) bool {
	if e.CapturedAt.IsZero() {
		return false
	}
	if window <= 0 {
		return true
	}

	return now.Sub(e.CapturedAt) < window
}

// BlobStore persists envelopes under stable keys.
//
// Implementations must be concurrency-safe. A missing key is reported as found=false
// with a nil error.
type BlobStore interface {
	// Get returns the envelope stored under key.
	Get(ctx context.Context, key string) (envelope Envelope, found bool, err error)
	// Put replaces the envelope stored under key.
	Put(ctx context.Context, key string, envelope Envelope) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// listPayload is the persisted form of an accumulated list.
type listPayload[T any] struct {
	Items       []T    `json:"items"`
	TotalCount  int    `json:"total_count"`
	Cursor      Cursor `json:"cursor"`
	CanLoadMore bool   `json:"can_load_more"`
}

func encodeListPayload[T any](payload listPayload[T]) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode list payload: %w", err)
	}

	return data, nil
}

func decodeListPayload[T any](data []byte) (listPayload[T], error) {
	var payload listPayload[T]
	if err := json.Unmarshal(data, &payload); err != nil {
		return listPayload[T]{}, fmt.Errorf("decode list payload: %w: %w", ErrCacheCorrupt, err)
	}
	if payload.TotalCount < len(payload.Items) {
		payload.TotalCount = len(payload.Items)
	}

	return payload, nil
}

func encodeValue[T any](value T) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot value: %w", err)
	}

	return data, nil
}

func decodeValue[T any](data []byte) (T, error) {
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		var zero T
		return zero, fmt.Errorf("decode snapshot value: %w: %w", ErrCacheCorrupt, err)
	}

	return value, nil
}

// loadFreshEnvelope reads key and returns the envelope only when it is fresh.
// Store errors are returned so the caller can report them; stale entries are misses.
func loadFreshEnvelope(
	ctx context.Context,
	store BlobStore,
	key string,
	now time.Time,
	window time.Duration,
) (Envelope, bool, error) {
	if store == nil || key == "" {
		return Envelope{}, false, nil
	}

	envelope, found, err := store.Get(ctx, key)
	if err != nil {
		return Envelope{}, false, fmt.Errorf("get envelope %s: %w", key, err)
	}
	if !found || !envelope.Fresh(now, window) {
		return Envelope{}, false, nil
	}

	return envelope, true, nil
}
