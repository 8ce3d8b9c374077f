package blobstore

import (
	"context"
	"fmt"
	"sync"

	"chanpulse/pkg/livecache"
)

// Memory is a concurrency-safe in-process envelope store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]livecache.Envelope
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]livecache.Envelope),
	}
}

// Get returns a copy of the envelope stored under key.
func (m *Memory) Get(ctx context.Context, key string) (livecache.Envelope, bool, error) {
	if err := ctx.Err(); err != nil {
		return livecache.Envelope{}, false, fmt.Errorf("memory get %s: %w", key, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	envelope, found := m.entries[key]
	if !found {
		return livecache.Envelope{}, false, nil
	}

	return cloneEnvelope(envelope), true, nil
}

// Put stores a copy of envelope under key.
func (m *Memory) Put(ctx context.Context, key string, envelope livecache.Envelope) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory put %s: %w", key, err)
	}
	if key == "" {
		return fmt.Errorf("memory put: empty key")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = cloneEnvelope(envelope)

	return nil
}

// Remove deletes key.
func (m *Memory) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory remove %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)

	return nil
}

func cloneEnvelope(envelope livecache.Envelope) livecache.Envelope {
	return livecache.Envelope{
		CapturedAt: envelope.CapturedAt,
		Payload:    append([]byte(nil), envelope.Payload...),
	}
}
