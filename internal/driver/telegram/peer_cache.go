package telegram

import (
	"fmt"
	"sync"

	"chanpulse/pkg/pulse"

	"github.com/gotd/td/tg"
)

// PeerCache stores resolved channel peers so page sources can address channels
// by their platform id.
type PeerCache struct {
	mu         sync.RWMutex
	byID       map[int64]*tg.InputPeerChannel
	byUsername map[string]pulse.ChannelRef
}

// NewPeerCache creates an empty, concurrency-safe channel peer cache.
func NewPeerCache() *PeerCache {
	return &PeerCache{
		byID:       make(map[int64]*tg.InputPeerChannel),
		byUsername: make(map[string]pulse.ChannelRef),
	}
}

// RememberChannel stores channel under its id and, when public, its username.
func (c *PeerCache) RememberChannel(channel *tg.Channel) (pulse.ChannelRef, bool) {
	if c == nil || channel == nil || channel.ID == 0 {
		return pulse.ChannelRef{}, false
	}

	ref := pulse.ChannelRef{
		ID:       channel.ID,
		Username: pulse.NormalizeUsername(channel.Username),
		Title:    channel.Title,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[channel.ID] = &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}
	if ref.Username != "" {
		c.byUsername[ref.Username] = ref
	}

	return ref, true
}

// LookupUsername returns a channel previously remembered under username.
func (c *PeerCache) LookupUsername(username string) (pulse.ChannelRef, bool) {
	if c == nil {
		return pulse.ChannelRef{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	ref, ok := c.byUsername[pulse.NormalizeUsername(username)]
	return ref, ok
}

// Resolve returns an input peer for channel.
func (c *PeerCache) Resolve(channel pulse.ChannelRef) (*tg.InputPeerChannel, error) {
	if c == nil {
		return nil, fmt.Errorf("resolve peer: nil cache")
	}
	if err := channel.Validate(); err != nil {
		return nil, fmt.Errorf("resolve peer: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	peer, ok := c.byID[channel.ID]
	if !ok {
		return nil, fmt.Errorf("resolve peer %d: %w", channel.ID, pulse.ErrChannelNotFound)
	}
	copyPeer := *peer

	return &copyPeer, nil
}

// ResolveChannel returns an input channel for channel.
func (c *PeerCache) ResolveChannel(channel pulse.ChannelRef) (*tg.InputChannel, error) {
	peer, err := c.Resolve(channel)
	if err != nil {
		return nil, err
	}

	return &tg.InputChannel{ChannelID: peer.ChannelID, AccessHash: peer.AccessHash}, nil
}
