package admessages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"chanpulse/pkg/livecache"
	"chanpulse/pkg/pulse"
)

const (
	cacheScope = "admessages"
	seenPart   = "seen"
)

// Context is the sponsored message list of one channel.
type Context[W any] struct {
	*livecache.Context[W, pulse.AdMessage]

	channel pulse.ChannelRef
	store   livecache.BlobStore
	seenKey string
	logger  *slog.Logger

	mu   sync.RWMutex
	seen map[string]struct{}
}

// New creates the sponsored message context for channel.
func New[W any](
	ctx context.Context,
	channel pulse.ChannelRef,
	source livecache.Source[W, pulse.AdMessage],
	options ...Option,
) (*Context[W], error) {
	if err := channel.Validate(); err != nil {
		return nil, fmt.Errorf("new ad messages context: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("new ad messages context: nil source")
	}

	cfg := config{logger: slog.Default()}
	for _, option := range options {
		option(&cfg)
	}

	key := channel.CacheKey(cacheScope)
	engine := append([]livecache.Option(nil), cfg.engine...)
	engine = append(engine,
		livecache.WithName(key),
		livecache.WithReloadPolicy(livecache.ReloadReset),
	)
	if cfg.store != nil {
		engine = append(engine, livecache.WithBlobStore(cfg.store, key))
	}

	ads, err := livecache.New(ctx, source, engine...)
	if err != nil {
		return nil, fmt.Errorf("new ad messages context %d: %w", channel.ID, err)
	}

	c := &Context[W]{
		Context: ads,
		channel: channel,
		store:   cfg.store,
		seenKey: channel.CacheKey(cacheScope, seenPart),
		logger:  cfg.logger,
		seen:    make(map[string]struct{}),
	}
	c.loadSeen(ctx)

	return c, nil
}

// Channel returns the channel this context serves.
func (c *Context[W]) Channel() pulse.ChannelRef {
	return c.channel
}

// Remove drops the ad with opaqueID from the list and the persisted envelope.
// It reports whether the ad was present.
func (c *Context[W]) Remove(opaqueID string) bool {
	opaqueID = strings.TrimSpace(opaqueID)
	if opaqueID == "" {
		return false
	}

	return c.MarkRemoved(func(ad pulse.AdMessage) bool {
		return ad.OpaqueID == opaqueID
	})
}

// MarkSeen records that the ads with opaqueIDs were shown. With a blob store the
// seen set is rewritten once per call that adds an ID, so it survives restarts.
func (c *Context[W]) MarkSeen(ctx context.Context, opaqueIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := false
	for _, opaqueID := range opaqueIDs {
		opaqueID = strings.TrimSpace(opaqueID)
		if opaqueID == "" {
			continue
		}
		if _, found := c.seen[opaqueID]; found {
			continue
		}
		c.seen[opaqueID] = struct{}{}
		added = true
	}
	if !added || c.store == nil {
		return nil
	}

	ids := make([]string, 0, len(c.seen))
	for opaqueID := range c.seen {
		ids = append(ids, opaqueID)
	}
	slices.Sort(ids)

	payload, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("mark seen %s: %w", c.seenKey, err)
	}
	envelope := livecache.Envelope{CapturedAt: time.Now().UTC(), Payload: payload}
	if err := c.store.Put(ctx, c.seenKey, envelope); err != nil {
		return fmt.Errorf("mark seen %s: %w", c.seenKey, err)
	}

	return nil
}

// Seen reports whether MarkSeen was called for opaqueID.
func (c *Context[W]) Seen(opaqueID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, found := c.seen[opaqueID]
	return found
}

// Unseen returns the ads in state not marked seen, in list order.
func (c *Context[W]) Unseen(state livecache.State[pulse.AdMessage]) []pulse.AdMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	unseen := make([]pulse.AdMessage, 0, len(state.Items))
	for _, ad := range state.Items {
		if _, found := c.seen[ad.OpaqueID]; !found {
			unseen = append(unseen, ad)
		}
	}

	return unseen
}

// loadSeen restores the persisted seen set. A missing or unreadable set starts empty.
func (c *Context[W]) loadSeen(ctx context.Context) {
	if c.store == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	envelope, found, err := c.store.Get(ctx, c.seenKey)
	if err != nil {
		c.logger.Warn("admessages seen set read failed", "key", c.seenKey, "error", err)
		return
	}
	if !found {
		return
	}

	var ids []string
	if err := json.Unmarshal(envelope.Payload, &ids); err != nil {
		c.logger.Warn("admessages seen set ignored", "key", c.seenKey, "error", err)
		return
	}
	for _, opaqueID := range ids {
		if opaqueID != "" {
			c.seen[opaqueID] = struct{}{}
		}
	}
}
