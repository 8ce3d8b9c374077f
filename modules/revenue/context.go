package revenue

import (
	"context"
	"fmt"

	"chanpulse/pkg/livecache"
	"chanpulse/pkg/pulse"
)

const (
	cacheScope = "revenue"
	cacheList  = "transactions"
)

// Context is the transaction history of one channel.
type Context[W any] struct {
	*livecache.Context[W, pulse.RevenueTransaction]

	channel pulse.ChannelRef
}

// New creates the transaction history context for channel.
func New[W any](
	ctx context.Context,
	channel pulse.ChannelRef,
	source livecache.Source[W, pulse.RevenueTransaction],
	options ...Option,
) (*Context[W], error) {
	if err := channel.Validate(); err != nil {
		return nil, fmt.Errorf("new revenue context: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("new revenue context: nil source")
	}

	cfg := config{}
	for _, option := range options {
		option(&cfg)
	}

	key := channel.CacheKey(cacheScope, cacheList)
	engine := append([]livecache.Option(nil), cfg.engine...)
	engine = append(engine,
		livecache.WithName(key),
		livecache.WithReloadPolicy(livecache.ReloadReset),
	)
	if cfg.store != nil {
		engine = append(engine, livecache.WithBlobStore(cfg.store, key))
	}

	transactions, err := livecache.New(ctx, source, engine...)
	if err != nil {
		return nil, fmt.Errorf("new revenue context %d: %w", channel.ID, err)
	}

	return &Context[W]{Context: transactions, channel: channel}, nil
}

// Channel returns the channel this context serves.
func (c *Context[W]) Channel() pulse.ChannelRef {
	return c.channel
}

// Summary summarizes the transactions loaded so far.
func (c *Context[W]) Summary() Summary {
	return Summarize(c.State())
}
