package channelstats

import (
	"context"
	"fmt"

	"chanpulse/pkg/livecache"
	"chanpulse/pkg/pulse"
)

const cacheScope = "channelstats"

// Context is the cached statistics summary of one channel.
type Context struct {
	*livecache.Snapshot[pulse.ChannelStats]

	channel pulse.ChannelRef
}

// New creates the statistics context for channel, seeded from a fresh envelope.
func New(
	ctx context.Context,
	channel pulse.ChannelRef,
	fetch livecache.FetchFunc[pulse.ChannelStats],
	options ...Option,
) (*Context, error) {
	if err := channel.Validate(); err != nil {
		return nil, fmt.Errorf("new channel stats context: %w", err)
	}

	cfg := config{}
	for _, option := range options {
		option(&cfg)
	}

	key := channel.CacheKey(cacheScope)
	engine := append([]livecache.Option(nil), cfg.engine...)
	engine = append(engine, livecache.WithName(key))
	if cfg.store != nil {
		engine = append(engine, livecache.WithBlobStore(cfg.store, key))
	}

	snapshot, err := livecache.NewSnapshot(ctx, fetch, engine...)
	if err != nil {
		return nil, fmt.Errorf("new channel stats context %d: %w", channel.ID, err)
	}

	return &Context{Snapshot: snapshot, channel: channel}, nil
}

// Channel returns the channel this context serves.
func (c *Context) Channel() pulse.ChannelRef {
	return c.channel
}

// Highlights are the headline changes of a statistics period.
type Highlights struct {
	FollowersDelta     float64 `json:"followers_delta"`
	ViewsPerPostDelta  float64 `json:"views_per_post_delta"`
	SharesPerPostDelta float64 `json:"shares_per_post_delta"`
	NotificationsRatio float64 `json:"notifications_ratio"`
}

// Highlight derives the headline changes from stats.
func Highlight(stats pulse.ChannelStats) Highlights {
	return Highlights{
		FollowersDelta:     stats.Followers.Delta(),
		ViewsPerPostDelta:  stats.ViewsPerPost.Delta(),
		SharesPerPostDelta: stats.SharesPerPost.Delta(),
		NotificationsRatio: stats.EnabledNotifications.Ratio(),
	}
}
