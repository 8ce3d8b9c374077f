package boosters

import (
	"context"
	"errors"
	"fmt"

	"chanpulse/pkg/livecache"
	"chanpulse/pkg/pulse"
)

const cacheScope = "boosters"

// List selects one of the two booster lists.
type List string

const (
	// ListBoosts is every boost applied to the channel.
	ListBoosts List = "boosts"
	// ListGifts is boosts obtained through gift codes and giveaways.
	ListGifts List = "gifts"
)

// Context owns the boosts and gifts lists of one channel.
type Context[W any] struct {
	channel pulse.ChannelRef
	boosts  *livecache.Context[W, pulse.Booster]
	gifts   *livecache.Context[W, pulse.Booster]
}

// New creates both lists for channel, each seeded from its own envelope.
func New[W any](
	ctx context.Context,
	channel pulse.ChannelRef,
	boosts livecache.Source[W, pulse.Booster],
	gifts livecache.Source[W, pulse.Booster],
	options ...Option,
) (*Context[W], error) {
	if err := channel.Validate(); err != nil {
		return nil, fmt.Errorf("new boosters context: %w", err)
	}
	if boosts == nil || gifts == nil {
		return nil, fmt.Errorf("new boosters context: nil source")
	}

	cfg := config{}
	for _, option := range options {
		option(&cfg)
	}

	boostList, err := livecache.New(ctx, boosts, listOptions(cfg, channel, ListBoosts)...)
	if err != nil {
		return nil, fmt.Errorf("new boosters context %d: %w", channel.ID, err)
	}
	giftList, err := livecache.New(ctx, gifts, listOptions(cfg, channel, ListGifts)...)
	if err != nil {
		_ = boostList.Close(ctx)
		return nil, fmt.Errorf("new boosters context %d: %w", channel.ID, err)
	}

	return &Context[W]{
		channel: channel,
		boosts:  boostList,
		gifts:   giftList,
	}, nil
}

func listOptions(cfg config, channel pulse.ChannelRef, list List) []livecache.Option {
	options := append([]livecache.Option(nil), cfg.engine...)
	options = append(options,
		livecache.WithName(channel.CacheKey(cacheScope, string(list))),
		livecache.WithReloadPolicy(livecache.ReloadReset),
	)
	if cfg.store != nil {
		options = append(options, livecache.WithBlobStore(cfg.store, channel.CacheKey(cacheScope, string(list))))
	}

	return options
}

// Channel returns the channel this context serves.
func (c *Context[W]) Channel() pulse.ChannelRef {
	return c.channel
}

// Boosts returns the list of every boost.
func (c *Context[W]) Boosts() *livecache.Context[W, pulse.Booster] {
	return c.boosts
}

// Gifts returns the list of gift and giveaway boosts.
func (c *Context[W]) Gifts() *livecache.Context[W, pulse.Booster] {
	return c.gifts
}

// List returns the list selected by name.
func (c *Context[W]) List(list List) (*livecache.Context[W, pulse.Booster], error) {
	switch list {
	case ListBoosts:
		return c.boosts, nil
	case ListGifts:
		return c.gifts, nil
	default:
		return nil, fmt.Errorf("boosters list %q: %w", list, pulse.ErrUnsupportedItem)
	}
}

// Close stops both lists.
func (c *Context[W]) Close(ctx context.Context) error {
	return errors.Join(c.boosts.Close(ctx), c.gifts.Close(ctx))
}
