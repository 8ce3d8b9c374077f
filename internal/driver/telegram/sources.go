package telegram

import (
	"context"
	"fmt"

	"chanpulse/pkg/livecache"
	"chanpulse/pkg/pulse"

	"github.com/gotd/td/tg"
)

// BoostsSource pages through premium.getBoostsList for one channel.
type BoostsSource struct {
	client  *Client
	channel pulse.ChannelRef
	gifts   bool
}

// BoostsSource returns the boosts list source of channel. When gifts is set only
// gift and giveaway boosts are listed.
func (c *Client) BoostsSource(channel pulse.ChannelRef, gifts bool) (*BoostsSource, error) {
	if _, err := c.peers.Resolve(channel); err != nil {
		return nil, fmt.Errorf("boosts source: %w", err)
	}

	return &BoostsSource{client: c, channel: channel, gifts: gifts}, nil
}

// FetchPage implements livecache.Source.
func (s *BoostsSource) FetchPage(ctx context.Context, request livecache.PageRequest) (livecache.Page[tg.Boost], error) {
	peer, err := s.client.peers.Resolve(s.channel)
	if err != nil {
		return livecache.Page[tg.Boost]{}, err
	}

	callCtx, cancel := s.client.callContext(ctx)
	defer cancel()

	list, err := s.client.api.PremiumGetBoostsList(callCtx, &tg.PremiumGetBoostsListRequest{
		Gifts:  s.gifts,
		Peer:   peer,
		Offset: request.Cursor.Token,
		Limit:  request.Limit,
	})
	if err != nil {
		return livecache.Page[tg.Boost]{}, s.client.rpcFailure("premium.getBoostsList", err)
	}

	nextOffset, hasMore := list.GetNextOffset()
	return livecache.Page[tg.Boost]{
		Items:      list.Boosts,
		TotalCount: list.Count,
		NextToken:  nextOffset,
		HasMore:    hasMore && nextOffset != "",
	}, nil
}

// Decode implements livecache.Source.
func (s *BoostsSource) Decode(boost tg.Boost) (pulse.Booster, error) {
	return DecodeBoost(boost)
}

// StarsTransactionsSource pages through payments.getStarsTransactions for one channel.
type StarsTransactionsSource struct {
	client  *Client
	channel pulse.ChannelRef
}

// StarsTransactionsSource returns the revenue history source of channel.
func (c *Client) StarsTransactionsSource(channel pulse.ChannelRef) (*StarsTransactionsSource, error) {
	if _, err := c.peers.Resolve(channel); err != nil {
		return nil, fmt.Errorf("stars transactions source: %w", err)
	}

	return &StarsTransactionsSource{client: c, channel: channel}, nil
}

// FetchPage implements livecache.Source. The server reports no total, so the
// estimate is left to the accumulated count.
func (s *StarsTransactionsSource) FetchPage(
	ctx context.Context,
	request livecache.PageRequest,
) (livecache.Page[tg.StarsTransaction], error) {
	peer, err := s.client.peers.Resolve(s.channel)
	if err != nil {
		return livecache.Page[tg.StarsTransaction]{}, err
	}

	callCtx, cancel := s.client.callContext(ctx)
	defer cancel()

	status, err := s.client.api.PaymentsGetStarsTransactions(callCtx, &tg.PaymentsGetStarsTransactionsRequest{
		Peer:   peer,
		Offset: request.Cursor.Token,
		Limit:  request.Limit,
	})
	if err != nil {
		return livecache.Page[tg.StarsTransaction]{}, s.client.rpcFailure("payments.getStarsTransactions", err)
	}

	nextOffset, hasMore := status.GetNextOffset()
	return livecache.Page[tg.StarsTransaction]{
		Items:     status.History,
		NextToken: nextOffset,
		HasMore:   hasMore && nextOffset != "",
	}, nil
}

// Decode implements livecache.Source.
func (s *StarsTransactionsSource) Decode(transaction tg.StarsTransaction) (pulse.RevenueTransaction, error) {
	return DecodeStarsTransaction(transaction)
}

// SponsoredMessagesSource fetches messages.getSponsoredMessages for one channel.
// The server returns the whole set at once.
type SponsoredMessagesSource struct {
	client  *Client
	channel pulse.ChannelRef
}

// SponsoredMessagesSource returns the sponsored message source of channel.
func (c *Client) SponsoredMessagesSource(channel pulse.ChannelRef) (*SponsoredMessagesSource, error) {
	if _, err := c.peers.Resolve(channel); err != nil {
		return nil, fmt.Errorf("sponsored messages source: %w", err)
	}

	return &SponsoredMessagesSource{client: c, channel: channel}, nil
}

// FetchPage implements livecache.Source. Requests past the first page return an
// empty page.
func (s *SponsoredMessagesSource) FetchPage(
	ctx context.Context,
	request livecache.PageRequest,
) (livecache.Page[tg.SponsoredMessage], error) {
	if !request.Cursor.IsZero() {
		return livecache.Page[tg.SponsoredMessage]{}, nil
	}

	peer, err := s.client.peers.Resolve(s.channel)
	if err != nil {
		return livecache.Page[tg.SponsoredMessage]{}, err
	}

	callCtx, cancel := s.client.callContext(ctx)
	defer cancel()

	result, err := s.client.api.MessagesGetSponsoredMessages(callCtx, &tg.MessagesGetSponsoredMessagesRequest{Peer: peer})
	if err != nil {
		return livecache.Page[tg.SponsoredMessage]{}, s.client.rpcFailure("messages.getSponsoredMessages", err)
	}

	switch typed := result.(type) {
	case *tg.MessagesSponsoredMessages:
		return livecache.Page[tg.SponsoredMessage]{
			Items:      typed.Messages,
			TotalCount: len(typed.Messages),
		}, nil
	case *tg.MessagesSponsoredMessagesEmpty:
		return livecache.Page[tg.SponsoredMessage]{}, nil
	default:
		return livecache.Page[tg.SponsoredMessage]{}, fmt.Errorf("sponsored messages %T: %w", result, pulse.ErrUnsupportedItem)
	}
}

// Decode implements livecache.Source.
func (s *SponsoredMessagesSource) Decode(message tg.SponsoredMessage) (pulse.AdMessage, error) {
	return DecodeSponsoredMessage(message)
}

// BroadcastStatsFetcher returns the single-call fetch behind channel statistics.
func (c *Client) BroadcastStatsFetcher(channel pulse.ChannelRef) (livecache.FetchFunc[pulse.ChannelStats], error) {
	if _, err := c.peers.Resolve(channel); err != nil {
		return nil, fmt.Errorf("broadcast stats fetcher: %w", err)
	}

	return func(ctx context.Context) (pulse.ChannelStats, error) {
		input, err := c.peers.ResolveChannel(channel)
		if err != nil {
			return pulse.ChannelStats{}, err
		}

		callCtx, cancel := c.callContext(ctx)
		defer cancel()

		stats, err := c.api.StatsGetBroadcastStats(callCtx, &tg.StatsGetBroadcastStatsRequest{Channel: input})
		if err != nil {
			return pulse.ChannelStats{}, c.rpcFailure("stats.getBroadcastStats", err)
		}

		return DecodeBroadcastStats(stats)
	}, nil
}

var (
	_ livecache.Source[tg.Boost, pulse.Booster]                       = (*BoostsSource)(nil)
	_ livecache.Source[tg.StarsTransaction, pulse.RevenueTransaction] = (*StarsTransactionsSource)(nil)
	_ livecache.Source[tg.SponsoredMessage, pulse.AdMessage]          = (*SponsoredMessagesSource)(nil)
)
