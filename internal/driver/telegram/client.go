package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chanpulse/pkg/pulse"

	"github.com/gotd/td/tg"
)

const defaultRPCTimeout = 15 * time.Second

// API is the subset of the gotd RPC client used for channel analytics.
type API interface {
	ContactsResolveUsername(ctx context.Context, request *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	PremiumGetBoostsList(ctx context.Context, request *tg.PremiumGetBoostsListRequest) (*tg.PremiumBoostsList, error)
	PaymentsGetStarsTransactions(ctx context.Context, request *tg.PaymentsGetStarsTransactionsRequest) (*tg.PaymentsStarsStatus, error)
	MessagesGetSponsoredMessages(ctx context.Context, request *tg.MessagesGetSponsoredMessagesRequest) (tg.MessagesSponsoredMessagesClass, error)
	StatsGetBroadcastStats(ctx context.Context, request *tg.StatsGetBroadcastStatsRequest) (*tg.StatsBroadcastStats, error)
}

var _ API = (*tg.Client)(nil)

// ClientOption mutates Client configuration.
type ClientOption func(*Client)

// WithClientLogger injects the logger used for resolution diagnostics.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithPeerCache shares a peer cache between clients.
func WithPeerCache(peers *PeerCache) ClientOption {
	return func(client *Client) {
		if peers != nil {
			client.peers = peers
		}
	}
}

// WithRPCTimeout bounds each remote call.
func WithRPCTimeout(timeout time.Duration) ClientOption {
	return func(client *Client) {
		if timeout > 0 {
			client.rpcTimeout = timeout
		}
	}
}

// Client resolves channels and builds page sources over one gotd API.
type Client struct {
	api        API
	peers      *PeerCache
	logger     *slog.Logger
	rpcTimeout time.Duration
}

// NewClient creates a client over api.
func NewClient(api API, options ...ClientOption) (*Client, error) {
	if api == nil {
		return nil, fmt.Errorf("new telegram client: nil api")
	}

	client := &Client{
		api:        api,
		peers:      NewPeerCache(),
		logger:     slog.Default(),
		rpcTimeout: defaultRPCTimeout,
	}
	for _, option := range options {
		option(client)
	}

	return client, nil
}

// Peers returns the channel peer cache.
func (c *Client) Peers() *PeerCache {
	return c.peers
}

// ResolveChannel resolves a public channel handle or t.me link.
func (c *Client) ResolveChannel(ctx context.Context, handle string) (pulse.ChannelRef, error) {
	username := pulse.NormalizeUsername(handle)
	if username == "" {
		return pulse.ChannelRef{}, fmt.Errorf("resolve channel %q: %w", handle, pulse.ErrInvalidChannel)
	}
	if ref, ok := c.peers.LookupUsername(username); ok {
		return ref, nil
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resolved, err := c.api.ContactsResolveUsername(callCtx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		mapped := c.rpcFailure("contacts.resolveUsername", err)
		if IsPermanent(mapped) {
			return pulse.ChannelRef{}, fmt.Errorf("resolve channel %q: %w: %w", username, pulse.ErrChannelNotFound, mapped)
		}
		return pulse.ChannelRef{}, mapped
	}

	peer, isChannel := resolved.Peer.(*tg.PeerChannel)
	for _, chat := range resolved.Chats {
		channel, ok := chat.(*tg.Channel)
		if !ok {
			continue
		}
		if isChannel && channel.ID != peer.ChannelID {
			continue
		}
		if !channel.Broadcast {
			c.logger.Debug("telegram resolved chat is not a broadcast channel", "username", username, "channel_id", channel.ID)
		}
		ref, _ := c.peers.RememberChannel(channel)
		if ref.Username == "" {
			ref.Username = username
		}
		return ref, nil
	}

	return pulse.ChannelRef{}, fmt.Errorf("resolve channel %q: %w", username, pulse.ErrChannelNotFound)
}

// rpcFailure maps err and logs how the failed call may be retried.
func (c *Client) rpcFailure(operation string, err error) error {
	mapped := mapRPCError(operation, err)

	var rpcErr *RPCError
	if errors.As(mapped, &rpcErr) {
		c.logger.Warn("telegram rpc failed",
			"operation", operation,
			"kind", rpcErr.Kind,
			"code", rpcErr.Code,
			"retryable", rpcErr.Retryable(),
			"retry_after", rpcErr.RetryAfter,
			"error", rpcErr.Cause,
		)
	}

	return mapped
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.rpcTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.rpcTimeout)
}
