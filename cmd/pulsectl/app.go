package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chanpulse/internal/blobstore"
	"chanpulse/internal/driver/telegram"
	"chanpulse/modules/admessages"
	"chanpulse/modules/boosters"
	"chanpulse/modules/channelstats"
	"chanpulse/modules/revenue"
	"chanpulse/pkg/livecache"
	"chanpulse/pkg/pulse"

	"github.com/gotd/td/tg"
)

const defaultMaxPages = 4

const usage = `usage: pulsectl [flags] <boosts|gifts|transactions|ads|stats> <channel>

Prints one JSON line per published state of the selected channel list.
`

type command string

const (
	commandBoosts       command = "boosts"
	commandGifts        command = "gifts"
	commandTransactions command = "transactions"
	commandAds          command = "ads"
	commandStats        command = "stats"
)

type invocation struct {
	command  command
	channel  string
	maxPages int
	reload   bool
}

func parseInvocation(args []string, output io.Writer) (invocation, error) {
	flags := flag.NewFlagSet("pulsectl", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.Usage = func() {
		fmt.Fprint(output, usage)
		flags.PrintDefaults()
	}
	maxPages := flags.Int("pages", defaultMaxPages, "maximum number of pages to load")
	reload := flags.Bool("reload", false, "restart the list from the server instead of continuing a cached one")
	if err := flags.Parse(args); err != nil {
		return invocation{}, err
	}

	if flags.NArg() != 2 {
		flags.Usage()
		return invocation{}, fmt.Errorf("expected a command and a channel, got %d arguments", flags.NArg())
	}
	if *maxPages <= 0 {
		return invocation{}, fmt.Errorf("pages must be > 0")
	}

	parsed := invocation{
		command:  command(strings.ToLower(flags.Arg(0))),
		channel:  strings.TrimSpace(flags.Arg(1)),
		maxPages: *maxPages,
		reload:   *reload,
	}
	switch parsed.command {
	case commandBoosts, commandGifts, commandTransactions, commandAds, commandStats:
	default:
		return invocation{}, fmt.Errorf("unknown command %q", flags.Arg(0))
	}
	if pulse.NormalizeUsername(parsed.channel) == "" {
		return invocation{}, fmt.Errorf("channel is required")
	}

	return parsed, nil
}

func run(args []string) error {
	call, err := parseInvocation(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse arguments: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	store, err := blobstore.Open(cfg.cacheDriver, cfg.cachePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close blob store failed", "error", err)
		}
	}()

	runtime, err := telegram.NewRuntime(cfg.telegram, logger)
	if err != nil {
		return fmt.Errorf("new telegram runtime: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pruneExpired(ctx, logger, store, time.Now().Add(-cfg.retention))

	current := &session{
		cfg:    cfg,
		logger: logger,
		store:  store,
		out:    json.NewEncoder(os.Stdout),
	}
	err = runtime.Run(ctx, func(runCtx context.Context, client *telegram.Client) error {
		return current.execute(runCtx, client, call)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run %s: %w", call.command, err)
	}

	return nil
}

// session drives one command against a connected client.
type session struct {
	cfg    appConfig
	logger *slog.Logger
	store  livecache.BlobStore
	out    *json.Encoder
}

type record struct {
	Command string           `json:"command"`
	Channel pulse.ChannelRef `json:"channel"`
	Phase   livecache.Phase  `json:"phase,omitempty"`
	State   any              `json:"state"`
	Summary any              `json:"summary,omitempty"`
}

func (s *session) engineOptions() []livecache.Option {
	return []livecache.Option{
		livecache.WithLogger(s.logger),
		livecache.WithFreshness(s.cfg.freshness),
		livecache.WithFetchTimeout(s.cfg.fetchTimeout),
	}
}

func (s *session) execute(ctx context.Context, client *telegram.Client, call invocation) error {
	channel, err := client.ResolveChannel(ctx, call.channel)
	if err != nil {
		return fmt.Errorf("resolve channel %s: %w", call.channel, err)
	}
	s.logger.Info("channel resolved", "channel_id", channel.ID, "username", channel.Username)

	switch call.command {
	case commandBoosts, commandGifts:
		return s.boosters(ctx, client, channel, call)
	case commandTransactions:
		return s.transactions(ctx, client, channel, call)
	case commandAds:
		return s.ads(ctx, client, channel, call)
	case commandStats:
		return s.stats(ctx, client, channel, call)
	default:
		return fmt.Errorf("unknown command %q", call.command)
	}
}

func (s *session) boosters(ctx context.Context, client *telegram.Client, channel pulse.ChannelRef, call invocation) error {
	boosts, err := client.BoostsSource(channel, false)
	if err != nil {
		return err
	}
	gifts, err := client.BoostsSource(channel, true)
	if err != nil {
		return err
	}

	lists, err := boosters.New[tg.Boost](ctx, channel, boosts, gifts,
		boosters.WithBlobStore(s.store),
		boosters.WithCacheOptions(s.engineOptions()...),
	)
	if err != nil {
		return err
	}
	defer closeContext(s.logger, lists)

	list := lists.Boosts()
	if call.command == commandGifts {
		list = lists.Gifts()
	}

	return drive(ctx, list, call, func(state livecache.State[pulse.Booster]) error {
		return s.emit(call, channel, state.Phase(), state, boosters.Tally(state))
	})
}

func (s *session) transactions(ctx context.Context, client *telegram.Client, channel pulse.ChannelRef, call invocation) error {
	source, err := client.StarsTransactionsSource(channel)
	if err != nil {
		return err
	}

	history, err := revenue.New[tg.StarsTransaction](ctx, channel, source,
		revenue.WithBlobStore(s.store),
		revenue.WithCacheOptions(s.engineOptions()...),
	)
	if err != nil {
		return err
	}
	defer closeContext(s.logger, history)

	return drive(ctx, history, call, func(state livecache.State[pulse.RevenueTransaction]) error {
		return s.emit(call, channel, state.Phase(), state, revenue.Summarize(state))
	})
}

func (s *session) ads(ctx context.Context, client *telegram.Client, channel pulse.ChannelRef, call invocation) error {
	source, err := client.SponsoredMessagesSource(channel)
	if err != nil {
		return err
	}

	ads, err := admessages.New[tg.SponsoredMessage](ctx, channel, source,
		admessages.WithBlobStore(s.store),
		admessages.WithLogger(s.logger),
		admessages.WithCacheOptions(s.engineOptions()...),
	)
	if err != nil {
		return err
	}
	defer closeContext(s.logger, ads)

	return drive(ctx, ads, call, func(state livecache.State[pulse.AdMessage]) error {
		unseen := ads.Unseen(state)
		ids := make([]string, 0, len(unseen))
		for _, ad := range unseen {
			ids = append(ids, ad.OpaqueID)
		}
		if err := ads.MarkSeen(ctx, ids...); err != nil {
			s.logger.Warn("persist seen ads failed", "channel_id", channel.ID, "error", err)
		}
		return s.emit(call, channel, state.Phase(), state, map[string]int{"unseen": len(unseen)})
	})
}

func (s *session) stats(ctx context.Context, client *telegram.Client, channel pulse.ChannelRef, call invocation) error {
	fetch, err := client.BroadcastStatsFetcher(channel)
	if err != nil {
		return err
	}

	snapshot, err := channelstats.New(ctx, channel, fetch,
		channelstats.WithBlobStore(s.store),
		channelstats.WithCacheOptions(s.engineOptions()...),
	)
	if err != nil {
		return err
	}
	defer snapshot.Close()

	load := snapshot.Get
	if call.reload {
		load = snapshot.Refresh
	}
	value, err := load(ctx)
	if err != nil {
		return err
	}

	return s.emit(call, channel, "", snapshot.State(), channelstats.Highlight(value))
}

func (s *session) emit(call invocation, channel pulse.ChannelRef, phase livecache.Phase, state any, summary any) error {
	if err := s.out.Encode(record{
		Command: string(call.command),
		Channel: channel,
		Phase:   phase,
		State:   state,
		Summary: summary,
	}); err != nil {
		return fmt.Errorf("write %s record: %w", call.command, err)
	}

	return nil
}

// pruneExpired drops envelopes captured before cutoff when store supports it.
func pruneExpired(ctx context.Context, logger *slog.Logger, store livecache.BlobStore, cutoff time.Time) {
	pruner, ok := store.(blobstore.Pruner)
	if !ok {
		return
	}

	removed, err := pruner.Prune(ctx, cutoff)
	if err != nil {
		logger.Warn("prune blob store failed", "error", err)
		return
	}
	logger.Debug("blob store pruned", "removed", removed, "cutoff", cutoff)
}

func closeContext(logger *slog.Logger, closer interface{ Close(context.Context) error }) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCloseTimeout)
	defer cancel()

	if err := closer.Close(ctx); err != nil {
		logger.Warn("close live cache failed", "error", err)
	}
}
