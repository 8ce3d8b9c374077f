package revenue

import (
	"log/slog"

	"chanpulse/pkg/livecache"
)

// Option mutates revenue context configuration.
type Option func(*config)

type config struct {
	store  livecache.BlobStore
	engine []livecache.Option
}

// WithBlobStore persists state under a channel scoped key.
func WithBlobStore(store livecache.BlobStore) Option {
	return func(cfg *config) {
		if store != nil {
			cfg.store = store
		}
	}
}

// WithLogger injects the logger used by the context.
func WithLogger(logger *slog.Logger) Option {
	return WithCacheOptions(livecache.WithLogger(logger))
}

// WithCacheOptions forwards engine options such as clock, meter or limits.
func WithCacheOptions(options ...livecache.Option) Option {
	return func(cfg *config) {
		cfg.engine = append(cfg.engine, options...)
	}
}
