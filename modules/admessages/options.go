package admessages

import (
	"log/slog"

	"chanpulse/pkg/livecache"
)

// Option mutates admessages context configuration.
type Option func(*config)

type config struct {
	store  livecache.BlobStore
	logger *slog.Logger
	engine []livecache.Option
}

// WithBlobStore persists the list and the seen set under channel scoped keys.
func WithBlobStore(store livecache.BlobStore) Option {
	return func(cfg *config) {
		if store != nil {
			cfg.store = store
		}
	}
}

// WithLogger injects the logger used by the context.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
		cfg.engine = append(cfg.engine, livecache.WithLogger(logger))
	}
}

// WithCacheOptions forwards engine options such as clock, meter or limits.
func WithCacheOptions(options ...livecache.Option) Option {
	return func(cfg *config) {
		cfg.engine = append(cfg.engine, options...)
	}
}
