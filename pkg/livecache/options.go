package livecache

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

const (
	defaultInitialLimit    = 25
	defaultSubsequentLimit = 50
	defaultStoreTimeout    = 2 * time.Second
	defaultContextName     = "livecache"
)

// ReloadPolicy selects what Reload does once a page has been fetched.
type ReloadPolicy string

const (
	// ReloadContinue loads more from the current cursor.
	ReloadContinue ReloadPolicy = "continue"
	// ReloadReset refetches from the first page and replaces the accumulation
	// when that page lands. Previous items stay visible until then.
	ReloadReset ReloadPolicy = "reset"
)

// config stores resolved settings after option application.
type config struct {
	name            string
	logger          *slog.Logger
	clock           func() time.Time
	store           BlobStore
	key             string
	freshness       time.Duration
	initialLimit    int
	subsequentLimit int
	reloadPolicy    ReloadPolicy
	meter           metric.Meter
	fetchTimeout    time.Duration
	storeTimeout    time.Duration
}

// Option mutates context and snapshot configuration.
type Option func(*config)

func defaultConfig() config {
	return config{
		name:            defaultContextName,
		logger:          slog.Default(),
		clock:           time.Now,
		freshness:       DefaultFreshness,
		initialLimit:    defaultInitialLimit,
		subsequentLimit: defaultSubsequentLimit,
		reloadPolicy:    ReloadContinue,
		storeTimeout:    defaultStoreTimeout,
	}
}

// WithName sets the name used in logs and metric attributes.
func WithName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithLogger injects the logger used to report swallowed failures.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(cfg *config) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithBlobStore enables envelope persistence under key.
func WithBlobStore(store BlobStore, key string) Option {
	return func(cfg *config) {
		if store != nil && key != "" {
			cfg.store = store
			cfg.key = key
		}
	}
}

// WithFreshness sets the window during which a persisted envelope is trusted.
func WithFreshness(window time.Duration) Option {
	return func(cfg *config) {
		if window > 0 {
			cfg.freshness = window
		}
	}
}

// WithLimits sets the first page size and the size of every later page.
func WithLimits(initial, subsequent int) Option {
	return func(cfg *config) {
		if initial > 0 {
			cfg.initialLimit = initial
		}
		if subsequent > 0 {
			cfg.subsequentLimit = subsequent
		}
	}
}

// WithReloadPolicy selects Reload behavior after the first page.
func WithReloadPolicy(policy ReloadPolicy) Option {
	return func(cfg *config) {
		switch policy {
		case ReloadContinue, ReloadReset:
			cfg.reloadPolicy = policy
		}
	}
}

// WithMeter sets the OpenTelemetry meter for failure counters.
func WithMeter(meter metric.Meter) Option {
	return func(cfg *config) {
		if meter != nil {
			cfg.meter = meter
		}
	}
}

// WithFetchTimeout bounds each remote call. Zero leaves calls unbounded.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		if timeout > 0 {
			cfg.fetchTimeout = timeout
		}
	}
}

func (c config) now() time.Time {
	return c.clock().UTC()
}
