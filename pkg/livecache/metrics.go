package livecache

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "chanpulse/pkg/livecache"

// instruments counts failures that are swallowed before reaching observers.
type instruments struct {
	pages         metric.Int64Counter
	fetchFailures metric.Int64Counter
	decodeDrops   metric.Int64Counter
	cacheCorrupt  metric.Int64Counter
}

func defaultMeter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// newInstruments creates counters on meter. Instrument creation errors leave the
// counter nil, which record treats as a no-op.
func newInstruments(meter metric.Meter) instruments {
	if meter == nil {
		meter = defaultMeter()
	}

	var out instruments
	out.pages, _ = meter.Int64Counter(
		"livecache.pages",
		metric.WithDescription("Remote pages merged into an accumulation."),
	)
	out.fetchFailures, _ = meter.Int64Counter(
		"livecache.fetch.failures",
		metric.WithDescription("Remote fetches degraded to empty results."),
	)
	out.decodeDrops, _ = meter.Int64Counter(
		"livecache.decode.drops",
		metric.WithDescription("Wire items dropped because they failed to decode."),
	)
	out.cacheCorrupt, _ = meter.Int64Counter(
		"livecache.cache.corrupt",
		metric.WithDescription("Persisted envelopes treated as misses because they failed to decode."),
	)

	return out
}

func record(ctx context.Context, counter metric.Int64Counter, name string, value int64) {
	if counter == nil || value <= 0 {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attribute.String("context", name)))
}
