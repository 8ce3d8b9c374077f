// Package livecache provides cache-backed remote list contexts that stream their
// state to observers.
//
// A Context accumulates a remote paginated list page by page. All mutation runs on
// one owner goroutine, at most one fetch is in flight, and every mutation is
// published to subscribers as an immutable State snapshot. Contexts can be seeded
// from an Envelope persisted in a BlobStore so that a fresh snapshot is visible
// before the first remote call resolves.
//
// A Snapshot is the single-value counterpart used for statistics screens: one
// remote call, one cached value, the same subscription semantics.
//
// Remote failures never reach observers. They degrade to empty pages or kept
// values and are reported through the configured slog logger and OpenTelemetry
// counters.
package livecache
