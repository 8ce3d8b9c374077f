// Package boosters keeps the boost and gift lists of one channel as two
// independent paginated live caches.
//
// Both lists share a channel but never a cursor: loading more gifts does not move
// the boosts cursor. Reload restarts a list from its first page while the
// previous items stay visible.
package boosters
