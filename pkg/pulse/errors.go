package pulse

import "errors"

var (
	// ErrInvalidChannel indicates that a channel reference is incomplete.
	ErrInvalidChannel = errors.New("pulse: invalid channel reference")
	// ErrChannelNotFound indicates that a channel could not be resolved.
	ErrChannelNotFound = errors.New("pulse: channel not found")
	// ErrUnsupportedItem indicates a wire variant that has no domain mapping.
	ErrUnsupportedItem = errors.New("pulse: unsupported item variant")
)
