package livecache

import "errors"

var (
	// ErrTransport classifies a failed remote fetch.
	ErrTransport = errors.New("livecache: transport failure")
	// ErrDecode classifies a wire item that could not be translated.
	ErrDecode = errors.New("livecache: decode failure")
	// ErrCacheCorrupt classifies a persisted envelope that failed to decode.
	ErrCacheCorrupt = errors.New("livecache: cache envelope corrupt")
	// ErrClosed indicates the context has been torn down.
	ErrClosed = errors.New("livecache: context closed")
)
