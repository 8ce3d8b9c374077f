package pulse

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelRef identifies one broadcast channel.
type ChannelRef struct {
	// ID is the platform channel identifier.
	ID int64 `json:"id"`
	// Username is the public handle without the leading @, when known.
	Username string `json:"username,omitempty"`
	// Title is the display title, when known.
	Title string `json:"title,omitempty"`
}

// Validate checks that the reference carries a platform identifier.
func (c ChannelRef) Validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("validate channel %q: %w", c.Username, ErrInvalidChannel)
	}

	return nil
}

// CacheKey derives a stable blob store key for one cached list of this channel.
func (c ChannelRef) CacheKey(scope string, parts ...string) string {
	segments := make([]string, 0, len(parts)+2)
	segments = append(segments, scope, strconv.FormatInt(c.ID, 10))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}

	return strings.Join(segments, ":")
}

// NormalizeUsername strips URL prefixes and the leading @ from a channel handle.
func NormalizeUsername(raw string) string {
	trimmed := strings.TrimSpace(raw)
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		trimmed = strings.TrimPrefix(trimmed, prefix)
	}
	trimmed = strings.TrimPrefix(trimmed, "@")
	if idx := strings.IndexAny(trimmed, "/?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}

	return strings.ToLower(trimmed)
}
