// Package telegram adapts a gotd user session to the channel analytics engine.
//
// Runtime owns the session and login flow. Client resolves channels into cached
// input peers and builds one page source per analytics list. The decoders are pure
// functions from gotd wire objects to pulse domain values.
package telegram
