// Package channelstats caches the broadcast statistics summary of one channel.
package channelstats
