// Package admessages keeps the sponsored messages shown in one channel.
//
// The server returns the whole set in one response, so the context completes after
// its first page. Removing an ad is local: it drops the entry from the cached list
// and rewrites the envelope without asking the server again.
package admessages
