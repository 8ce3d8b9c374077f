// Package blobstore provides livecache.BlobStore implementations: an in-memory
// store for tests and ephemeral runs, and a SQLite store for envelopes that must
// survive process restarts.
package blobstore
