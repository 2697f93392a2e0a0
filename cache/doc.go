// Package cache provides the idempotency store for delivered messages.
//
// It provides a generic Cache interface with a memory implementation bounded
// by TTL and capacity, and SHA-256 fingerprints over canonical JSON so that
// structurally identical requests share a key.
package cache
