package cache

import (
	"context"
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Cache stores values by key with expiry and capacity governed by a Policy.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get never errors; it returns the zero value and false on miss.
// - Set rejects keys that fail ValidateKey.
type Cache[V any] interface {
	// Get retrieves a value. Returns (zero, false) on miss or expiry.
	Get(ctx context.Context, key string) (V, bool)

	// Set stores a value under the policy TTL, evicting the oldest entry
	// when the cache is full.
	Set(ctx context.Context, key string, value V) error

	// Delete removes a value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// Len returns the number of stored entries, including any expired
	// entries not yet swept.
	Len() int
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
