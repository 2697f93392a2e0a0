package provider

import "errors"

// Sentinel errors for provider operations.
var (
	// ErrProviderFailure is returned when a single provider fails to send.
	ErrProviderFailure = errors.New("provider: send failed")

	// ErrAllProvidersFailed is returned when every provider in the pool failed.
	// The returned error also wraps each provider's individual error.
	ErrAllProvidersFailed = errors.New("provider: all providers failed")

	// ErrNoProviders is returned when a pool is created without providers.
	ErrNoProviders = errors.New("provider: no providers configured")

	// ErrDuplicateName is returned when two pool members share a name.
	ErrDuplicateName = errors.New("provider: duplicate provider name")

	// ErrInvalidConfig is returned for an invalid provider configuration.
	ErrInvalidConfig = errors.New("provider: invalid configuration")
)
