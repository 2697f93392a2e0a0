package config

import "errors"

var (
	// ErrInvalidConfig is wrapped by every Validate error.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrUnknownProviderType is returned for a provider type other than
	// simulated or smtp.
	ErrUnknownProviderType = errors.New("config: unknown provider type")
)
