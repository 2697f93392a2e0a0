package secret

import "errors"

var (
	// ErrMissingEnv is returned when a required environment variable is unset.
	ErrMissingEnv = errors.New("secret: missing environment variable")

	// ErrProviderNotRegistered is returned for a reference to an unknown provider.
	ErrProviderNotRegistered = errors.New("secret: provider not registered")

	// ErrEmptySecret is returned by a strict resolver when a secret is empty.
	ErrEmptySecret = errors.New("secret: empty secret value")
)
