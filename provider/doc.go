// Package provider defines the email delivery capability and the ordered
// failover pool that guards each provider with its own circuit breaker.
//
// Three providers are included: Simulated, which fails with a configured
// probability after a random delay; SMTP, backed by go-mail; and Func,
// which adapts a plain function.
package provider
