// Package observe provides observability primitives for email delivery.
//
// It wraps provider send calls with OpenTelemetry spans and metrics and
// writes JSON structured logs, optionally to a rotating file. Consumers build
// an Observer from Config and wire its Middleware around each provider.
package observe
