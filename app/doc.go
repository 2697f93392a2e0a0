// Package app assembles a running mail dispatch service from a
// config.Config: telemetry, providers, the failover pool, the dispatcher,
// health checks and the HTTP server.
package app
