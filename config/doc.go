// Package config loads service configuration.
//
// Values are layered, later sources winning:
//
//  1. defaults from Default
//  2. an optional YAML file, with ${VAR} references expanded strictly
//  3. environment variables prefixed MAILDISPATCH_, with "__" separating
//     nested keys (MAILDISPATCH_DISPATCH__RATELIMIT__MAXREQUESTS=50)
//
// PORT is honored as a shorthand for server.port when no other source sets it.
//
// LoadDotEnv reads a .env file into the environment before Load runs.
package config
