// Package server exposes the dispatcher over HTTP.
//
// Routes:
//
//	GET  /                 static liveness string
//	POST /api/email/send   submit a message and wait for its result
//	POST /send             alias of the send path
//	GET  /healthz, /readyz, /health, /health/{name}
//	GET  /metrics          Prometheus exposition
//
// A successful send answers 200 with the delivery result. Malformed or
// invalid requests answer 400, ingress throttling 429, and any admission or
// delivery failure 500 with {"error": message}.
package server
