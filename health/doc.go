// Package health reports the health of the dispatch service and serves it
// over HTTP.
//
// A Checker reports one component's Status: Healthy, Degraded or Unhealthy.
// An Aggregator runs a set of checkers under a shared timeout, and
// RegisterHandlers mounts liveness, readiness and detailed endpoints on a
// chi router:
//
//	agg := health.NewAggregator()
//	agg.Register("providers", dispatch.ProviderChecker(pool))
//	agg.Register("runtime", health.NewRuntimeChecker(health.RuntimeCheckerConfig{}))
//
//	r := chi.NewRouter()
//	health.RegisterHandlers(r, agg)
//
// Degraded components keep the service ready: a pool with one open circuit
// still delivers through failover.
package health
