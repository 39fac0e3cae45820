/*
Package httpserver implements the operational HTTP surface shared by the
telemetry agent and the collector.

# Endpoints

  - GET /livez: process liveness
  - GET /readyz: 200 while ready, 503 while drained
  - GET /status: JSON document from the configured StatusFunc, wrapped as
    {"ready": bool, "status": ...}. The agent serves its last work item
    (work id, attempts, cycle outcome, sent and failed sections); the
    collector serves its counters.
  - GET /drain, /undrain: toggle readiness. A drained agent skips
    scheduled cycles until undrained. The drain completes, and /status
    reports "drained": true, once Idle holds (the agent has no cycle in
    flight) or DrainDuration passes.
  - /debug/pprof: profiling, when EnablePprof is set

Every route goes through the flashbots httplogger slog middleware.

# Metrics

With MetricsAddr set, a second listener serves Prometheus /metrics: the Go
runtime and process collectors plus the configured Collectors (agent cycle
outcomes, collector counters; see package metrics). Either listener may be
used alone.

# Usage

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr: "127.0.0.1:8080",
		Log:        log,
		Status:     statusFunc,
	})
	srv.RunInBackground()
	defer srv.Shutdown()
*/
package httpserver
