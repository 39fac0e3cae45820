// Package metrics serves Prometheus metrics for the agent and the
// collector on a separate listen address.
//
// The agent wraps its reporter with CycleMetrics.Instrument, exporting
// <ns>_agent_cycles_total{outcome} and <ns>_agent_sections_total{section,result}.
// The collector exports its Stats through CollectorStats as
// <ns>_collector_* counters.
package metrics
