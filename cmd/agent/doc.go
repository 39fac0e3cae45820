// Command telemetry-agent runs reporting cycles against a collector.
//
// The run command reports every --interval until interrupted. With
// --status-addr it serves the last work item on /status; GET /drain pauses
// reporting until /undrain and completes once no cycle is in flight. With
// --metrics-addr it exports cycle outcomes to Prometheus. The once command
// runs a single cycle and maps its outcome to the exit code: 0 success,
// 75 retryable, 1 fatal.
package main
