package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/telemetry-envelope/interfaces"
)

// CycleRunner is the reporter as seen by the scheduler.
type CycleRunner interface {
	RunCycle(ctx context.Context) interfaces.CycleResult
}

// CycleMetrics counts reporting cycles of the agent. Every attempt is
// counted, retries included.
type CycleMetrics struct {
	cycles      *prometheus.CounterVec
	sections    *prometheus.CounterVec
	lastSuccess prometheus.Gauge
}

func NewCycleMetrics(namespace string) *CycleMetrics {
	ns := Namespace(namespace)
	m := &CycleMetrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "agent",
			Name:      "cycles_total",
			Help:      "Reporting cycles by outcome.",
		}, []string{"outcome"}),
		sections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "agent",
			Name:      "sections_total",
			Help:      "Optional sections by result.",
		}, []string{"section", "result"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "agent",
			Name:      "last_success_timestamp_seconds",
			Help:      "Cycle timestamp of the last successful cycle.",
		}),
	}

	// Export zeros before the first cycle.
	for _, outcome := range []interfaces.Outcome{interfaces.Success, interfaces.RetryableFailure, interfaces.FatalFailure} {
		m.cycles.WithLabelValues(outcome.String())
	}
	for _, section := range interfaces.OptionalSections {
		m.sections.WithLabelValues(section.String(), "sent")
		m.sections.WithLabelValues(section.String(), "failed")
	}
	return m
}

func (m *CycleMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.cycles.Describe(ch)
	m.sections.Describe(ch)
	m.lastSuccess.Describe(ch)
}

func (m *CycleMetrics) Collect(ch chan<- prometheus.Metric) {
	m.cycles.Collect(ch)
	m.sections.Collect(ch)
	m.lastSuccess.Collect(ch)
}

// Observe records one finished cycle.
func (m *CycleMetrics) Observe(result interfaces.CycleResult) {
	m.cycles.WithLabelValues(result.Outcome.String()).Inc()
	for _, section := range result.Sent {
		m.sections.WithLabelValues(section.String(), "sent").Inc()
	}
	for _, section := range result.Failed {
		m.sections.WithLabelValues(section.String(), "failed").Inc()
	}
	if result.Outcome == interfaces.Success {
		m.lastSuccess.Set(float64(result.Timestamp) / 1000)
	}
}

// Instrument wraps runner so every cycle it runs is observed.
func (m *CycleMetrics) Instrument(runner CycleRunner) *InstrumentedRunner {
	return &InstrumentedRunner{runner: runner, metrics: m}
}

type InstrumentedRunner struct {
	runner  CycleRunner
	metrics *CycleMetrics
}

func (r *InstrumentedRunner) RunCycle(ctx context.Context) interfaces.CycleResult {
	result := r.runner.RunCycle(ctx)
	r.metrics.Observe(result)
	return result
}
