package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/telemetry-envelope/collector"
	"github.com/ruteri/telemetry-envelope/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRunner struct {
	results []interfaces.CycleResult
	calls   int
}

func (r *scriptedRunner) RunCycle(context.Context) interfaces.CycleResult {
	result := r.results[r.calls]
	r.calls++
	return result
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "telemetry_envelope", Namespace("telemetry-envelope"))
	assert.Equal(t, "a_b_c", Namespace("a.b/c"))
}

func TestCycleMetrics(t *testing.T) {
	m := NewCycleMetrics("test")

	// all outcome series exist before the first cycle
	assert.Equal(t, 3, testutil.CollectAndCount(m, "test_agent_cycles_total"))
	assert.Zero(t, testutil.ToFloat64(m.cycles.WithLabelValues("success")))

	runner := m.Instrument(&scriptedRunner{results: []interfaces.CycleResult{
		{Outcome: interfaces.RetryableFailure, Timestamp: 1000, Err: interfaces.ErrPingSend},
		{
			Outcome:   interfaces.Success,
			Timestamp: 1700000000123,
			Sent:      []interfaces.Section{interfaces.SectionBattery, interfaces.SectionLocGPS},
			Failed:    []interfaces.Section{interfaces.SectionWifi},
		},
		{Outcome: interfaces.FatalFailure, Timestamp: 3000, Err: interfaces.ErrConfig},
	}})

	ctx := context.Background()
	assert.Equal(t, interfaces.RetryableFailure, runner.RunCycle(ctx).Outcome)
	assert.Equal(t, interfaces.Success, runner.RunCycle(ctx).Outcome)
	assert.Equal(t, interfaces.FatalFailure, runner.RunCycle(ctx).Outcome)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("retryable_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("fatal_failure")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sections.WithLabelValues("battery", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sections.WithLabelValues("loc_gps", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sections.WithLabelValues("wifi", "failed")))
	assert.Zero(t, testutil.ToFloat64(m.sections.WithLabelValues("conn_active", "sent")))

	// only the successful cycle moves the timestamp
	assert.Equal(t, 1700000000.123, testutil.ToFloat64(m.lastSuccess))
}

func TestCollectorStats(t *testing.T) {
	stats := collector.Stats{Received: 7, Accepted: 4, RejectedAuth: 2, RejectedFormat: 1, ArchiveErrors: 3}
	c := NewCollectorStats("test", func() collector.Stats { return stats })

	expected := `
# HELP test_collector_datagrams_received_total Datagrams received.
# TYPE test_collector_datagrams_received_total counter
test_collector_datagrams_received_total 7
# HELP test_collector_reports_accepted_total Datagrams that authenticated and decoded to a valid report.
# TYPE test_collector_reports_accepted_total counter
test_collector_reports_accepted_total 4
# HELP test_collector_datagrams_rejected_total Rejected datagrams by reason.
# TYPE test_collector_datagrams_rejected_total counter
test_collector_datagrams_rejected_total{reason="auth"} 2
test_collector_datagrams_rejected_total{reason="format"} 1
# HELP test_collector_archive_errors_total Failed archive writes.
# TYPE test_collector_archive_errors_total counter
test_collector_archive_errors_total 3
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))

	// values are read at scrape time
	stats.Received = 8
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP test_collector_datagrams_received_total Datagrams received.
# TYPE test_collector_datagrams_received_total counter
test_collector_datagrams_received_total 8
`), "test_collector_datagrams_received_total"))
}

func TestMetricsServerHandler(t *testing.T) {
	cycles := NewCycleMetrics("telemetry-envelope")
	srv, err := New("telemetry-envelope", "127.0.0.1:0", cycles)
	require.NoError(t, err)

	cycles.Observe(interfaces.CycleResult{Outcome: interfaces.Success, Timestamp: 1000})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `telemetry_envelope_agent_cycles_total{outcome="success"} 1`)
	assert.Contains(t, string(body), `telemetry_envelope_agent_cycles_total{outcome="fatal_failure"} 0`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewRejectsDuplicateCollectors(t *testing.T) {
	cycles := NewCycleMetrics("test")
	_, err := New("test", "", cycles, cycles)
	require.Error(t, err)

	var already prometheus.AlreadyRegisteredError
	require.True(t, errors.As(err, &already))
}
