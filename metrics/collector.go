package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/telemetry-envelope/collector"
)

// CollectorStats exports the collector counters, read at scrape time.
type CollectorStats struct {
	stats func() collector.Stats

	received      *prometheus.Desc
	accepted      *prometheus.Desc
	rejected      *prometheus.Desc
	archiveErrors *prometheus.Desc
}

func NewCollectorStats(namespace string, stats func() collector.Stats) *CollectorStats {
	ns := Namespace(namespace)
	return &CollectorStats{
		stats: stats,
		received: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "collector", "datagrams_received_total"),
			"Datagrams received.", nil, nil),
		accepted: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "collector", "reports_accepted_total"),
			"Datagrams that authenticated and decoded to a valid report.", nil, nil),
		rejected: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "collector", "datagrams_rejected_total"),
			"Rejected datagrams by reason.", []string{"reason"}, nil),
		archiveErrors: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "collector", "archive_errors_total"),
			"Failed archive writes.", nil, nil),
	}
}

func (c *CollectorStats) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.received
	ch <- c.accepted
	ch <- c.rejected
	ch <- c.archiveErrors
}

func (c *CollectorStats) Collect(ch chan<- prometheus.Metric) {
	stats := c.stats()
	ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(stats.Received))
	ch <- prometheus.MustNewConstMetric(c.accepted, prometheus.CounterValue, float64(stats.Accepted))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(stats.RejectedAuth), "auth")
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(stats.RejectedFormat), "format")
	ch <- prometheus.MustNewConstMetric(c.archiveErrors, prometheus.CounterValue, float64(stats.ArchiveErrors))
}
