// Package metrics exposes Prometheus collectors for the gallery backend.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the collectors.
const (
	OutcomeOK      = "ok"
	OutcomeStatus  = "bad_status"
	OutcomeError   = "error"
	OutcomeNoImage = "no_image"
	OutcomeEmpty   = "empty"
	OutcomeDropped = "dropped"
	OutcomeInvalid = "invalid"
)

// Metrics groups every collector the service exports. A nil *Metrics is valid
// and records nothing, so components can run without a registry.
type Metrics struct {
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	Pages            *prometheus.CounterVec
	HistoryRecords   prometheus.Counter
	HistoryEvictions prometheus.Counter
	Downloads        *prometheus.CounterVec
	registry         *prometheus.Registry
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register gallery metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_upstream_requests_total",
		Help: "Upstream image API calls by source and outcome",
	}, []string{"source", "outcome"})

	m.UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gallery_upstream_request_duration_seconds",
		Help:    "Latency of upstream image API calls",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"source"})

	m.Pages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_pages_total",
		Help: "Gallery page fetches by outcome",
	}, []string{"outcome"})

	m.HistoryRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gallery_history_records_total",
		Help: "Images recorded into the viewing history",
	})

	m.HistoryEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gallery_history_evictions_total",
		Help: "History entries evicted to respect the capacity bound",
	})

	m.Downloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_downloads_total",
		Help: "Proxied downloads by outcome",
	}, []string{"outcome"})
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.UpstreamRequests.Describe(ch)
	m.UpstreamLatency.Describe(ch)
	m.Pages.Describe(ch)
	m.HistoryRecords.Describe(ch)
	m.HistoryEvictions.Describe(ch)
	m.Downloads.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.UpstreamRequests.Collect(ch)
	m.UpstreamLatency.Collect(ch)
	m.Pages.Collect(ch)
	m.HistoryRecords.Collect(ch)
	m.HistoryEvictions.Collect(ch)
	m.Downloads.Collect(ch)
}

// Registry returns the registry the collectors were registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveUpstream records one upstream call.
func (m *Metrics) ObserveUpstream(source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(source, outcome).Inc()
	m.UpstreamLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}

// PageFetched records the outcome of one page fetch.
func (m *Metrics) PageFetched(outcome string) {
	if m == nil {
		return
	}
	m.Pages.WithLabelValues(outcome).Inc()
}

// HistoryRecorded records one history insert and the evictions it caused.
func (m *Metrics) HistoryRecorded(evicted int) {
	if m == nil {
		return
	}
	m.HistoryRecords.Inc()
	if evicted > 0 {
		m.HistoryEvictions.Add(float64(evicted))
	}
}

// Download records one proxied download.
func (m *Metrics) Download(outcome string) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(outcome).Inc()
}
