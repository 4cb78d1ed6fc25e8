// Package metrics exposes Prometheus instrumentation for the fetch, render,
// and probe pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FetchTotal counts schedule-API calls by sport and result (ok / error / empty).
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kickstream_fetch_total",
		Help: "Schedule API fetches by sport and result.",
	}, []string{"sport", "result"})

	// ProbeTotal counts stream probes by outcome (fast / medium / slow / off).
	ProbeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kickstream_probe_total",
		Help: "Stream health probes by latency class.",
	}, []string{"status"})

	// ProbeLatency observes successful probe round-trip times.
	ProbeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kickstream_probe_latency_seconds",
		Help:    "Latency of successful stream probes.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 3},
	})

	// ChannelsRendered tracks how many entries the last regeneration produced.
	ChannelsRendered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kickstream_channels_rendered",
		Help: "Channel entries in the most recent playlist.",
	})

	// CycleDuration observes end-to-end cycle times by kind (regenerate / check).
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kickstream_cycle_duration_seconds",
		Help:    "Duration of regeneration and health-check cycles.",
		Buckets: prometheus.DefBuckets,
	}, []string{"cycle"})

	// RelayRequests counts relay requests by outcome (ok / bad_request / upstream_error).
	RelayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kickstream_relay_requests_total",
		Help: "Stream relay requests by outcome.",
	}, []string{"result"})
)

// Handler serves the default registry at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
