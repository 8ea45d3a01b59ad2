// Package metrics collects Prometheus metrics for encoding and inference
// runs and exports them in the node-exporter textfile format.
//
// All recording methods are no-ops on a nil *Metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Results recorded by FileEncoded.
const (
	ResultOK         = "ok"
	ResultParseError = "parse_error"
	ResultTooLarge   = "too_large"
	ResultError      = "error"
)

// Metrics holds the collectors of one run.
type Metrics struct {
	Registry *prometheus.Registry

	filesEncoded    *prometheus.CounterVec
	encodeDuration  *prometheus.HistogramVec
	graphNodes      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	predictions     *prometheus.CounterVec
	forwardDuration prometheus.Histogram
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		filesEncoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codeclass",
			Name:      "files_encoded_total",
			Help:      "Source files processed by the encoder, by language and result.",
		}, []string{"language", "result"}),
		encodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codeclass",
			Name:      "encode_duration_seconds",
			Help:      "Time spent parsing and encoding one file.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"language"}),
		graphNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "codeclass",
			Name:      "graph_nodes",
			Help:      "Number of nodes in encoded graphs.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codeclass",
			Name:      "cache_lookups_total",
			Help:      "Encoded-graph cache lookups, by result.",
		}, []string{"result"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codeclass",
			Name:      "predictions_total",
			Help:      "Files classified, by predicted label.",
		}, []string{"label"}),
		forwardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "codeclass",
			Name:      "forward_duration_seconds",
			Help:      "Time spent in one batched forward pass.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.Registry.MustRegister(
		m.filesEncoded,
		m.encodeDuration,
		m.graphNodes,
		m.cacheLookups,
		m.predictions,
		m.forwardDuration,
	)
	return m
}

// FileEncoded counts one processed file.
func (m *Metrics) FileEncoded(language, result string) {
	if m == nil {
		return
	}
	m.filesEncoded.WithLabelValues(language, result).Inc()
}

// ObserveEncode records the duration and size of a successful encode.
func (m *Metrics) ObserveEncode(language string, d time.Duration, nodes int) {
	if m == nil {
		return
	}
	m.encodeDuration.WithLabelValues(language).Observe(d.Seconds())
	m.graphNodes.Observe(float64(nodes))
}

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Prediction counts one classified file.
func (m *Metrics) Prediction(label string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(label).Inc()
}

// ObserveForward records the duration of a forward pass.
func (m *Metrics) ObserveForward(d time.Duration) {
	if m == nil {
		return
	}
	m.forwardDuration.Observe(d.Seconds())
}

// WriteTextfile writes every metric to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
