// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeranaias/research-tui/internal/session"
	"github.com/jeranaias/research-tui/internal/stream"
)

// =============================================================================
// METRICS
// =============================================================================

// Metrics holds the collectors of one process component.
type Metrics struct {
	namespace string
	registry  *prometheus.Registry

	streams    *prometheus.CounterVec
	chunks     *prometheus.CounterVec
	dropped    prometheus.Counter
	firstChunk prometheus.Histogram
	duration   prometheus.Histogram

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	activeStreams prometheus.Gauge
}

// New creates metrics under namespace with a private registry that also
// carries the Go runtime collectors.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		namespace: namespace,
		registry:  reg,
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Stream attempts by final state.",
		}, []string{"outcome"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Decoded chunks by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Malformed or oversized frames discarded by the decoder.",
		}),
		firstChunk: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_chunk_seconds",
			Help:      "Delay from request to first decoded chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Time from request to the terminal transition.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Responses currently being streamed.",
		}),
	}

	reg.MustRegister(m.streams, m.chunks, m.dropped, m.firstChunk, m.duration,
		m.requests, m.latency, m.activeStreams)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// =============================================================================
// STREAM OBSERVERS
// =============================================================================

// ObserveResult records a finished stream attempt.
func (m *Metrics) ObserveResult(r session.Result) {
	m.streams.WithLabelValues(r.State.String()).Inc()
	if r.Stats.FirstChunk > 0 {
		m.firstChunk.Observe(r.Stats.FirstChunk.Seconds())
	}
	if r.Stats.Total > 0 {
		m.duration.Observe(r.Stats.Total.Seconds())
	}
}

// ObserveChunk records a decoded chunk.
func (m *Metrics) ObserveChunk(c stream.Chunk) {
	m.chunks.WithLabelValues(string(c.Kind())).Inc()
}

// ObserveDrop records a discarded frame. It matches stream.DropFunc.
func (m *Metrics) ObserveDrop(_ []byte, _ error) {
	m.dropped.Inc()
}

// =============================================================================
// HTTP OBSERVERS
// =============================================================================

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(route).Observe(d.Seconds())
}

// StreamStarted and StreamFinished track responses being streamed.
func (m *Metrics) StreamStarted()  { m.activeStreams.Inc() }
func (m *Metrics) StreamFinished() { m.activeStreams.Dec() }

// =============================================================================
// SUMMARY
// =============================================================================

// Summary is a plain view of the stream counters.
type Summary struct {
	Streams map[string]int
	Chunks  map[string]int
	Dropped int
}

// Total returns the number of finished stream attempts.
func (s Summary) Total() int {
	n := 0
	for _, v := range s.Streams {
		n += v
	}
	return n
}

// Summary reads the current counter values back from the registry.
func (m *Metrics) Summary() Summary {
	sum := Summary{Streams: map[string]int{}, Chunks: map[string]int{}}

	streamsName := prometheus.BuildFQName(m.namespace, "", "streams_total")
	chunksName := prometheus.BuildFQName(m.namespace, "", "chunks_total")
	droppedName := prometheus.BuildFQName(m.namespace, "", "frames_dropped_total")

	families, err := m.registry.Gather()
	if err != nil {
		return sum
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			value := int(metric.GetCounter().GetValue())
			switch mf.GetName() {
			case streamsName:
				sum.Streams[labelValue(metric.GetLabel(), "outcome")] += value
			case chunksName:
				sum.Chunks[labelValue(metric.GetLabel(), "type")] += value
			case droppedName:
				sum.Dropped += value
			}
		}
	}
	return sum
}

type labelPair interface {
	GetName() string
	GetValue() string
}

func labelValue[L labelPair](labels []L, name string) string {
	for _, lp := range labels {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
