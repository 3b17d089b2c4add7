// Package telemetry exposes Prometheus metrics for the parts of the
// fabric's concurrency model that are otherwise invisible from outside:
// frame throughput, the writer channel's queue depth, whether a viewer
// is attached, and the signal dispatcher's backlog (spec §5).
//
// Grounded on the teacher's internal/escrow/metrics.go, the one place in
// Generativebots-ocx-backend-go-svc that actually uses
// github.com/prometheus/client_golang (factory.NewCounterVec/GaugeVec);
// internal/monitoring/monitoring_system.go's hand-rolled atomic-counter
// approach is superseded rather than adapted (DESIGN.md).
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector this module registers.
type Metrics struct {
	Registry       *prometheus.Registry
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	WriterQueue    prometheus.Gauge
	Connected      prometheus.Gauge
	DispatchQueue  prometheus.Gauge
	Handshakes     *prometheus.CounterVec
}

// New constructs Metrics and registers every collector against a
// private registry rather than prometheus.DefaultRegisterer, so that a
// process (or a test) can build more than one Driver without the second
// promauto.New* call panicking on an already-registered name. Mirrors
// the teacher's NewMetrics() convention otherwise (promauto.New*
// registers as a side effect of construction).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		FramesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statefabric_frames_sent_total",
				Help: "Total number of frames sent to the viewer, by kind.",
			},
			[]string{"kind"},
		),
		FramesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statefabric_frames_received_total",
				Help: "Total number of frames received from the viewer, by kind.",
			},
			[]string{"kind"},
		),
		WriterQueue: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "statefabric_writer_queue_depth",
				Help: "Number of frames currently buffered on the writer channel.",
			},
		),
		Connected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "statefabric_connected",
				Help: "Whether a viewer is currently connected (1) or not (0).",
			},
		),
		DispatchQueue: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "statefabric_dispatch_queue_depth",
				Help: "Number of entries in the signal dispatcher's pending-id queue across all ids, including stale entries for already-delivered payloads.",
			},
		),
		Handshakes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statefabric_handshakes_total",
				Help: "Total handshake attempts, by outcome.",
			},
			[]string{"outcome"}, // accepted, version_mismatch, cookie_rejected, malformed
		),
	}
}

// RecordSent increments the sent-frame counter for kind.
func (m *Metrics) RecordSent(kind string) {
	m.FramesSent.WithLabelValues(kind).Inc()
}

// RecordReceived increments the received-frame counter for kind.
func (m *Metrics) RecordReceived(kind string) {
	m.FramesReceived.WithLabelValues(kind).Inc()
}

// SetWriterQueueDepth reports the writer channel's current backlog.
func (m *Metrics) SetWriterQueueDepth(n int) {
	m.WriterQueue.Set(float64(n))
}

// SetConnected reports whether a viewer is attached.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}

// SetDispatchQueueDepth reports the signal dispatcher's current backlog.
func (m *Metrics) SetDispatchQueueDepth(n int) {
	m.DispatchQueue.Set(float64(n))
}

// RecordHandshake increments the handshake counter for outcome.
func (m *Metrics) RecordHandshake(outcome string) {
	m.Handshakes.WithLabelValues(outcome).Inc()
}
