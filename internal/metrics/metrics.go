package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons for rejected lines.
const (
	DropShutdown   = "shutdown"
	DropKillSwitch = "killswitch"
	DropOverflow   = "overflow"
)

// Metrics holds the Prometheus collectors for ingestion and analysis.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LinesAccepted   prometheus.Counter
	LinesDropped    *prometheus.CounterVec
	BatchesSent     prometheus.Counter
	BatchErrors     prometheus.Counter
	BufferSize      prometheus.Gauge
	RecordsAnalyzed *prometheus.CounterVec
	RecordErrors    prometheus.Counter
	Suppressed      prometheus.Counter
	AlertsGenerated *prometheus.CounterVec
	registry        *prometheus.Registry
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		LinesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soccopilot_lines_accepted_total",
			Help: "Lines accepted into the micro-batch buffer",
		}),
		LinesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soccopilot_lines_dropped_total",
			Help: "Lines rejected at intake",
		}, []string{"reason"}),
		BatchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soccopilot_batches_sent_total",
			Help: "Batches delivered to the batch consumer",
		}),
		BatchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soccopilot_batch_errors_total",
			Help: "Batch consumer failures",
		}),
		BufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soccopilot_buffer_size",
			Help: "Items in the micro-batch buffer after the last flush check",
		}),
		RecordsAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soccopilot_records_analyzed_total",
			Help: "Records scored by the ensemble",
		}, []string{"risk_level"}),
		RecordErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soccopilot_record_errors_total",
			Help: "Records that failed feature extraction or model scoring",
		}),
		Suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soccopilot_records_suppressed_total",
			Help: "Non-alert records suppressed by the benign deduplicator",
		}),
		AlertsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soccopilot_alerts_generated_total",
			Help: "Alerts generated",
		}, []string{"priority"}),
		registry: registry,
	}

	registry.MustRegister(
		m.LinesAccepted,
		m.LinesDropped,
		m.BatchesSent,
		m.BatchErrors,
		m.BufferSize,
		m.RecordsAnalyzed,
		m.RecordErrors,
		m.Suppressed,
		m.AlertsGenerated,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) LineAccepted() {
	if m == nil {
		return
	}
	m.LinesAccepted.Inc()
}

func (m *Metrics) LineDropped(reason string) {
	if m == nil {
		return
	}
	m.LinesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) BatchSent() {
	if m == nil {
		return
	}
	m.BatchesSent.Inc()
}

func (m *Metrics) BatchFailed() {
	if m == nil {
		return
	}
	m.BatchErrors.Inc()
}

func (m *Metrics) SetBufferSize(n int) {
	if m == nil {
		return
	}
	m.BufferSize.Set(float64(n))
}

func (m *Metrics) RecordAnalyzed(riskLevel string) {
	if m == nil {
		return
	}
	m.RecordsAnalyzed.WithLabelValues(riskLevel).Inc()
}

func (m *Metrics) RecordFailed() {
	if m == nil {
		return
	}
	m.RecordErrors.Inc()
}

func (m *Metrics) RecordSuppressed() {
	if m == nil {
		return
	}
	m.Suppressed.Inc()
}

func (m *Metrics) AlertGenerated(priority string) {
	if m == nil {
		return
	}
	m.AlertsGenerated.WithLabelValues(priority).Inc()
}
