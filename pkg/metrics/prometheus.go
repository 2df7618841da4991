package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsInserted *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	connectorEvents *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	hubConnections  prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsInserted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpulse_signals_inserted_total",
				Help: "Total number of signals accepted by the store",
			},
			[]string{"category", "source"},
		),
		duplicates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpulse_signals_duplicate_total",
				Help: "Total number of candidates rejected as duplicates",
			},
			[]string{"source"},
		),
		connectorEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpulse_connector_candidates_total",
				Help: "Candidate signals produced per connector",
			},
			[]string{"connector"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sigpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		hubConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sigpulse_hub_connections",
				Help: "Current number of live subscriber connections",
			},
		),
	}
}

// RecordSignalInserted records an accepted signal.
func (r *Recorder) RecordSignalInserted(category, source string) {
	r.signalsInserted.WithLabelValues(category, source).Inc()
}

// RecordDuplicate records a dedup rejection.
func (r *Recorder) RecordDuplicate(source string) {
	r.duplicates.WithLabelValues(source).Inc()
}

// RecordConnectorEvents records how many candidates a connector produced.
func (r *Recorder) RecordConnectorEvents(connector string, count int) {
	r.connectorEvents.WithLabelValues(connector).Add(float64(count))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetHubConnections records the live connection count.
func (r *Recorder) SetHubConnections(n int) {
	r.hubConnections.Set(float64(n))
}
