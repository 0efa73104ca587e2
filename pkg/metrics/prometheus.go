package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	zonesAccepted *prometheus.CounterVec
	tickerScans   *prometheus.CounterVec
	retries       *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers the recorder's collectors on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		zonesAccepted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonescan_zones_accepted_total",
				Help: "Zones that passed the trade score threshold",
			},
			[]string{"time_frame", "pattern"},
		),
		tickerScans: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonescan_ticker_scans_total",
				Help: "Per-ticker scan outcomes",
			},
			[]string{"time_frame", "result"},
		),
		retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonescan_retries_total",
				Help: "Retried provider calls",
			},
			[]string{"operation"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonescan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zonescan_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 180},
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordZonesAccepted(tf, pattern string, n int) {
	r.zonesAccepted.WithLabelValues(tf, pattern).Add(float64(n))
}

func (r *Recorder) RecordTickerScan(tf, result string) {
	r.tickerScans.WithLabelValues(tf, result).Inc()
}

func (r *Recorder) RecordRetry(op string) {
	r.retries.WithLabelValues(op).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
