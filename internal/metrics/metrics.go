// Package metrics exports Prometheus metrics for patient evaluations and the HTTP API:
//   - forta_evaluations_total: Counter with status label
//   - forta_evaluation_duration_seconds: Histogram of pipeline latency
//   - forta_comorbidities_detected_total: Counter of resolved comorbidity labels
//   - forta_unmatched_medications_total: Counter of medications without a matched indication
//   - forta_reference_warnings: Gauge of structural warnings in the loaded reference data
//   - http_request_total / http_request_duration_seconds / http_request_in_flight
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of one process. It implements service.Recorder.
type Metrics struct {
	EvaluationsTotal      *prometheus.CounterVec
	EvaluationDuration    prometheus.Histogram
	ComorbiditiesDetected prometheus.Counter
	UnmatchedMedications  prometheus.Counter
	ReferenceWarnings     prometheus.Gauge
	HTTPRequestTotals     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestInFlight   prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forta_evaluations_total",
				Help: "Total patient evaluations by outcome",
			},
			[]string{"status"},
		),
		EvaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "forta_evaluation_duration_seconds",
				Help:    "Patient evaluation latency",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		ComorbiditiesDetected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "forta_comorbidities_detected_total",
				Help: "Total comorbidity labels resolved across evaluations",
			},
		),
		UnmatchedMedications: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "forta_unmatched_medications_total",
				Help: "Total prescribed substances without a matched FORTA indication",
			},
		),
		ReferenceWarnings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "forta_reference_warnings",
				Help: "Structural warnings in the loaded reference data",
			},
		),
		HTTPRequestTotals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_request_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_request_in_flight",
				Help: "Current in-flight requests",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.EvaluationsTotal,
		m.EvaluationDuration,
		m.ComorbiditiesDetected,
		m.UnmatchedMedications,
		m.ReferenceWarnings,
		m.HTTPRequestTotals,
		m.HTTPRequestDuration,
		m.HTTPRequestInFlight,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveEvaluation records the outcome of one patient evaluation.
func (m *Metrics) ObserveEvaluation(status string, duration time.Duration, comorbidities, unmatched int) {
	m.EvaluationsTotal.WithLabelValues(status).Inc()
	m.EvaluationDuration.Observe(duration.Seconds())
	m.ComorbiditiesDetected.Add(float64(comorbidities))
	m.UnmatchedMedications.Add(float64(unmatched))
}

// SetReferenceWarnings publishes the warning count of the active reference data.
func (m *Metrics) SetReferenceWarnings(n int) {
	m.ReferenceWarnings.Set(float64(n))
}
